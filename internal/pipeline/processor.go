package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
	"chatwatch/internal/scoring"
)

// Classifier produces the raw verdict the pipeline adjusts.
type Classifier interface {
	Classify(ctx context.Context, text string) (*models.DetectionVerdict, error)
}

// FilterEngine rewrites a verdict using curated word rules.
type FilterEngine interface {
	ApplyFilters(ctx context.Context, messageID, content, senderHash, detectedType string, confidence float64) models.FilterResult
}

// Scorer flags announcement content the detector missed.
type Scorer interface {
	Score(ctx context.Context, msg *models.Message) (models.ScoreResult, error)
}

// Router dispatches an alert and reports the aggregated outcome.
type Router interface {
	Route(ctx context.Context, alert *models.Alert, rule *models.RoutingRule) models.RoutingResult
}

// Limiter is the throttle surface the pipeline consults before dispatch.
type Limiter interface {
	ShouldThrottle(ctx context.Context, chatRoomID string) bool
	RecordSent(ctx context.Context, chatRoomID string)
	HourlyCapExceeded(ctx context.Context) bool
	RecordHourlySend(ctx context.Context)
}

// Retryer re-enqueues envelopes the pipeline could not process.
type Retryer interface {
	EnqueueForRetry(ctx context.Context, msg *models.QueueMessage) (bool, error)
}

// Config carries the stream coordinates the consumer loop reads from.
type Config struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	Threshold     float64
}

// Processor consumes message envelopes from the durable stream and runs each
// through classification, filter adjustment, scoring, throttling, and routing.
type Processor struct {
	consumer   *redis.Client
	cfg        Config
	classifier Classifier
	filters    FilterEngine
	scorer     Scorer
	router     Router
	limiter    Limiter
	retryer    Retryer
	messages   repository.MessageRepository
	alerts     repository.AlertRepository
	logger     *zap.Logger
}

func NewProcessor(
	consumer *redis.Client,
	cfg Config,
	classifier Classifier,
	filters FilterEngine,
	scorer Scorer,
	router Router,
	limiter Limiter,
	retryer Retryer,
	messages repository.MessageRepository,
	alerts repository.AlertRepository,
	logger *zap.Logger,
) *Processor {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.7
	}
	return &Processor{
		consumer:   consumer,
		cfg:        cfg,
		classifier: classifier,
		filters:    filters,
		scorer:     scorer,
		router:     router,
		limiter:    limiter,
		retryer:    retryer,
		messages:   messages,
		alerts:     alerts,
		logger:     logger,
	}
}

// Run consumes the stream until the context is cancelled. Envelopes that fail
// processing are re-enqueued with an incremented retry count and acknowledged,
// so redelivery is driven by the producer's retry policy rather than the
// consumer group.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("message processor started",
		zap.String("stream", p.cfg.Stream),
		zap.String("group", p.cfg.ConsumerGroup))

	err := p.consumer.XGroupCreateMkStream(ctx, p.cfg.Stream, p.cfg.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		p.logger.Error("failed to create consumer group", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("message processor stopped")
			return
		default:
		}

		streams, err := p.consumer.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.cfg.ConsumerGroup,
			Consumer: p.cfg.ConsumerName,
			Streams:  []string{p.cfg.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Error("stream read failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				p.handleEntry(ctx, entry)
			}
		}
	}
}

func (p *Processor) handleEntry(ctx context.Context, entry redis.XMessage) {
	defer p.ack(ctx, entry.ID)

	body, ok := entry.Values["body"].(string)
	if !ok {
		p.logger.Error("stream entry has no body", zap.String("entry_id", entry.ID))
		return
	}

	var env models.QueueMessage
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		p.logger.Error("undecodable stream entry dropped",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		return
	}

	if err := p.ProcessEnvelope(ctx, &env); err != nil {
		p.logger.Error("envelope processing failed, re-enqueueing",
			zap.String("message_id", env.MessageID),
			zap.Int("retry_count", env.RetryCount),
			zap.Error(err))
		if ok, retryErr := p.retryer.EnqueueForRetry(ctx, &env); retryErr != nil || !ok {
			p.logger.Error("re-enqueue failed",
				zap.String("message_id", env.MessageID),
				zap.Error(retryErr))
		}
	}
}

func (p *Processor) ack(ctx context.Context, entryID string) {
	if err := p.consumer.XAck(ctx, p.cfg.Stream, p.cfg.ConsumerGroup, entryID).Err(); err != nil {
		p.logger.Error("ack failed", zap.String("entry_id", entryID), zap.Error(err))
	}
}

// ProcessEnvelope runs one message through the full pipeline. The returned
// error marks the envelope for re-enqueue; verdicts that simply do not warrant
// an alert are not errors.
func (p *Processor) ProcessEnvelope(ctx context.Context, env *models.QueueMessage) error {
	msg := &models.Message{
		ID:         env.MessageID,
		ChatRoomID: env.ChatRoom,
		DeviceID:   env.DeviceID,
		SenderHash: env.SenderHash,
		SenderName: env.SenderName,
		Content:    env.Payload,
		Timestamp:  time.Now(),
	}
	if err := p.messages.SaveMessage(ctx, msg); err != nil {
		p.logger.Error("failed to save message", zap.String("message_id", msg.ID), zap.Error(err))
	}

	verdict, err := p.classifier.Classify(ctx, msg.Content)
	if err != nil {
		return fmt.Errorf("classification failed: %w", err)
	}

	result := p.filters.ApplyFilters(ctx, msg.ID, msg.Content, msg.SenderHash, verdict.DetectionType, verdict.Confidence)

	finalType := result.FinalType
	confidence := clamp(verdict.Confidence + result.ConfidenceDelta)
	timeFactor := 1.0

	// The scorer catches announcements the detector missed. It only runs when
	// the word rules did not already settle the verdict.
	if !result.Adjusted() && (finalType == models.DetectionNormal || finalType == models.DetectionAnnouncement) {
		score, err := p.scorer.Score(ctx, msg)
		if err != nil {
			if errors.Is(err, scoring.ErrBudgetExceeded) {
				return fmt.Errorf("pattern scoring timed out: %w", err)
			}
			p.logger.Error("pattern scoring failed", zap.String("message_id", msg.ID), zap.Error(err))
		} else {
			timeFactor = score.TimeFactor
			if score.Detected {
				finalType = models.DetectionAnnouncement
				confidence = score.Confidence
			}
		}
	}

	if finalType == models.DetectionNormal || confidence < p.cfg.Threshold {
		p.logger.Debug("message below alerting threshold",
			zap.String("message_id", msg.ID),
			zap.String("final_type", finalType),
			zap.Float64("confidence", confidence))
		return nil
	}

	alert := p.buildAlert(msg, finalType, confidence, timeFactor)
	return p.dispatchAlert(ctx, alert)
}

func (p *Processor) buildAlert(msg *models.Message, finalType string, confidence, timeFactor float64) *models.Alert {
	title := fmt.Sprintf("%s detected in %s", strings.ToLower(finalType), msg.ChatRoomID)
	body := fmt.Sprintf("sender %s, confidence %.2f", msg.SenderName, confidence)
	if finalType == models.DetectionAnnouncement && timeFactor == 0 {
		body += " (outside business hours)"
	}
	return &models.Alert{
		ID:         uuid.NewString(),
		MessageID:  msg.ID,
		ChatRoomID: msg.ChatRoomID,
		Type:       finalType,
		Severity:   severityFor(finalType, confidence, timeFactor),
		Title:      title,
		Body:       body,
		Status:     models.AlertStatusNew,
		CreatedAt:  time.Now(),
	}
}

// dispatchAlert runs the throttle pre-checks and routes the alert. Suppressed
// alerts are dropped with a recorded reason and never contact an adapter.
func (p *Processor) dispatchAlert(ctx context.Context, alert *models.Alert) error {
	if err := p.alerts.SaveAlert(ctx, alert); err != nil {
		p.logger.Error("failed to save alert", zap.String("alert_id", alert.ID), zap.Error(err))
	}

	if reason := p.suppressionReason(ctx, alert); reason != "" {
		p.logger.Warn("alert suppressed",
			zap.String("alert_id", alert.ID),
			zap.String("chat_room", alert.ChatRoomID),
			zap.String("reason", reason))
		suppressed := models.RoutingResult{
			Suppressed: true,
			AlertID:    alert.ID,
			Reason:     reason,
			Timestamp:  time.Now(),
		}
		p.recordOutcome(ctx, alert, &suppressed, models.AlertStatusSuppressed)
		return nil
	}

	rule, err := p.alerts.GetActiveRoutingRule(ctx, alert.Type)
	if err != nil {
		p.logger.Error("routing rule lookup failed, using defaults",
			zap.String("alert_type", alert.Type),
			zap.Error(err))
		rule = nil
	}

	result := p.router.Route(ctx, alert, rule)

	status := models.AlertStatusFailed
	if result.Success {
		status = models.AlertStatusDispatched
		p.limiter.RecordHourlySend(ctx)
		// The room throttle key arms only on a clean send; a partial or
		// fallback delivery must not suppress the follow-up alerts.
		if result.FullySuccessful() {
			p.limiter.RecordSent(ctx, alert.ChatRoomID)
		}
	}
	p.recordOutcome(ctx, alert, &result, status)
	return nil
}

func (p *Processor) suppressionReason(ctx context.Context, alert *models.Alert) string {
	if p.limiter.ShouldThrottle(ctx, alert.ChatRoomID) {
		return "chat room throttled"
	}
	if p.limiter.HourlyCapExceeded(ctx) {
		return "hourly cap exceeded"
	}
	return ""
}

func (p *Processor) recordOutcome(ctx context.Context, alert *models.Alert, result *models.RoutingResult, status string) {
	if err := p.alerts.SaveRoutingResult(ctx, result); err != nil {
		p.logger.Error("failed to save routing result", zap.String("alert_id", alert.ID), zap.Error(err))
	}
	if err := p.alerts.UpdateAlertStatus(ctx, alert.ID, status); err != nil {
		p.logger.Error("failed to update alert status", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}

// severityFor maps the final verdict to an alert severity. Announcements
// outside business hours are treated as more suspicious than on-hours ones.
func severityFor(detectionType string, confidence, timeFactor float64) string {
	switch detectionType {
	case models.DetectionAbuse:
		if confidence >= 0.9 {
			return models.SeverityCritical
		}
		return models.SeverityHigh
	case models.DetectionSpam:
		if confidence >= 0.9 {
			return models.SeverityHigh
		}
		return models.SeverityMedium
	case models.DetectionAdvertisement:
		return models.SeverityMedium
	case models.DetectionAnnouncement:
		if timeFactor == 0 {
			return models.SeverityHigh
		}
		return models.SeverityLow
	default:
		return models.SeverityLow
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
