package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/pipeline"
	"chatwatch/internal/scoring"
)

type fakeClassifier struct {
	verdict *models.DetectionVerdict
	err     error
}

func (f *fakeClassifier) Classify(ctx context.Context, text string) (*models.DetectionVerdict, error) {
	return f.verdict, f.err
}

type fakeFilterEngine struct {
	result models.FilterResult
}

func (f *fakeFilterEngine) ApplyFilters(ctx context.Context, messageID, content, senderHash, detectedType string, confidence float64) models.FilterResult {
	if f.result.FinalType == "" {
		return models.FilterResult{OriginalType: detectedType, FinalType: detectedType}
	}
	return f.result
}

type fakeScorer struct {
	result models.ScoreResult
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, msg *models.Message) (models.ScoreResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeRouter struct {
	result models.RoutingResult
	calls  int
	alerts []*models.Alert
}

func (f *fakeRouter) Route(ctx context.Context, alert *models.Alert, rule *models.RoutingRule) models.RoutingResult {
	f.calls++
	f.alerts = append(f.alerts, alert)
	out := f.result
	out.AlertID = alert.ID
	return out
}

type fakeLimiter struct {
	throttled   bool
	capExceeded bool
	sentRooms   []string
	hourlySends int
}

func (f *fakeLimiter) ShouldThrottle(ctx context.Context, chatRoomID string) bool { return f.throttled }
func (f *fakeLimiter) RecordSent(ctx context.Context, chatRoomID string) {
	f.sentRooms = append(f.sentRooms, chatRoomID)
}
func (f *fakeLimiter) HourlyCapExceeded(ctx context.Context) bool { return f.capExceeded }
func (f *fakeLimiter) RecordHourlySend(ctx context.Context)       { f.hourlySends++ }

type fakeRetryer struct{ calls int }

func (f *fakeRetryer) EnqueueForRetry(ctx context.Context, msg *models.QueueMessage) (bool, error) {
	f.calls++
	return true, nil
}

type fakeMessageRepo struct{ saved []*models.Message }

func (f *fakeMessageRepo) SaveMessage(ctx context.Context, msg *models.Message) error {
	f.saved = append(f.saved, msg)
	return nil
}
func (f *fakeMessageRepo) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	return nil, nil
}

type fakeAlertRepo struct {
	alerts   []*models.Alert
	results  []*models.RoutingResult
	statuses map[string]string
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{statuses: make(map[string]string)}
}

func (f *fakeAlertRepo) SaveAlert(ctx context.Context, alert *models.Alert) error {
	f.alerts = append(f.alerts, alert)
	return nil
}
func (f *fakeAlertRepo) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	return nil, nil
}
func (f *fakeAlertRepo) ListAlerts(ctx context.Context, status, alertType string) ([]models.Alert, error) {
	return nil, nil
}
func (f *fakeAlertRepo) UpdateAlertStatus(ctx context.Context, id, status string) error {
	f.statuses[id] = status
	return nil
}
func (f *fakeAlertRepo) SaveRoutingResult(ctx context.Context, result *models.RoutingResult) error {
	f.results = append(f.results, result)
	return nil
}
func (f *fakeAlertRepo) GetActiveRoutingRule(ctx context.Context, alertType string) (*models.RoutingRule, error) {
	return nil, nil
}

type env struct {
	classifier *fakeClassifier
	filters    *fakeFilterEngine
	scorer     *fakeScorer
	router     *fakeRouter
	limiter    *fakeLimiter
	retryer    *fakeRetryer
	messages   *fakeMessageRepo
	alerts     *fakeAlertRepo
	processor  *pipeline.Processor
}

func newEnv(verdict *models.DetectionVerdict) *env {
	e := &env{
		classifier: &fakeClassifier{verdict: verdict},
		filters:    &fakeFilterEngine{},
		scorer:     &fakeScorer{},
		router:     &fakeRouter{result: models.RoutingResult{Success: true, SuccessCount: 1}},
		limiter:    &fakeLimiter{},
		retryer:    &fakeRetryer{},
		messages:   &fakeMessageRepo{},
		alerts:     newFakeAlertRepo(),
	}
	e.processor = pipeline.NewProcessor(
		nil,
		pipeline.Config{Threshold: 0.7},
		e.classifier,
		e.filters,
		e.scorer,
		e.router,
		e.limiter,
		e.retryer,
		e.messages,
		e.alerts,
		zap.NewNop(),
	)
	return e
}

func spamVerdict(confidence float64) *models.DetectionVerdict {
	return &models.DetectionVerdict{
		Detected:      true,
		Confidence:    confidence,
		DetectionType: models.DetectionSpam,
	}
}

func envelope() *models.QueueMessage {
	return &models.QueueMessage{
		MessageID:  "msg-1",
		Payload:    "무료 이벤트 안내",
		ChatRoom:   "room-1",
		SenderHash: "hash-1",
		SenderName: "user",
	}
}

func TestProcessEnvelopeDispatchesAlert(t *testing.T) {
	t.Parallel()

	e := newEnv(spamVerdict(0.95))
	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}

	if len(e.alerts.alerts) != 1 {
		t.Fatalf("saved %d alerts, want 1", len(e.alerts.alerts))
	}
	alert := e.alerts.alerts[0]
	if alert.Type != models.DetectionSpam || alert.Severity != models.SeverityHigh {
		t.Fatalf("alert = %s/%s", alert.Type, alert.Severity)
	}
	if e.router.calls != 1 {
		t.Fatalf("router called %d times, want 1", e.router.calls)
	}
	if e.alerts.statuses[alert.ID] != models.AlertStatusDispatched {
		t.Fatalf("status = %q", e.alerts.statuses[alert.ID])
	}
	if len(e.limiter.sentRooms) != 1 || e.limiter.sentRooms[0] != "room-1" {
		t.Fatal("successful send did not record the throttle key")
	}
	if e.limiter.hourlySends != 1 {
		t.Fatal("successful send did not count toward the hourly cap")
	}
}

func TestProcessEnvelopeIncompleteDeliveryLeavesRoomUnthrottled(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		result models.RoutingResult
	}{
		{
			name:   "partialSuccess",
			result: models.RoutingResult{Success: true, SuccessCount: 1, FailureCount: 1},
		},
		{
			name: "fallbackDelivery",
			result: models.RoutingResult{
				Success:         true,
				SuccessCount:    1,
				RoutingRuleName: models.FallbackRuleName,
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			e := newEnv(spamVerdict(0.95))
			e.router.result = tc.result

			if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
				t.Fatalf("ProcessEnvelope() error = %v", err)
			}

			alert := e.alerts.alerts[0]
			if e.alerts.statuses[alert.ID] != models.AlertStatusDispatched {
				t.Fatalf("status = %q, want dispatched", e.alerts.statuses[alert.ID])
			}
			if e.limiter.hourlySends != 1 {
				t.Fatalf("hourly sends = %d, want 1", e.limiter.hourlySends)
			}
			if len(e.limiter.sentRooms) != 0 {
				t.Fatalf("throttle key armed for rooms %v after an incomplete delivery", e.limiter.sentRooms)
			}
		})
	}
}

func TestProcessEnvelopeWhitelistedVerdictProducesNoAlert(t *testing.T) {
	t.Parallel()

	e := newEnv(spamVerdict(0.9))
	e.filters.result = models.FilterResult{
		OriginalType:    models.DetectionSpam,
		FinalType:       models.DetectionNormal,
		ConfidenceDelta: -0.8,
		AppliedRules:    []models.FilterApplication{{FilterType: models.FilterTypeWhitelist}},
	}

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}
	if len(e.alerts.alerts) != 0 {
		t.Fatal("whitelisted message raised an alert")
	}
	if e.router.calls != 0 {
		t.Fatal("router invoked for a whitelisted message")
	}
	if e.scorer.calls != 0 {
		t.Fatal("scorer invoked after the word rules settled the verdict")
	}
}

func TestProcessEnvelopeScorerUpgradesNormalVerdict(t *testing.T) {
	t.Parallel()

	e := newEnv(&models.DetectionVerdict{DetectionType: models.DetectionNormal, Confidence: 0.1})
	e.scorer.result = models.ScoreResult{Detected: true, Confidence: 0.9, TimeFactor: 0}

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}
	if len(e.alerts.alerts) != 1 {
		t.Fatalf("saved %d alerts, want 1", len(e.alerts.alerts))
	}
	alert := e.alerts.alerts[0]
	if alert.Type != models.DetectionAnnouncement {
		t.Fatalf("alert type = %q, want ANNOUNCEMENT", alert.Type)
	}
	if alert.Severity != models.SeverityHigh {
		t.Fatalf("off-hours announcement severity = %q, want HIGH", alert.Severity)
	}
}

func TestProcessEnvelopeThrottledRoomSuppressesWithoutDispatch(t *testing.T) {
	t.Parallel()

	e := newEnv(spamVerdict(0.95))
	e.limiter.throttled = true

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}
	if e.router.calls != 0 {
		t.Fatal("throttled alert still contacted the router")
	}
	if len(e.alerts.results) != 1 || !e.alerts.results[0].Suppressed {
		t.Fatalf("routing results = %+v, want one suppressed record", e.alerts.results)
	}
	alert := e.alerts.alerts[0]
	if e.alerts.statuses[alert.ID] != models.AlertStatusSuppressed {
		t.Fatalf("status = %q", e.alerts.statuses[alert.ID])
	}
	if len(e.limiter.sentRooms) != 0 {
		t.Fatal("suppressed alert recorded a throttle key")
	}
}

func TestProcessEnvelopeHourlyCapSuppresses(t *testing.T) {
	t.Parallel()

	e := newEnv(spamVerdict(0.95))
	e.limiter.capExceeded = true

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}
	if e.router.calls != 0 {
		t.Fatal("cap-exceeded alert still contacted the router")
	}
	if len(e.alerts.results) != 1 || e.alerts.results[0].Reason != "hourly cap exceeded" {
		t.Fatalf("routing results = %+v", e.alerts.results)
	}
}

func TestProcessEnvelopeRoutingFailureMarksAlertFailed(t *testing.T) {
	t.Parallel()

	e := newEnv(spamVerdict(0.95))
	e.router.result = models.RoutingResult{Success: false, FailureCount: 1}

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err != nil {
		t.Fatalf("ProcessEnvelope() error = %v", err)
	}
	alert := e.alerts.alerts[0]
	if e.alerts.statuses[alert.ID] != models.AlertStatusFailed {
		t.Fatalf("status = %q", e.alerts.statuses[alert.ID])
	}
	if len(e.limiter.sentRooms) != 0 || e.limiter.hourlySends != 0 {
		t.Fatal("failed send still recorded throttle state")
	}
}

func TestProcessEnvelopeClassifierErrorIsRetryable(t *testing.T) {
	t.Parallel()

	e := newEnv(nil)
	e.classifier.err = errors.New("classifier unreachable")

	if err := e.processor.ProcessEnvelope(context.Background(), envelope()); err == nil {
		t.Fatal("classifier failure was swallowed instead of marking the envelope for retry")
	}
}

func TestProcessEnvelopeScoringBudgetOverrunIsRetryable(t *testing.T) {
	t.Parallel()

	e := newEnv(&models.DetectionVerdict{DetectionType: models.DetectionNormal, Confidence: 0.1})
	e.scorer.err = scoring.ErrBudgetExceeded

	err := e.processor.ProcessEnvelope(context.Background(), envelope())
	if !errors.Is(err, scoring.ErrBudgetExceeded) {
		t.Fatalf("error = %v, want budget overrun", err)
	}
}
