package routing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/channel"
	"chatwatch/internal/models"
	"chatwatch/internal/permission"
	"chatwatch/internal/repository"
)

const defaultRuleName = "DEFAULT"

// Config carries the dispatch limits and the fallback channel order.
type Config struct {
	Timeout          time.Duration
	MaxWorkers       int
	FallbackChannels []string
}

// Engine resolves the channels and recipients for an alert, fans the send out
// across adapters, and aggregates the outcome. Retries are the adapters' own
// business; the engine only records per-channel success or failure.
type Engine struct {
	adapters  []channel.Adapter
	byName    map[string]channel.Adapter
	admins    repository.AdminRepository
	evaluator *permission.Evaluator
	cfg       Config
	logger    *zap.Logger
}

func NewEngine(adapters []channel.Adapter, admins repository.AdminRepository, evaluator *permission.Evaluator, cfg Config, logger *zap.Logger) *Engine {
	byName := make(map[string]channel.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Engine{
		adapters:  adapters,
		byName:    byName,
		admins:    admins,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    logger,
	}
}

type dispatchOutcome struct {
	channel string
	err     error
}

// Route dispatches the alert and returns an aggregated result. The returned
// result is final; channel sends still in flight when the routing timeout
// fires are counted as failures and their late completion is ignored.
func (e *Engine) Route(ctx context.Context, alert *models.Alert, rule *models.RoutingRule) models.RoutingResult {
	start := time.Now()

	// One deadline covers the whole call, primary fan-out and fallback walk
	// alike.
	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	ruleName := defaultRuleName
	if rule != nil {
		ruleName = rule.Name
	}

	result := models.RoutingResult{
		AlertID:         alert.ID,
		RoutingRuleName: ruleName,
		Timestamp:       start,
	}

	recipients := e.resolveUsers(ctx, alert, rule)
	if len(recipients) == 0 {
		result.Reason = "no eligible recipients"
		result.TotalDuration = time.Since(start)
		e.logger.Warn("routing skipped",
			zap.String("alert_id", alert.ID),
			zap.String("reason", result.Reason))
		return result
	}

	targets := e.resolveChannels(alert, rule)
	if len(targets) > 0 {
		success, failed := e.dispatch(sendCtx, alert, targets)
		result.SuccessChannels = success
		result.FailureChannels = failed
		result.SuccessCount = len(success)
		result.FailureCount = len(failed)
	} else {
		e.logger.Warn("no usable primary channels", zap.String("alert_id", alert.ID))
	}

	if result.SuccessCount > 0 {
		result.Success = true
		result.TotalDuration = time.Since(start)
		return result
	}

	return e.routeFallback(sendCtx, alert, result, start)
}

// resolveChannels picks the adapters for the alert: the rule's explicit list
// when present, otherwise the severity defaults, keeping only adapters that
// are enabled, healthy, and accept the alert type.
func (e *Engine) resolveChannels(alert *models.Alert, rule *models.RoutingRule) []channel.Adapter {
	names := channel.DefaultsForSeverity(alert.Severity)
	if rule != nil && len(rule.TargetChannels) > 0 {
		names = rule.TargetChannels
	}

	targets := make([]channel.Adapter, 0, len(names))
	for _, name := range names {
		a, ok := e.byName[name]
		if !ok {
			e.logger.Warn("unknown channel in routing rule", zap.String("channel", name))
			continue
		}
		if !a.IsEnabled() || !a.IsHealthy() || !a.SupportsAlertType(alert.Type) {
			continue
		}
		targets = append(targets, a)
	}
	return targets
}

// resolveUsers returns the admins this alert may reach. A lookup failure falls
// back to the active top-tier role set so a broken admin store cannot silence
// critical alerts.
func (e *Engine) resolveUsers(ctx context.Context, alert *models.Alert, rule *models.RoutingRule) []models.AdminUser {
	var (
		candidates []models.AdminUser
		err        error
	)
	if rule != nil && len(rule.TargetUserIDs) > 0 {
		candidates, err = e.admins.ListByIDs(ctx, rule.TargetUserIDs)
	} else {
		candidates, err = e.admins.ListActiveAdmins(ctx)
	}
	if err != nil {
		e.logger.Error("admin resolution failed, falling back to super admins",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		candidates, err = e.admins.ListActiveByRole(ctx, models.RoleSuperAdmin)
		if err != nil {
			e.logger.Error("super admin fallback lookup failed", zap.Error(err))
			return nil
		}
	}

	eligible := make([]models.AdminUser, 0, len(candidates))
	for i := range candidates {
		u := &candidates[i]
		if e.evaluator.CanReceive(ctx, u, alert) && e.evaluator.IsAvailable(u, alert) {
			eligible = append(eligible, *u)
		}
	}
	return eligible
}

// dispatch fans the send out over a bounded worker pool and collects outcomes
// until all sends report or the routing deadline fires, whichever is first.
func (e *Engine) dispatch(ctx context.Context, alert *models.Alert, targets []channel.Adapter) (success, failed []string) {
	sem := make(chan struct{}, e.cfg.MaxWorkers)
	outcomes := make(chan dispatchOutcome, len(targets))

	for _, a := range targets {
		a := a
		go func() {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes <- dispatchOutcome{channel: a.Name(), err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			outcomes <- dispatchOutcome{channel: a.Name(), err: e.send(ctx, a, alert)}
		}()
	}

	pending := make(map[string]bool, len(targets))
	for _, a := range targets {
		pending[a.Name()] = true
	}

	for len(pending) > 0 {
		select {
		case out := <-outcomes:
			delete(pending, out.channel)
			if out.err != nil {
				e.logger.Error("channel dispatch failed",
					zap.String("alert_id", alert.ID),
					zap.String("channel", out.channel),
					zap.Error(out.err))
				failed = append(failed, out.channel)
			} else {
				success = append(success, out.channel)
			}
		case <-ctx.Done():
			for name := range pending {
				e.logger.Error("channel dispatch timed out",
					zap.String("alert_id", alert.ID),
					zap.String("channel", name))
				failed = append(failed, name)
			}
			return success, failed
		}
	}
	return success, failed
}

func (e *Engine) send(ctx context.Context, a channel.Adapter, alert *models.Alert) error {
	if alert.HighPriority() && a.SupportsHighPriority() {
		return a.SendHighPriorityAlert(ctx, alert)
	}
	return a.SendAlert(ctx, alert)
}

// routeFallback walks the configured fallback channels in order under the
// routing deadline. The first enabled, fallback-capable adapter that delivers
// wins; the result is tagged with the fallback rule name.
func (e *Engine) routeFallback(ctx context.Context, alert *models.Alert, result models.RoutingResult, start time.Time) models.RoutingResult {
	for _, name := range e.cfg.FallbackChannels {
		if ctx.Err() != nil {
			break
		}
		a, ok := e.byName[name]
		if !ok || !a.IsEnabled() || !a.SupportsFallback() {
			continue
		}
		if err := a.SendFallbackAlert(ctx, alert); err != nil {
			e.logger.Error("fallback channel failed",
				zap.String("alert_id", alert.ID),
				zap.String("channel", name),
				zap.Error(err))
			result.FailureChannels = append(result.FailureChannels, name)
			result.FailureCount++
			continue
		}

		result.Success = true
		result.SuccessCount = 1
		result.SuccessChannels = []string{name}
		result.RoutingRuleName = models.FallbackRuleName
		result.TotalDuration = time.Since(start)
		e.logger.Warn("alert delivered through fallback",
			zap.String("alert_id", alert.ID),
			zap.String("channel", name))
		return result
	}

	result.Success = false
	result.Reason = fmt.Sprintf("all channels failed for alert %s, fallback exhausted", alert.ID)
	result.TotalDuration = time.Since(start)
	return result
}
