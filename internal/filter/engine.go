package filter

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
)

// Confidence adjustments applied on a rule match. A whitelist hit is a strong
// signal, an exception hit a weaker, type-scoped one.
const (
	whitelistConfidenceDelta = -0.8
	exceptionConfidenceDelta = -0.5
)

// Engine rewrites detector verdicts using curated whitelist and exception
// rules. Whitelist rules are always evaluated before exception rules, and
// rules of the same kind in priority-descending then recency-descending order;
// the first match wins. The engine is stateless between calls.
type Engine struct {
	rules        repository.RuleRepository
	applications repository.FilterApplicationRepository
	logger       *zap.Logger
}

func NewEngine(rules repository.RuleRepository, applications repository.FilterApplicationRepository, logger *zap.Logger) *Engine {
	return &Engine{
		rules:        rules,
		applications: applications,
		logger:       logger,
	}
}

// ApplyFilters corrects a raw detector verdict. Any unexpected failure during
// filtering degrades to "no adjustment": the original verdict comes back
// unchanged and the pipeline continues.
func (e *Engine) ApplyFilters(ctx context.Context, messageID, content, senderHash, detectedType string, confidence float64) models.FilterResult {
	detectedType = strings.ToUpper(detectedType)
	unchanged := models.FilterResult{
		OriginalType: detectedType,
		FinalType:    detectedType,
	}

	// Step 1: whitelist rules. A match short-circuits the exception step.
	whitelistRules, err := e.rules.ListActiveWhitelistRules(ctx)
	if err != nil {
		e.logger.Error("Failed to load whitelist rules, skipping filter adjustment",
			zap.String("message_id", messageID), zap.Error(err))
		return unchanged
	}

	if rule, word := e.firstMatch(whitelistRules, content, senderHash); rule != nil {
		return e.adjusted(ctx, messageID, detectedType, rule, word, whitelistConfidenceDelta)
	}

	// Step 2: exception rules, only when something was actually detected.
	if detectedType == models.DetectionNormal {
		return unchanged
	}

	exceptionRules, err := e.rules.ListActiveExceptionRules(ctx, detectedType)
	if err != nil {
		e.logger.Error("Failed to load exception rules, skipping filter adjustment",
			zap.String("message_id", messageID), zap.Error(err))
		return unchanged
	}

	if rule, word := e.firstMatch(exceptionRules, content, senderHash); rule != nil {
		return e.adjusted(ctx, messageID, detectedType, rule, word, exceptionConfidenceDelta)
	}

	return unchanged
}

// firstMatch walks rules in the repository's priority order and returns the
// first one whose word matches the selected message field.
func (e *Engine) firstMatch(rules []models.FilterRule, content, senderHash string) (*models.FilterRule, string) {
	for i := range rules {
		rule := &rules[i]
		field := rule.SelectField(content, senderHash)
		matched, word := matchRule(rule, field)
		if !matched {
			continue
		}
		return rule, word
	}
	return nil, ""
}

// adjusted builds the rewritten result and records the audit trail. A failed
// audit write is logged but does not undo the adjustment.
func (e *Engine) adjusted(ctx context.Context, messageID, originalType string, rule *models.FilterRule, matchedWord string, delta float64) models.FilterResult {
	app := models.FilterApplication{
		MessageID:       messageID,
		FilterType:      rule.FilterType,
		MatchedRuleID:   rule.ID,
		MatchedWord:     matchedWord,
		OriginalType:    originalType,
		FinalType:       models.DetectionNormal,
		ConfidenceDelta: delta,
		AppliedAt:       time.Now(),
	}

	if err := e.applications.Save(ctx, &app); err != nil {
		e.logger.Error("Failed to persist filter application",
			zap.String("message_id", messageID),
			zap.Int64("rule_id", rule.ID),
			zap.Error(err))
	}

	e.logger.Info("Verdict adjusted by filter rule",
		zap.String("message_id", messageID),
		zap.String("filter_type", rule.FilterType),
		zap.Int64("rule_id", rule.ID),
		zap.String("original_type", originalType),
		zap.Float64("confidence_delta", delta))

	return models.FilterResult{
		OriginalType:    originalType,
		FinalType:       models.DetectionNormal,
		ConfidenceDelta: delta,
		AppliedRules:    []models.FilterApplication{app},
	}
}

// matchRule tests the rule's word against the selected field and returns the
// matched fragment. Literal words use substring matching, case-insensitive
// unless the rule says otherwise; regex rules compile on every call since the
// rule set is small and reloaded per message.
func matchRule(rule *models.FilterRule, field string) (bool, string) {
	if rule.Word == "" || field == "" {
		return false, ""
	}

	if rule.IsRegex {
		expr := rule.Word
		if !rule.CaseSensitive && !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			// Broken rules are skipped, not fatal.
			return false, ""
		}
		if loc := re.FindString(field); loc != "" {
			return true, loc
		}
		return false, ""
	}

	if rule.CaseSensitive {
		if strings.Contains(field, rule.Word) {
			return true, rule.Word
		}
		return false, ""
	}
	if strings.Contains(strings.ToLower(field), strings.ToLower(rule.Word)) {
		return true, rule.Word
	}
	return false, ""
}
