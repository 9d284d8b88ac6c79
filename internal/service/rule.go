package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
)

var (
	ErrRuleExists   = errors.New("rule already exists")
	ErrRuleNotFound = errors.New("rule not found")
	ErrInvalidRule  = errors.New("invalid rule")
)

// RuleService manages the curated filter rules and announcement patterns the
// engines read. Creation enforces the uniqueness key: (word, wordType) per
// whitelist rule, (word, wordType, scope) per exception rule.
type RuleService interface {
	ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error)
	ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error)
	CreateRule(ctx context.Context, rule *models.FilterRule) error
	UpdateRule(ctx context.Context, rule *models.FilterRule) error
	DeactivateRule(ctx context.Context, id int64) error
	CreatePattern(ctx context.Context, pattern *models.AnnouncementPattern) error
	DeactivatePattern(ctx context.Context, id int64) error
}

type ruleService struct {
	repo   repository.RuleRepository
	logger *zap.Logger
}

func NewRuleService(repo repository.RuleRepository, logger *zap.Logger) RuleService {
	return &ruleService{repo: repo, logger: logger}
}

func (s *ruleService) ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error) {
	rules, err := s.repo.ListRules(ctx, filterType)
	if err != nil {
		s.logger.Error("failed to list rules", zap.Error(err))
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleService) ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	patterns, err := s.repo.ListPatterns(ctx)
	if err != nil {
		s.logger.Error("failed to list patterns", zap.Error(err))
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	return patterns, nil
}

func (s *ruleService) CreateRule(ctx context.Context, rule *models.FilterRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	existing, err := s.repo.FindRule(ctx, rule.FilterType, rule.Word, rule.WordType, rule.Scope)
	if err != nil {
		s.logger.Error("rule uniqueness check failed", zap.Error(err))
		return fmt.Errorf("failed to check existing rules: %w", err)
	}
	if existing != nil {
		return ErrRuleExists
	}

	rule.Active = true
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		s.logger.Error("failed to create rule", zap.Error(err))
		return fmt.Errorf("failed to create rule: %w", err)
	}

	s.logger.Info("filter rule created",
		zap.Int64("rule_id", rule.ID),
		zap.String("filter_type", rule.FilterType),
		zap.String("word_type", rule.WordType))
	return nil
}

func (s *ruleService) UpdateRule(ctx context.Context, rule *models.FilterRule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	current, err := s.repo.GetRuleByID(ctx, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to load rule: %w", err)
	}
	if current == nil {
		return ErrRuleNotFound
	}

	// The uniqueness key may move; make sure it does not collide with another
	// rule.
	if current.Word != rule.Word || current.WordType != rule.WordType || current.Scope != rule.Scope {
		existing, err := s.repo.FindRule(ctx, current.FilterType, rule.Word, rule.WordType, rule.Scope)
		if err != nil {
			return fmt.Errorf("failed to check existing rules: %w", err)
		}
		if existing != nil && existing.ID != rule.ID {
			return ErrRuleExists
		}
	}

	rule.FilterType = current.FilterType
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		s.logger.Error("failed to update rule", zap.Int64("rule_id", rule.ID), zap.Error(err))
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

func (s *ruleService) DeactivateRule(ctx context.Context, id int64) error {
	current, err := s.repo.GetRuleByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load rule: %w", err)
	}
	if current == nil {
		return ErrRuleNotFound
	}
	return s.repo.DeactivateRule(ctx, id)
}

func (s *ruleService) CreatePattern(ctx context.Context, pattern *models.AnnouncementPattern) error {
	if pattern.Regex == "" {
		return fmt.Errorf("%w: empty regex", ErrInvalidRule)
	}
	if _, err := regexp.Compile(pattern.Regex); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if pattern.ConfidenceWeight < -1 || pattern.ConfidenceWeight > 1 {
		return fmt.Errorf("%w: confidence weight out of range", ErrInvalidRule)
	}

	pattern.Active = true
	if err := s.repo.CreatePattern(ctx, pattern); err != nil {
		s.logger.Error("failed to create pattern", zap.Error(err))
		return fmt.Errorf("failed to create pattern: %w", err)
	}
	return nil
}

func (s *ruleService) DeactivatePattern(ctx context.Context, id int64) error {
	return s.repo.DeactivatePattern(ctx, id)
}

func validateRule(rule *models.FilterRule) error {
	if rule.Word == "" {
		return fmt.Errorf("%w: empty word", ErrInvalidRule)
	}
	switch rule.WordType {
	case models.WordTypeGeneral, models.WordTypeSender, models.WordTypeContentPattern:
	default:
		return fmt.Errorf("%w: unknown word type %q", ErrInvalidRule, rule.WordType)
	}
	switch rule.FilterType {
	case models.FilterTypeWhitelist:
		if rule.Scope != "" {
			return fmt.Errorf("%w: whitelist rules carry no scope", ErrInvalidRule)
		}
	case models.FilterTypeException:
		if rule.Scope == "" {
			return fmt.Errorf("%w: exception rules require a scope", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: unknown filter type %q", ErrInvalidRule, rule.FilterType)
	}
	if rule.IsRegex {
		if _, err := regexp.Compile(rule.Word); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRule, err)
		}
	}
	return nil
}
