package repository

import (
	"context"
	"database/sql"
	"errors"

	"chatwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// RuleRepository is the read/write boundary for filter rules and announcement
// patterns. Listings return active rows ordered by priority descending, then
// creation time descending; the engines rely on that order (first match wins).
type RuleRepository interface {
	ListActiveWhitelistRules(ctx context.Context) ([]models.FilterRule, error)
	ListActiveExceptionRules(ctx context.Context, detectionType string) ([]models.FilterRule, error)
	ListActivePatterns(ctx context.Context) ([]models.AnnouncementPattern, error)
	ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error)
	ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error)
	GetRuleByID(ctx context.Context, id int64) (*models.FilterRule, error)
	FindRule(ctx context.Context, filterType, word, wordType, scope string) (*models.FilterRule, error)
	CreateRule(ctx context.Context, rule *models.FilterRule) error
	UpdateRule(ctx context.Context, rule *models.FilterRule) error
	DeactivateRule(ctx context.Context, id int64) error
	CreatePattern(ctx context.Context, pattern *models.AnnouncementPattern) error
	DeactivatePattern(ctx context.Context, id int64) error
}

type ruleRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewRuleRepository(db *sqlx.DB, logger *zap.Logger) RuleRepository {
	return &ruleRepository{db: db, logger: logger}
}

const ruleColumns = `id, filter_type, word, word_type, is_regex, case_sensitive, priority, scope, active, created_at`

func (r *ruleRepository) ListActiveWhitelistRules(ctx context.Context) ([]models.FilterRule, error) {
	var rules []models.FilterRule
	query := `SELECT ` + ruleColumns + ` FROM filter_rules
	          WHERE filter_type = $1 AND active = true
	          ORDER BY priority DESC, created_at DESC`
	err := r.db.SelectContext(ctx, &rules, query, models.FilterTypeWhitelist)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) ListActiveExceptionRules(ctx context.Context, detectionType string) ([]models.FilterRule, error) {
	var rules []models.FilterRule
	query := `SELECT ` + ruleColumns + ` FROM filter_rules
	          WHERE filter_type = $1 AND active = true AND scope IN ($2, $3)
	          ORDER BY priority DESC, created_at DESC`
	err := r.db.SelectContext(ctx, &rules, query, models.FilterTypeException, models.ScopeAll, detectionType)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) ListActivePatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	var patterns []models.AnnouncementPattern
	query := `SELECT id, regex, confidence_weight, category, priority, active, created_at
	          FROM announcement_patterns
	          WHERE active = true
	          ORDER BY priority DESC, created_at DESC`
	err := r.db.SelectContext(ctx, &patterns, query)
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

// ListRules is the management-side listing: every rule, newest first,
// optionally narrowed to one filter type. Deactivated rows are included.
func (r *ruleRepository) ListRules(ctx context.Context, filterType string) ([]models.FilterRule, error) {
	var rules []models.FilterRule
	query := `SELECT ` + ruleColumns + ` FROM filter_rules
	          WHERE ($1 = '' OR filter_type = $1)
	          ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &rules, query, filterType)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) ListPatterns(ctx context.Context) ([]models.AnnouncementPattern, error) {
	var patterns []models.AnnouncementPattern
	query := `SELECT id, regex, confidence_weight, category, priority, active, created_at
	          FROM announcement_patterns
	          ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &patterns, query)
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

func (r *ruleRepository) GetRuleByID(ctx context.Context, id int64) (*models.FilterRule, error) {
	var rule models.FilterRule
	query := `SELECT ` + ruleColumns + ` FROM filter_rules WHERE id = $1`
	err := r.db.GetContext(ctx, &rule, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Rule not found
		}
		return nil, err
	}
	return &rule, nil
}

// FindRule looks up a rule by its uniqueness key: (word, wordType) for
// whitelist rules, (word, wordType, scope) for exception rules.
func (r *ruleRepository) FindRule(ctx context.Context, filterType, word, wordType, scope string) (*models.FilterRule, error) {
	var rule models.FilterRule
	query := `SELECT ` + ruleColumns + ` FROM filter_rules
	          WHERE filter_type = $1 AND word = $2 AND word_type = $3 AND scope = $4`
	err := r.db.GetContext(ctx, &rule, query, filterType, word, wordType, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) CreateRule(ctx context.Context, rule *models.FilterRule) error {
	query := `INSERT INTO filter_rules (filter_type, word, word_type, is_regex, case_sensitive, priority, scope, active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query, rule.FilterType, rule.Word, rule.WordType, rule.IsRegex,
		rule.CaseSensitive, rule.Priority, rule.Scope, rule.Active).Scan(&rule.ID, &rule.CreatedAt)
}

func (r *ruleRepository) UpdateRule(ctx context.Context, rule *models.FilterRule) error {
	query := `UPDATE filter_rules
	          SET word = $1, word_type = $2, is_regex = $3, case_sensitive = $4, priority = $5, scope = $6, active = $7
	          WHERE id = $8`
	result, err := r.db.ExecContext(ctx, query, rule.Word, rule.WordType, rule.IsRegex,
		rule.CaseSensitive, rule.Priority, rule.Scope, rule.Active, rule.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ruleRepository) DeactivateRule(ctx context.Context, id int64) error {
	query := `UPDATE filter_rules SET active = false WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func (r *ruleRepository) CreatePattern(ctx context.Context, pattern *models.AnnouncementPattern) error {
	query := `INSERT INTO announcement_patterns (regex, confidence_weight, category, priority, active)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, query, pattern.Regex, pattern.ConfidenceWeight,
		pattern.Category, pattern.Priority, pattern.Active).Scan(&pattern.ID, &pattern.CreatedAt)
}

func (r *ruleRepository) DeactivatePattern(ctx context.Context, id int64) error {
	query := `UPDATE announcement_patterns SET active = false WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
