package repository

import (
	"context"

	"chatwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// FilterApplicationRepository persists the audit trail of rule matches.
// Records are append-only.
type FilterApplicationRepository interface {
	Save(ctx context.Context, app *models.FilterApplication) error
	ListByMessageID(ctx context.Context, messageID string) ([]models.FilterApplication, error)
}

type filterApplicationRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFilterApplicationRepository(db *sqlx.DB, logger *zap.Logger) FilterApplicationRepository {
	return &filterApplicationRepository{db: db, logger: logger}
}

func (r *filterApplicationRepository) Save(ctx context.Context, app *models.FilterApplication) error {
	query := `INSERT INTO filter_applications (message_id, filter_type, matched_rule_id, matched_word, original_type, final_type, confidence_delta, applied_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	return r.db.QueryRowxContext(ctx, query, app.MessageID, app.FilterType, app.MatchedRuleID,
		app.MatchedWord, app.OriginalType, app.FinalType, app.ConfidenceDelta, app.AppliedAt).Scan(&app.ID)
}

func (r *filterApplicationRepository) ListByMessageID(ctx context.Context, messageID string) ([]models.FilterApplication, error) {
	var apps []models.FilterApplication
	query := `SELECT id, message_id, filter_type, matched_rule_id, matched_word, original_type, final_type, confidence_delta, applied_at
	          FROM filter_applications WHERE message_id = $1 ORDER BY applied_at DESC`
	err := r.db.SelectContext(ctx, &apps, query, messageID)
	if err != nil {
		return nil, err
	}
	return apps, nil
}
