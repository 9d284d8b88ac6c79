package repository

import (
	"context"
	"database/sql"
	"errors"

	"chatwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// AlertRepository persists alerts and the routing results recorded for them.
type AlertRepository interface {
	SaveAlert(ctx context.Context, alert *models.Alert) error
	GetAlertByID(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context, status, alertType string) ([]models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id, status string) error
	SaveRoutingResult(ctx context.Context, result *models.RoutingResult) error
	GetActiveRoutingRule(ctx context.Context, alertType string) (*models.RoutingRule, error)
}

type alertRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAlertRepository(db *sqlx.DB, logger *zap.Logger) AlertRepository {
	return &alertRepository{db: db, logger: logger}
}

func (r *alertRepository) SaveAlert(ctx context.Context, alert *models.Alert) error {
	query := `INSERT INTO alerts (id, message_id, chat_room_id, alert_type, severity, title, body, status, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, alert.ID, alert.MessageID, alert.ChatRoomID,
		alert.Type, alert.Severity, alert.Title, alert.Body, alert.Status, alert.CreatedAt)
	return err
}

func (r *alertRepository) GetAlertByID(ctx context.Context, id string) (*models.Alert, error) {
	var alert models.Alert
	query := `SELECT id, message_id, chat_room_id, alert_type, severity, title, body, status, created_at
	          FROM alerts WHERE id = $1`
	err := r.db.GetContext(ctx, &alert, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Alert not found
		}
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ListAlerts(ctx context.Context, status, alertType string) ([]models.Alert, error) {
	var alerts []models.Alert
	query := `SELECT id, message_id, chat_room_id, alert_type, severity, title, body, status, created_at
	          FROM alerts
	          WHERE ($1 = '' OR status = $1) AND ($2 = '' OR alert_type = $2)
	          ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &alerts, query, status, alertType)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) UpdateAlertStatus(ctx context.Context, id, status string) error {
	query := `UPDATE alerts SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *alertRepository) SaveRoutingResult(ctx context.Context, result *models.RoutingResult) error {
	query := `INSERT INTO routing_results (alert_id, success, suppressed, success_count, failure_count, success_channels, failure_channels, total_duration_ms, routing_rule_name, reason, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query, result.AlertID, result.Success, result.Suppressed,
		result.SuccessCount, result.FailureCount,
		pq.Array(result.SuccessChannels), pq.Array(result.FailureChannels),
		result.TotalDuration.Milliseconds(), result.RoutingRuleName, result.Reason, result.Timestamp)
	return err
}

func (r *alertRepository) GetActiveRoutingRule(ctx context.Context, alertType string) (*models.RoutingRule, error) {
	var rule models.RoutingRule
	query := `SELECT id, name, active, created_at FROM routing_rules
	          WHERE active = true AND alert_type = $1
	          ORDER BY created_at DESC LIMIT 1`
	err := r.db.GetContext(ctx, &rule, query, alertType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No rule configured; severity defaults apply
		}
		return nil, err
	}

	var channels []string
	err = r.db.SelectContext(ctx, &channels,
		`SELECT channel FROM routing_rule_channels WHERE rule_id = $1`, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.TargetChannels = channels

	var userIDs []int64
	err = r.db.SelectContext(ctx, &userIDs,
		`SELECT user_id FROM routing_rule_users WHERE rule_id = $1`, rule.ID)
	if err != nil {
		return nil, err
	}
	rule.TargetUserIDs = userIDs

	return &rule, nil
}
