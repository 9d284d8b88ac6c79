package repository

import (
	"context"

	"chatwatch/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AdminRepository reads administrator accounts and their permission groups.
type AdminRepository interface {
	ListActiveAdmins(ctx context.Context) ([]models.AdminUser, error)
	ListActiveByRole(ctx context.Context, role string) ([]models.AdminUser, error)
	ListByIDs(ctx context.Context, ids []int64) ([]models.AdminUser, error)
	ListGroupsForUser(ctx context.Context, userID int64) ([]models.PermissionGroup, error)
}

type adminRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewAdminRepository(db *sqlx.DB, logger *zap.Logger) AdminRepository {
	return &adminRepository{db: db, logger: logger}
}

const adminColumns = `id, username, role, active, notification_enabled, allowed_alert_types, min_severity, receive_high_priority_only, availability_status, last_active_at`

func (r *adminRepository) ListActiveAdmins(ctx context.Context) ([]models.AdminUser, error) {
	var admins []models.AdminUser
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE active = true`
	err := r.db.SelectContext(ctx, &admins, query)
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *adminRepository) ListActiveByRole(ctx context.Context, role string) ([]models.AdminUser, error) {
	var admins []models.AdminUser
	query := `SELECT ` + adminColumns + ` FROM admin_users WHERE active = true AND role = $1`
	err := r.db.SelectContext(ctx, &admins, query, role)
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *adminRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.AdminUser, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT `+adminColumns+` FROM admin_users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var admins []models.AdminUser
	err = r.db.SelectContext(ctx, &admins, query, args...)
	if err != nil {
		return nil, err
	}
	return admins, nil
}

func (r *adminRepository) ListGroupsForUser(ctx context.Context, userID int64) ([]models.PermissionGroup, error) {
	var groups []models.PermissionGroup
	query := `SELECT g.id, g.name, g.allowed_alert_types, g.min_severity, g.active_hours_start, g.active_hours_end, g.active, g.created_at
	          FROM permission_groups g
	          JOIN permission_group_members m ON m.group_id = g.id
	          WHERE m.user_id = $1`
	err := r.db.SelectContext(ctx, &groups, query, userID)
	if err != nil {
		return nil, err
	}
	return groups, nil
}
