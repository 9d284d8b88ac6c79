package models

import (
	"strings"
	"time"
)

// Admin roles, from the highest tier down.
const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
	RoleModerator  = "MODERATOR"
)

// Availability statuses an admin can set.
const (
	StatusAvailable = "AVAILABLE"
	StatusBusy      = "BUSY"
	StatusAway      = "AWAY"
	StatusDND       = "DND"
)

// AdminUser represents an administrator stored in the 'admin_users' table.
// AllowedAlertTypes is a comma-separated list in the database; empty means no
// per-type restriction.
type AdminUser struct {
	ID                      int64     `db:"id" json:"id"`
	Username                string    `db:"username" json:"username"`
	Role                    string    `db:"role" json:"role"`
	Active                  bool      `db:"active" json:"active"`
	NotificationEnabled     bool      `db:"notification_enabled" json:"notification_enabled"`
	AllowedAlertTypes       string    `db:"allowed_alert_types" json:"allowed_alert_types"`
	MinSeverity             string    `db:"min_severity" json:"min_severity"`
	ReceiveHighPriorityOnly bool      `db:"receive_high_priority_only" json:"receive_high_priority_only"`
	AvailabilityStatus      string    `db:"availability_status" json:"availability_status"`
	LastActiveAt            time.Time `db:"last_active_at" json:"last_active_at"`
}

// AllowedTypes splits the comma-separated allowed-type list. A nil result
// means the user accepts every alert type.
func (u *AdminUser) AllowedTypes() []string {
	if u.AllowedAlertTypes == "" {
		return nil
	}
	parts := strings.Split(u.AllowedAlertTypes, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// PermissionGroup is an optional grouping of admins with its own alert-type,
// severity, and active-hours restrictions. Membership in any group that allows
// an alert is sufficient; base role/type/severity checks still apply.
type PermissionGroup struct {
	ID                int64     `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	AllowedAlertTypes string    `db:"allowed_alert_types" json:"allowed_alert_types"`
	MinSeverity       string    `db:"min_severity" json:"min_severity"`
	ActiveHoursStart  int       `db:"active_hours_start" json:"active_hours_start"`
	ActiveHoursEnd    int       `db:"active_hours_end" json:"active_hours_end"`
	Active            bool      `db:"active" json:"active"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// AllowedTypes splits the group's comma-separated allowed-type list.
func (g *PermissionGroup) AllowedTypes() []string {
	if g.AllowedAlertTypes == "" {
		return nil
	}
	parts := strings.Split(g.AllowedAlertTypes, ",")
	types := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			types = append(types, t)
		}
	}
	return types
}
