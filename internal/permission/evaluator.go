package permission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/models"
	"chatwatch/internal/repository"
)

// gateResult is the tri-state outcome of a single permission gate.
type gateResult int

const (
	gatePass gateResult = iota
	gateFail
	// gateIndeterminate means the gate could not be evaluated; each gate has
	// its own documented reduction rule (deny for role/type/severity, allow
	// for the group gate).
	gateIndeterminate
)

// Alert types reserved for the top role tier when combined with top severity.
var securityAlertTypes = map[string]bool{
	models.DetectionAbuse: true,
}

// Alert types the moderator tier may always receive.
var moderatorAlertTypes = map[string]bool{
	models.DetectionAdvertisement: true,
	models.DetectionAnnouncement:  true,
}

// staleAfter restricts users with no recent activity to top-priority delivery.
const staleAfter = time.Hour

// Config carries the availability window settings.
type Config struct {
	WorkHoursStart    int
	WorkHoursEnd      int
	EmergencyOverride bool
}

// Evaluator decides, per admin user, whether a given alert may reach them and
// whether they can be disturbed right now. CanReceive is a conjunction of four
// named gates kept as an explicit ordered list so the fail-open exception on
// the group gate stays auditable.
type Evaluator struct {
	admins repository.AdminRepository
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewEvaluator(admins repository.AdminRepository, cfg Config, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		admins: admins,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

type gate struct {
	name  string
	check func(ctx context.Context, user *models.AdminUser, alert *models.Alert) gateResult
	// failOpen controls the reduction of gateIndeterminate: true resolves to
	// pass, false to fail.
	failOpen bool
}

// CanReceive reports whether the alert may reach the user. All gates must
// pass. An indeterminate role/type/severity gate denies (fail-closed); an
// indeterminate group gate allows (fail-open), since a broken group lookup
// must not silently suppress alerting admins who would otherwise qualify.
func (e *Evaluator) CanReceive(ctx context.Context, user *models.AdminUser, alert *models.Alert) bool {
	gates := []gate{
		{name: "role", check: e.roleGate, failOpen: false},
		{name: "type", check: e.typeGate, failOpen: false},
		{name: "severity", check: e.severityGate, failOpen: false},
		{name: "group", check: e.groupGate, failOpen: true},
	}

	for _, g := range gates {
		result := g.check(ctx, user, alert)
		if result == gateIndeterminate {
			e.logger.Warn("Permission gate indeterminate",
				zap.String("gate", g.name),
				zap.Int64("user_id", user.ID),
				zap.String("alert_id", alert.ID),
				zap.Bool("fail_open", g.failOpen))
			if g.failOpen {
				continue
			}
			return false
		}
		if result == gateFail {
			return false
		}
	}
	return true
}

// roleGate: the top tier passes unconditionally; the mid tier is shut out of
// top-severity security alerts; moderators are limited to business alert
// types or sub-critical severity; everyone else only sees normal-type,
// sub-critical alerts.
func (e *Evaluator) roleGate(ctx context.Context, user *models.AdminUser, alert *models.Alert) gateResult {
	topSeverity := models.SeverityRank(alert.Severity) >= models.SeverityRank(models.SeverityCritical)

	switch user.Role {
	case models.RoleSuperAdmin:
		return gatePass
	case models.RoleAdmin:
		if securityAlertTypes[alert.Type] && topSeverity {
			return gateFail
		}
		return gatePass
	case models.RoleModerator:
		if moderatorAlertTypes[alert.Type] || !topSeverity {
			return gatePass
		}
		return gateFail
	default:
		if alert.Type == models.DetectionNormal && !topSeverity {
			return gatePass
		}
		return gateFail
	}
}

// typeGate: an explicit allowed-type list restricts the user to its members.
func (e *Evaluator) typeGate(ctx context.Context, user *models.AdminUser, alert *models.Alert) gateResult {
	allowed := user.AllowedTypes()
	if allowed == nil {
		return gatePass
	}
	for _, t := range allowed {
		if t == alert.Type {
			return gatePass
		}
	}
	return gateFail
}

// severityGate: high-priority-only users get only top-severity alerts;
// otherwise a configured minimum severity sets the floor.
func (e *Evaluator) severityGate(ctx context.Context, user *models.AdminUser, alert *models.Alert) gateResult {
	if user.ReceiveHighPriorityOnly {
		if alert.Severity == models.SeverityCritical {
			return gatePass
		}
		return gateFail
	}
	if user.MinSeverity != "" {
		if models.SeverityRank(alert.Severity) >= models.SeverityRank(user.MinSeverity) {
			return gatePass
		}
		return gateFail
	}
	return gatePass
}

// groupGate: membership in any active group that allows the alert is
// sufficient; users with no group memberships pass by default. A failed group
// lookup is indeterminate and reduces to allow.
func (e *Evaluator) groupGate(ctx context.Context, user *models.AdminUser, alert *models.Alert) gateResult {
	groups, err := e.admins.ListGroupsForUser(ctx, user.ID)
	if err != nil {
		return gateIndeterminate
	}

	active := groups[:0]
	for _, g := range groups {
		if g.Active {
			active = append(active, g)
		}
	}
	if len(active) == 0 {
		return gatePass
	}

	for i := range active {
		if e.groupAllows(&active[i], alert) {
			return gatePass
		}
	}
	return gateFail
}

func (e *Evaluator) groupAllows(group *models.PermissionGroup, alert *models.Alert) bool {
	if allowed := group.AllowedTypes(); allowed != nil {
		found := false
		for _, t := range allowed {
			if t == alert.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if group.MinSeverity != "" &&
		models.SeverityRank(alert.Severity) < models.SeverityRank(group.MinSeverity) {
		return false
	}
	if group.ActiveHoursStart != group.ActiveHoursEnd {
		hour := e.now().Hour()
		if !hourInWindow(hour, group.ActiveHoursStart, group.ActiveHoursEnd) {
			return false
		}
	}
	return true
}

// IsAvailable reports whether the user can be disturbed with this alert right
// now. Outside configured work hours only the top tier is reachable unless the
// emergency override is set; a user inactive for more than an hour only gets
// top-priority deliveries regardless of status.
func (e *Evaluator) IsAvailable(user *models.AdminUser, alert *models.Alert) bool {
	if !user.Active || !user.NotificationEnabled {
		return false
	}

	now := e.now()
	if e.cfg.WorkHoursStart != e.cfg.WorkHoursEnd &&
		!hourInWindow(now.Hour(), e.cfg.WorkHoursStart, e.cfg.WorkHoursEnd) {
		if user.Role != models.RoleSuperAdmin && !e.cfg.EmergencyOverride {
			return false
		}
	}

	switch user.AvailabilityStatus {
	case models.StatusBusy:
		if !alert.HighPriority() {
			return false
		}
	case models.StatusAway, models.StatusDND:
		return false
	}

	// Stale users only get top-priority deliveries, whatever their status.
	if !user.LastActiveAt.IsZero() && now.Sub(user.LastActiveAt) > staleAfter {
		if !alert.HighPriority() {
			return false
		}
	}
	return true
}

func hourInWindow(hour, start, end int) bool {
	if start < end {
		return hour >= start && hour < end
	}
	// Window wraps midnight.
	return hour >= start || hour < end
}
