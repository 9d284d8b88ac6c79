package models

import "time"

// Alert lifecycle statuses.
const (
	AlertStatusNew        = "NEW"
	AlertStatusDispatched = "DISPATCHED"
	AlertStatusSuppressed = "SUPPRESSED"
	AlertStatusFailed     = "FAILED"
)

// Alert is a notification about an abnormal message, addressed to
// administrators and dispatched through one or more channels.
type Alert struct {
	ID         string    `db:"id" json:"id"`
	MessageID  string    `db:"message_id" json:"message_id"`
	ChatRoomID string    `db:"chat_room_id" json:"chat_room_id"`
	Type       string    `db:"alert_type" json:"alert_type"`
	Severity   string    `db:"severity" json:"severity"`
	Title      string    `db:"title" json:"title"`
	Body       string    `db:"body" json:"body"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HighPriority reports whether the alert should take the high-priority send
// path on adapters that support one.
func (a *Alert) HighPriority() bool {
	return a.Severity == SeverityCritical
}

// RoutingRule names the channels and users an alert class should reach.
// Empty target lists mean "derive from severity defaults".
type RoutingRule struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	TargetChannels []string  `db:"-" json:"target_channels"`
	TargetUserIDs  []int64   `db:"-" json:"target_user_ids"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// FallbackRuleName tags routing results produced by the fallback sequence.
const FallbackRuleName = "FALLBACK"

// RoutingResult is the immutable summary of one routing call.
type RoutingResult struct {
	Success         bool          `json:"success"`
	Suppressed      bool          `json:"suppressed"`
	SuccessCount    int           `json:"success_count"`
	FailureCount    int           `json:"failure_count"`
	SuccessChannels []string      `json:"success_channels"`
	FailureChannels []string      `json:"failure_channels"`
	TotalDuration   time.Duration `json:"total_duration_ms"`
	AlertID         string        `json:"alert_id"`
	RoutingRuleName string        `json:"routing_rule_name"`
	Reason          string        `json:"reason,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// FullySuccessful reports whether every targeted channel accepted the alert.
// Partial deliveries and fallback rescues still count as dispatched but not
// as a clean send.
func (r *RoutingResult) FullySuccessful() bool {
	return r.Success && r.FailureCount == 0 && r.RoutingRuleName != FallbackRuleName
}
