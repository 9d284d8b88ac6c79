package channel

import (
	"context"
	"fmt"
	"strings"

	"chatwatch/internal/models"
)

// Channel names as stored in routing rules and results.
const (
	NameTelegram = "TELEGRAM"
	NameEmail    = "EMAIL"
	NameWebhook  = "WEBHOOK"
	NameConsole  = "CONSOLE"
)

// Adapter is a delivery channel an alert can be dispatched through.
type Adapter interface {
	Name() string
	IsEnabled() bool
	IsHealthy() bool
	SupportsAlertType(alertType string) bool
	SupportsHighPriority() bool
	SupportsFallback() bool
	SendAlert(ctx context.Context, alert *models.Alert) error
	SendHighPriorityAlert(ctx context.Context, alert *models.Alert) error
	SendFallbackAlert(ctx context.Context, alert *models.Alert) error
}

// DefaultsForSeverity returns the channel set used when a routing rule does
// not name explicit targets.
func DefaultsForSeverity(severity string) []string {
	switch severity {
	case models.SeverityCritical:
		return []string{NameTelegram, NameEmail, NameWebhook}
	case models.SeverityHigh:
		return []string{NameTelegram, NameEmail}
	case models.SeverityMedium:
		return []string{NameTelegram}
	default:
		return []string{NameConsole}
	}
}

func formatAlertText(alert *models.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", alert.Severity, alert.Title)
	fmt.Fprintf(&b, "Type: %s\n", alert.Type)
	fmt.Fprintf(&b, "Room: %s\n", alert.ChatRoomID)
	if alert.Body != "" {
		fmt.Fprintf(&b, "\n%s", alert.Body)
	}
	return b.String()
}
