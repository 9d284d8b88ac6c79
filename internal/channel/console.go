package channel

import (
	"context"

	"go.uber.org/zap"

	"chatwatch/internal/models"
)

// ConsoleAdapter writes alerts to the process log. It is the last resort in
// the fallback sequence and never fails.
type ConsoleAdapter struct {
	enabled bool
	logger  *zap.Logger
}

func NewConsoleAdapter(enabled bool, logger *zap.Logger) *ConsoleAdapter {
	return &ConsoleAdapter{enabled: enabled, logger: logger}
}

func (a *ConsoleAdapter) Name() string { return NameConsole }

func (a *ConsoleAdapter) IsEnabled() bool { return a.enabled }

func (a *ConsoleAdapter) IsHealthy() bool { return true }

func (a *ConsoleAdapter) SupportsAlertType(alertType string) bool { return true }

func (a *ConsoleAdapter) SupportsHighPriority() bool { return true }

func (a *ConsoleAdapter) SupportsFallback() bool { return true }

func (a *ConsoleAdapter) SendAlert(ctx context.Context, alert *models.Alert) error {
	a.log("alert", alert)
	return nil
}

func (a *ConsoleAdapter) SendHighPriorityAlert(ctx context.Context, alert *models.Alert) error {
	a.log("high priority alert", alert)
	return nil
}

func (a *ConsoleAdapter) SendFallbackAlert(ctx context.Context, alert *models.Alert) error {
	a.log("fallback alert", alert)
	return nil
}

func (a *ConsoleAdapter) log(msg string, alert *models.Alert) {
	a.logger.Warn(msg,
		zap.String("alert_id", alert.ID),
		zap.String("type", alert.Type),
		zap.String("severity", alert.Severity),
		zap.String("chat_room", alert.ChatRoomID),
		zap.String("title", alert.Title))
}
