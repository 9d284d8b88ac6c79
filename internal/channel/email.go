package channel

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"chatwatch/internal/models"
)

// EmailAdapter delivers alerts over SMTP. Email is too slow for the fallback
// sequence, so SupportsFallback reports false.
type EmailAdapter struct {
	dialer  *gomail.Dialer
	from    string
	to      []string
	enabled bool
	logger  *zap.Logger
}

func NewEmailAdapter(host string, port int, username, password, from string, to []string, enabled bool, logger *zap.Logger) *EmailAdapter {
	return &EmailAdapter{
		dialer:  gomail.NewDialer(host, port, username, password),
		from:    from,
		to:      to,
		enabled: enabled,
		logger:  logger,
	}
}

func (a *EmailAdapter) Name() string { return NameEmail }

func (a *EmailAdapter) IsEnabled() bool { return a.enabled }

func (a *EmailAdapter) IsHealthy() bool { return len(a.to) > 0 }

func (a *EmailAdapter) SupportsAlertType(alertType string) bool { return true }

func (a *EmailAdapter) SupportsHighPriority() bool { return true }

func (a *EmailAdapter) SupportsFallback() bool { return false }

func (a *EmailAdapter) SendAlert(ctx context.Context, alert *models.Alert) error {
	subject := fmt.Sprintf("[%s] %s", alert.Severity, alert.Title)
	return a.send(ctx, alert, subject)
}

func (a *EmailAdapter) SendHighPriorityAlert(ctx context.Context, alert *models.Alert) error {
	subject := fmt.Sprintf("[URGENT][%s] %s", alert.Severity, alert.Title)
	return a.send(ctx, alert, subject)
}

func (a *EmailAdapter) SendFallbackAlert(ctx context.Context, alert *models.Alert) error {
	return fmt.Errorf("email channel does not support fallback delivery")
}

func (a *EmailAdapter) send(ctx context.Context, alert *models.Alert, subject string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", a.from)
	msg.SetHeader("To", a.to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", formatAlertText(alert))

	if err := a.dialer.DialAndSend(msg); err != nil {
		a.logger.Error("email send failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	return nil
}
