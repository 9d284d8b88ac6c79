package channel

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"chatwatch/internal/models"
)

// TelegramAdapter delivers alerts to an admin chat through the Bot API. Sends
// are rate limited because Telegram rejects bursts to a single chat.
type TelegramAdapter struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	enabled bool
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewTelegramAdapter(token string, chatID int64, ratePerSecond float64, enabled bool, logger *zap.Logger) (*TelegramAdapter, error) {
	a := &TelegramAdapter{
		chatID:  chatID,
		enabled: enabled,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		logger:  logger,
	}
	if !enabled {
		return a, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	a.bot = bot

	logger.Info("telegram adapter ready", zap.String("bot", bot.Self.UserName))
	return a, nil
}

func (a *TelegramAdapter) Name() string { return NameTelegram }

func (a *TelegramAdapter) IsEnabled() bool { return a.enabled }

func (a *TelegramAdapter) IsHealthy() bool { return a.bot != nil }

func (a *TelegramAdapter) SupportsAlertType(alertType string) bool { return true }

func (a *TelegramAdapter) SupportsHighPriority() bool { return true }

func (a *TelegramAdapter) SupportsFallback() bool { return true }

func (a *TelegramAdapter) SendAlert(ctx context.Context, alert *models.Alert) error {
	return a.send(ctx, alert, formatAlertText(alert))
}

func (a *TelegramAdapter) SendHighPriorityAlert(ctx context.Context, alert *models.Alert) error {
	return a.send(ctx, alert, "\U0001F6A8 "+formatAlertText(alert))
}

func (a *TelegramAdapter) SendFallbackAlert(ctx context.Context, alert *models.Alert) error {
	return a.send(ctx, alert, "[fallback] "+formatAlertText(alert))
}

func (a *TelegramAdapter) send(ctx context.Context, alert *models.Alert, text string) error {
	if a.bot == nil {
		return fmt.Errorf("telegram bot is not configured")
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit wait: %w", err)
	}

	msg := tgbotapi.NewMessage(a.chatID, text)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	err := backoff.Retry(func() error {
		_, sendErr := a.bot.Send(msg)
		return sendErr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		a.logger.Error("telegram send failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return fmt.Errorf("failed to send telegram alert: %w", err)
	}
	return nil
}
