package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"chatwatch/internal/models"
)

// WebhookAdapter posts the alert as JSON to a configured endpoint.
type WebhookAdapter struct {
	url        string
	enabled    bool
	httpClient *http.Client
	logger     *zap.Logger
}

func NewWebhookAdapter(url string, enabled bool, logger *zap.Logger) *WebhookAdapter {
	return &WebhookAdapter{
		url:        url,
		enabled:    enabled,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

func (a *WebhookAdapter) Name() string { return NameWebhook }

func (a *WebhookAdapter) IsEnabled() bool { return a.enabled }

func (a *WebhookAdapter) IsHealthy() bool { return a.url != "" }

func (a *WebhookAdapter) SupportsAlertType(alertType string) bool { return true }

func (a *WebhookAdapter) SupportsHighPriority() bool { return false }

func (a *WebhookAdapter) SupportsFallback() bool { return true }

func (a *WebhookAdapter) SendAlert(ctx context.Context, alert *models.Alert) error {
	return a.post(ctx, alert, false)
}

func (a *WebhookAdapter) SendHighPriorityAlert(ctx context.Context, alert *models.Alert) error {
	return a.post(ctx, alert, false)
}

func (a *WebhookAdapter) SendFallbackAlert(ctx context.Context, alert *models.Alert) error {
	return a.post(ctx, alert, true)
}

func (a *WebhookAdapter) post(ctx context.Context, alert *models.Alert, fallback bool) error {
	payload := struct {
		*models.Alert
		Fallback bool `json:"fallback,omitempty"`
	}{Alert: alert, Fallback: fallback}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.logger.Error("webhook send failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
