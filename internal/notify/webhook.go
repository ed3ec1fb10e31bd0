package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// WebhookEvent is the JSON body POSTed to a tenant's webhook endpoint.
type WebhookEvent struct {
	Event     string    `json:"event"`
	ProjectID int64     `json:"project_id"`
	ContentID *int64    `json:"content_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookClient delivers one event to one endpoint.
type WebhookClient interface {
	Send(ctx context.Context, url string, event WebhookEvent) error
}

type HTTPWebhookSender struct {
	httpc *http.Client
}

var _ WebhookClient = (*HTTPWebhookSender)(nil)

func NewHTTPWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		httpc: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPWebhookSender) Send(ctx context.Context, url string, event WebhookEvent) error {
	log := logger.FromContext(ctx)

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "arvision-notifier/1.0")

	resp, err := s.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook endpoint returned %d: %s", resp.StatusCode, snippet)
	}

	log.Info("webhook delivered", "event", event.Event, "status", resp.StatusCode)
	return nil
}

// EventName maps a notification kind to its wire event name.
func EventName(kind db.NotificationKind) string {
	switch kind {
	case db.NotificationExpirationWarning:
		return "project.expiring"
	case db.NotificationProjectExpired:
		return "project.expired"
	default:
		return string(kind)
	}
}
