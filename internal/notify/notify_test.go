package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fegerV/ARV-sub005/internal/db"
)

type fakeEmail struct {
	calls []string
	err   error
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, htmlBody string) error {
	f.calls = append(f.calls, to)
	return f.err
}

type fakeWebhook struct {
	calls []WebhookEvent
	err   error
}

func (f *fakeWebhook) Send(ctx context.Context, url string, event WebhookEvent) error {
	f.calls = append(f.calls, event)
	return f.err
}

func strPtr(s string) *string { return &s }

func TestDispatcherSendsBothChannels(t *testing.T) {
	email := &fakeEmail{}
	webhook := &fakeWebhook{}
	d := NewDispatcher(email, webhook)

	res := d.Dispatch(context.Background(), &db.Notification{
		ID:         1,
		ProjectID:  7,
		Kind:       db.NotificationExpirationWarning,
		Subject:    "Project expiring",
		Body:       "<p>soon</p>",
		EmailTo:    "owner@tenant.example",
		WebhookURL: strPtr("https://tenant.example/hooks/arv"),
	})

	assert.False(t, res.Failed())
	assert.True(t, res.Email.Sent)
	assert.True(t, res.Webhook.Sent)
	assert.Equal(t, []string{"owner@tenant.example"}, email.calls)
	require.Len(t, webhook.calls, 1)
	assert.Equal(t, "project.expiring", webhook.calls[0].Event)
	assert.Equal(t, int64(7), webhook.calls[0].ProjectID)
}

func TestDispatcherSkipsAlreadySentChannels(t *testing.T) {
	email := &fakeEmail{}
	webhook := &fakeWebhook{err: errors.New("endpoint down")}
	d := NewDispatcher(email, webhook)

	// Email succeeded on a previous attempt; only the webhook retries.
	res := d.Dispatch(context.Background(), &db.Notification{
		ID:         1,
		Kind:       db.NotificationProjectExpired,
		EmailTo:    "owner@tenant.example",
		EmailSent:  true,
		WebhookURL: strPtr("https://tenant.example/hooks/arv"),
	})

	assert.Empty(t, email.calls)
	assert.False(t, res.Email.Attempted)
	assert.True(t, res.Webhook.Attempted)
	assert.True(t, res.Failed())
}

func TestDispatcherWithoutWebhookURL(t *testing.T) {
	email := &fakeEmail{}
	webhook := &fakeWebhook{}
	d := NewDispatcher(email, webhook)

	res := d.Dispatch(context.Background(), &db.Notification{
		ID:      2,
		Kind:    db.NotificationExpirationWarning,
		EmailTo: "owner@tenant.example",
	})

	assert.True(t, res.Email.Sent)
	assert.False(t, res.Webhook.Attempted)
	assert.Empty(t, webhook.calls)
}

func TestHTTPWebhookSender(t *testing.T) {
	var received WebhookEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewHTTPWebhookSender().Send(context.Background(), srv.URL, WebhookEvent{
		Event:     "project.expired",
		ProjectID: 42,
		Message:   "Project has expired",
		Timestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, "project.expired", received.Event)
	assert.Equal(t, int64(42), received.ProjectID)
}

func TestHTTPWebhookSenderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such hook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewHTTPWebhookSender().Send(context.Background(), srv.URL, WebhookEvent{Event: "project.expiring"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestRenderExpirationWarning(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(5 * 24 * time.Hour)

	subject, body, err := RenderExpirationWarning("Spring Launch", expires, now)
	require.NoError(t, err)
	assert.Equal(t, `Project "Spring Launch" expires in 5 days`, subject)
	assert.Contains(t, body, "Spring Launch")
	assert.Contains(t, body, "March 6, 2026")
	assert.Contains(t, body, "5 days")
}

func TestRenderProjectExpired(t *testing.T) {
	expires := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	subject, body, err := RenderProjectExpired("Winter Promo", expires)
	require.NoError(t, err)
	assert.Equal(t, `Project "Winter Promo" has expired`, subject)
	assert.Contains(t, body, "Winter Promo")
	assert.Contains(t, body, "February 15, 2026")
}
