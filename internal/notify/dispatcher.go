package notify

import (
	"context"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// ChannelResult records one delivery attempt on one channel.
type ChannelResult struct {
	Attempted bool
	Sent      bool
	SentAt    time.Time
	Err       error
}

// DispatchResult covers both channels of one notification.
type DispatchResult struct {
	Email   ChannelResult
	Webhook ChannelResult
}

// Failed reports whether any attempted channel failed.
func (r DispatchResult) Failed() bool {
	return (r.Email.Attempted && r.Email.Err != nil) ||
		(r.Webhook.Attempted && r.Webhook.Err != nil)
}

// Dispatcher fans one notification out to its channels. Channels already
// marked sent are skipped, so a retried dispatch never duplicates delivery
// on the channel that succeeded the first time.
type Dispatcher struct {
	email   EmailClient
	webhook WebhookClient
}

func NewDispatcher(email EmailClient, webhook WebhookClient) *Dispatcher {
	return &Dispatcher{email: email, webhook: webhook}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n *db.Notification) DispatchResult {
	log := logger.FromContext(ctx)
	var res DispatchResult

	if n.EmailTo != "" && !n.EmailSent {
		res.Email.Attempted = true
		if err := d.email.Send(ctx, n.EmailTo, n.Subject, n.Body); err != nil {
			res.Email.Err = err
			log.Error("email delivery failed", "notification_id", n.ID, "error", err)
		} else {
			res.Email.Sent = true
			res.Email.SentAt = time.Now().UTC()
		}
	}

	if n.WebhookURL != nil && *n.WebhookURL != "" && !n.WebhookSent {
		res.Webhook.Attempted = true
		event := WebhookEvent{
			Event:     EventName(n.Kind),
			ProjectID: n.ProjectID,
			ContentID: n.ContentID,
			Message:   n.Subject,
			Timestamp: time.Now().UTC(),
		}
		if err := d.webhook.Send(ctx, *n.WebhookURL, event); err != nil {
			res.Webhook.Err = err
			log.Error("webhook delivery failed", "notification_id", n.ID, "error", err)
		} else {
			res.Webhook.Sent = true
			res.Webhook.SentAt = time.Now().UTC()
		}
	}

	return res
}
