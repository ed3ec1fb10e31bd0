package db

import (
	"context"
	"fmt"
	"time"
)

const notificationColumns = `
	id, project_id, content_id, kind, subject, body, email_to, webhook_url,
	email_sent, email_sent_at, email_error,
	webhook_sent, webhook_sent_at, webhook_error,
	created_at`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID, &n.ProjectID, &n.ContentID, &n.Kind, &n.Subject, &n.Body, &n.EmailTo, &n.WebhookURL,
		&n.EmailSent, &n.EmailSentAt, &n.EmailError,
		&n.WebhookSent, &n.WebhookSentAt, &n.WebhookError,
		&n.CreatedAt,
	)
	return n, err
}

type CreateNotificationParams struct {
	ProjectID  int64
	ContentID  *int64
	Kind       NotificationKind
	Subject    string
	Body       string
	EmailTo    string
	WebhookURL *string
}

func (s *Store) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	q := `
		INSERT INTO notifications (project_id, content_id, kind, subject, body, email_to, webhook_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING` + notificationColumns

	n, err := scanNotification(s.pool.QueryRow(ctx, q,
		arg.ProjectID, arg.ContentID, arg.Kind, arg.Subject, arg.Body, arg.EmailTo, arg.WebhookURL,
	))
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *Store) GetNotification(ctx context.Context, id int64) (Notification, error) {
	q := `SELECT` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return Notification{}, notFound(err, fmt.Sprintf("notification %d not found", id))
	}
	return n, nil
}

func (s *Store) MarkNotificationEmail(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error {
	const q = `
		UPDATE notifications
		SET email_sent = $2, email_sent_at = $3, email_error = $4
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, sent, at, errText); err != nil {
		return fmt.Errorf("mark notification email: %w", err)
	}
	return nil
}

func (s *Store) MarkNotificationWebhook(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error {
	const q = `
		UPDATE notifications
		SET webhook_sent = $2, webhook_sent_at = $3, webhook_error = $4
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, sent, at, errText); err != nil {
		return fmt.Errorf("mark notification webhook: %w", err)
	}
	return nil
}
