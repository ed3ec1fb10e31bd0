package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/notify"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/tracing"
)

// NotificationHandler delivers one stored notification over its channels.
// Each retry re-reads the record, so channels that already succeeded are
// not sent again.
func NotificationHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", queue.TaskNotificationSend)

		var payload queue.NotificationPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		log = log.With("notification_id", payload.NotificationID, "task_id", payload.TaskID.String())
		ctx = logger.WithLogger(ctx, log)

		ctx, span := tracing.StartTask(ctx, queue.TaskNotificationSend, payload.NotificationID)
		defer span.End()

		log.Info("notification dispatch started")
		deps.taskRunning(ctx, payload.TaskID)

		err := deps.runAttempts(ctx, payload.TaskID, func() error {
			return deps.dispatchNotification(ctx, payload.NotificationID)
		})
		if err != nil {
			tracing.RecordError(ctx, err)
			deps.taskFailed(ctx, payload.TaskID, err)
			log.Error("notification dispatch failed permanently", "error", err)
			return middleware.Permanent(err)
		}

		deps.taskCompleted(ctx, payload.TaskID)
		log.Info("notification dispatch finished")
		return nil
	}
}

func (d *Dependencies) dispatchNotification(ctx context.Context, notificationID int64) error {
	log := logger.FromContext(ctx)

	n, err := d.Queries.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}

	res := d.Dispatcher.Dispatch(ctx, &n)

	if res.Email.Attempted {
		d.recordChannel(ctx, "email", res.Email, func(sent bool, at time.Time, errText *string) error {
			return d.Queries.MarkNotificationEmail(ctx, n.ID, sent, at, errText)
		})
	}
	if res.Webhook.Attempted {
		d.recordChannel(ctx, "webhook", res.Webhook, func(sent bool, at time.Time, errText *string) error {
			return d.Queries.MarkNotificationWebhook(ctx, n.ID, sent, at, errText)
		})
	}

	if res.Failed() {
		log.Warn("notification delivery incomplete")
		return fmt.Errorf("notification %d: one or more channels failed", n.ID)
	}
	return nil
}

func (d *Dependencies) recordChannel(ctx context.Context, channel string, r notify.ChannelResult, mark func(bool, time.Time, *string) error) {
	status := "success"
	at := r.SentAt
	var errText *string
	if r.Err != nil {
		status = "error"
		at = time.Now().UTC()
		msg := r.Err.Error()
		errText = &msg
	}
	metrics.NotificationDeliveriesTotal.WithLabelValues(channel, status).Inc()

	if err := mark(r.Sent, at, errText); err != nil {
		logger.FromContext(ctx).Error("failed to record delivery state",
			"channel", channel, "error", err)
	}
}
