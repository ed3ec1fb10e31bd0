package worker

import (
	"context"
	"fmt"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/queue"
)

type TaskCreator interface {
	CreateTask(ctx context.Context, kind string, recordID int64) (db.ProcessingTask, error)
}

// EnqueueWithTracking creates the tracking record first, stamps its id into
// the payload, and then hands the job to the broker. The returned task is
// the caller's handle for status polling.
func EnqueueWithTracking(ctx context.Context, queries TaskCreator, broker queue.Broker, payload queue.TaskPayload) (db.ProcessingTask, string, error) {
	task, err := queries.CreateTask(ctx, payload.Kind(), payload.RecordID())
	if err != nil {
		return db.ProcessingTask{}, "", fmt.Errorf("create task record: %w", err)
	}

	payload.SetTaskID(task.ID)

	lane := queue.RouteFor(payload.Kind())
	queueID, err := broker.Enqueue(ctx, lane, payload.Kind(), payload)
	if err != nil {
		return db.ProcessingTask{}, "", fmt.Errorf("enqueue %s: %w", payload.Kind(), err)
	}

	metrics.JobsEnqueuedTotal.WithLabelValues(payload.Kind(), string(lane)).Inc()
	return task, queueID, nil
}

// EnqueueNotification implements sweep.NotificationEnqueuer.
func (d *Dependencies) EnqueueNotification(ctx context.Context, notificationID int64) error {
	_, _, err := EnqueueWithTracking(ctx, d.Queries, d.Broker, &queue.NotificationPayload{
		NotificationID: notificationID,
	})
	return err
}

// EnqueueMarkerGeneration schedules marker compilation for a content record.
func (d *Dependencies) EnqueueMarkerGeneration(ctx context.Context, contentID int64) (db.ProcessingTask, error) {
	task, _, err := EnqueueWithTracking(ctx, d.Queries, d.Broker, &queue.MarkerPayload{ContentID: contentID})
	return task, err
}

// EnqueueContentThumbnails schedules thumbnail rendering for a content record.
func (d *Dependencies) EnqueueContentThumbnails(ctx context.Context, contentID int64) (db.ProcessingTask, error) {
	task, _, err := EnqueueWithTracking(ctx, d.Queries, d.Broker, &queue.ContentThumbnailPayload{ContentID: contentID})
	return task, err
}

// EnqueueVideoThumbnails schedules thumbnail rendering for a video record.
func (d *Dependencies) EnqueueVideoThumbnails(ctx context.Context, videoID int64) (db.ProcessingTask, error) {
	task, _, err := EnqueueWithTracking(ctx, d.Queries, d.Broker, &queue.VideoThumbnailPayload{VideoID: videoID})
	return task, err
}
