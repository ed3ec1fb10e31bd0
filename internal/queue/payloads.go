package queue

import (
	"time"

	"github.com/google/uuid"
)

// TaskPayload is implemented by every payload that rides a tracked task.
// The task id is assigned by the enqueuer after the tracking record exists.
type TaskPayload interface {
	Kind() string
	RecordID() int64
	SetTaskID(id uuid.UUID)
}

type MarkerPayload struct {
	TaskID    uuid.UUID `json:"task_id"`
	ContentID int64     `json:"content_id"`
}

func (p *MarkerPayload) Kind() string { return TaskMarkerGenerate }
func (p *MarkerPayload) RecordID() int64 { return p.ContentID }
func (p *MarkerPayload) SetTaskID(id uuid.UUID) { p.TaskID = id }

type ContentThumbnailPayload struct {
	TaskID    uuid.UUID `json:"task_id"`
	ContentID int64     `json:"content_id"`
}

func (p *ContentThumbnailPayload) Kind() string { return TaskContentThumbnails }
func (p *ContentThumbnailPayload) RecordID() int64 { return p.ContentID }
func (p *ContentThumbnailPayload) SetTaskID(id uuid.UUID) { p.TaskID = id }

type VideoThumbnailPayload struct {
	TaskID  uuid.UUID `json:"task_id"`
	VideoID int64     `json:"video_id"`
}

func (p *VideoThumbnailPayload) Kind() string { return TaskVideoThumbnails }
func (p *VideoThumbnailPayload) RecordID() int64 { return p.VideoID }
func (p *VideoThumbnailPayload) SetTaskID(id uuid.UUID) { p.TaskID = id }

type NotificationPayload struct {
	TaskID         uuid.UUID `json:"task_id"`
	NotificationID int64     `json:"notification_id"`
}

func (p *NotificationPayload) Kind() string { return TaskNotificationSend }
func (p *NotificationPayload) RecordID() int64 { return p.NotificationID }
func (p *NotificationPayload) SetTaskID(id uuid.UUID) { p.TaskID = id }

// SweepPayload carries no identity, sweeps scan for their own work.
type SweepPayload struct {
	TriggeredAt time.Time `json:"triggered_at"`
}
