package queue

import "context"

// Lane is a named queue. Lanes isolate slow work from latency-sensitive
// work: a backlog of marker compilations never delays notifications.
type Lane string

const (
	LaneMarkers       Lane = "markers"
	LaneNotifications Lane = "notifications"
	LaneDefault       Lane = "default"
)

// Task kinds understood by the worker registry.
const (
	TaskMarkerGenerate     = "marker_generate"
	TaskContentThumbnails  = "content_thumbnails"
	TaskVideoThumbnails    = "video_thumbnails"
	TaskNotificationSend   = "notification_dispatch"
	TaskExpirationSweep    = "expiration_warning_sweep"
	TaskDeactivationSweep  = "expired_deactivation_sweep"
	TaskVideoRotationSweep = "video_rotation_sweep"
)

var routes = map[string]Lane{
	TaskMarkerGenerate:     LaneMarkers,
	TaskNotificationSend:   LaneNotifications,
	TaskContentThumbnails:  LaneDefault,
	TaskVideoThumbnails:    LaneDefault,
	TaskExpirationSweep:    LaneDefault,
	TaskDeactivationSweep:  LaneDefault,
	TaskVideoRotationSweep: LaneDefault,
}

// RouteFor returns the lane a task kind runs on. Unknown kinds land on the
// default lane rather than being dropped.
func RouteFor(taskKind string) Lane {
	if lane, ok := routes[taskKind]; ok {
		return lane
	}
	return LaneDefault
}

// Lanes lists every lane a worker deployment must consume.
func Lanes() []Lane {
	return []Lane{LaneMarkers, LaneNotifications, LaneDefault}
}

// Broker enqueues a task onto a lane and returns the broker-assigned job id.
// The production implementation sits in cmd/worker wrapping the streams
// broker; tests substitute an in-memory recorder.
type Broker interface {
	Enqueue(ctx context.Context, lane Lane, taskKind string, payload any) (string, error)
}
