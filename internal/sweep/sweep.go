package sweep

import (
	"context"
	"math/rand"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
)

// Querier is the slice of the store the periodic sweeps need.
type Querier interface {
	ListProjectsExpiringWithin(ctx context.Context, now time.Time, lookahead, cooldown time.Duration) ([]db.Project, error)
	MarkProjectNotified(ctx context.Context, id int64, at time.Time) error
	ListExpiredActiveProjects(ctx context.Context, now time.Time) ([]db.Project, error)
	ExpireProject(ctx context.Context, id int64) (bool, error)
	DeactivateProjectContents(ctx context.Context, projectID int64) (int64, error)
	CreateNotification(ctx context.Context, arg db.CreateNotificationParams) (db.Notification, error)

	ListDueSchedules(ctx context.Context, now time.Time) ([]db.RotationSchedule, error)
	ClaimSchedule(ctx context.Context, id int64, now time.Time, next *time.Time) (bool, error)
	ListVideosForContent(ctx context.Context, contentID int64) ([]db.Video, error)
	CountActiveVideos(ctx context.Context, contentID int64) (int64, error)
	SetActiveVideo(ctx context.Context, contentID, videoID int64) error
}

var _ Querier = (*db.Store)(nil)

// NotificationEnqueuer hands a stored notification to the dispatch lane.
type NotificationEnqueuer interface {
	EnqueueNotification(ctx context.Context, notificationID int64) error
}

// Sweeper runs the periodic maintenance passes. Each Run method scans for
// its own work, so an overlapping or repeated run is harmless.
type Sweeper struct {
	Queries Querier
	Enqueue NotificationEnqueuer

	Lookahead time.Duration
	Cooldown  time.Duration

	// Now and Rng are injectable for tests; nil means wall clock and the
	// global source.
	Now func() time.Time
	Rng *rand.Rand
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Sweeper) intn(n int) int {
	if s.Rng != nil {
		return s.Rng.Intn(n)
	}
	return rand.Intn(n)
}
