package sweep

import (
	"context"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
)

type mockStore struct {
	expiring []db.Project
	expired  []db.Project

	schedules []db.RotationSchedule
	videos    map[int64][]db.Video

	claimDenied  map[int64]bool
	expireDenied map[int64]bool

	notifications []db.CreateNotificationParams
	notified      []int64
	expireCalls   []int64
	deactivated   []int64
	activations   map[int64][]int64
	claims        map[int64]*time.Time

	errListExpiring error
	errSetActive    error
}

func newMockStore() *mockStore {
	return &mockStore{
		videos:       make(map[int64][]db.Video),
		claimDenied:  make(map[int64]bool),
		expireDenied: make(map[int64]bool),
		activations:  make(map[int64][]int64),
		claims:       make(map[int64]*time.Time),
	}
}

var _ Querier = (*mockStore)(nil)

func (m *mockStore) ListProjectsExpiringWithin(ctx context.Context, now time.Time, lookahead, cooldown time.Duration) ([]db.Project, error) {
	if m.errListExpiring != nil {
		return nil, m.errListExpiring
	}
	return m.expiring, nil
}

func (m *mockStore) MarkProjectNotified(ctx context.Context, id int64, at time.Time) error {
	m.notified = append(m.notified, id)
	return nil
}

func (m *mockStore) ListExpiredActiveProjects(ctx context.Context, now time.Time) ([]db.Project, error) {
	return m.expired, nil
}

func (m *mockStore) ExpireProject(ctx context.Context, id int64) (bool, error) {
	m.expireCalls = append(m.expireCalls, id)
	return !m.expireDenied[id], nil
}

func (m *mockStore) DeactivateProjectContents(ctx context.Context, projectID int64) (int64, error) {
	m.deactivated = append(m.deactivated, projectID)
	return 3, nil
}

func (m *mockStore) CreateNotification(ctx context.Context, arg db.CreateNotificationParams) (db.Notification, error) {
	m.notifications = append(m.notifications, arg)
	return db.Notification{
		ID:        int64(len(m.notifications)),
		ProjectID: arg.ProjectID,
		Kind:      arg.Kind,
		Subject:   arg.Subject,
		EmailTo:   arg.EmailTo,
	}, nil
}

func (m *mockStore) ListDueSchedules(ctx context.Context, now time.Time) ([]db.RotationSchedule, error) {
	return m.schedules, nil
}

func (m *mockStore) ClaimSchedule(ctx context.Context, id int64, now time.Time, next *time.Time) (bool, error) {
	if m.claimDenied[id] {
		return false, nil
	}
	m.claims[id] = next
	return true, nil
}

func (m *mockStore) ListVideosForContent(ctx context.Context, contentID int64) ([]db.Video, error) {
	return m.videos[contentID], nil
}

func (m *mockStore) CountActiveVideos(ctx context.Context, contentID int64) (int64, error) {
	var n int64
	for _, v := range m.videos[contentID] {
		if v.IsActive {
			n++
		}
	}
	return n, nil
}

func (m *mockStore) SetActiveVideo(ctx context.Context, contentID, videoID int64) error {
	if m.errSetActive != nil {
		return m.errSetActive
	}
	m.activations[contentID] = append(m.activations[contentID], videoID)
	vs := m.videos[contentID]
	for i := range vs {
		vs[i].IsActive = vs[i].ID == videoID
	}
	return nil
}

type mockEnqueuer struct {
	notificationIDs []int64
	err             error
}

func (m *mockEnqueuer) EnqueueNotification(ctx context.Context, notificationID int64) error {
	if m.err != nil {
		return m.err
	}
	m.notificationIDs = append(m.notificationIDs, notificationID)
	return nil
}
