package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/extproc"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
)

type mockQueries struct {
	mu sync.Mutex

	contents      map[int64]db.Content
	videos        map[int64]db.Video
	notifications map[int64]db.Notification
	connections   map[int64]*db.StorageConnection

	claimDenied bool

	markerReady   []db.MarkerReadyParams
	markerFailed  []int64
	contentThumbs map[int64][3]string
	videoThumbs   map[int64][3]string

	emailMarks   []channelMark
	webhookMarks []channelMark

	tasks        map[uuid.UUID]*db.ProcessingTask
	taskAttempts map[uuid.UUID]int

	errGetContent       error
	errSetProcessing    error
	errSetMarkerReady   error
	errGetNotification  error
	setMarkerReadyStale bool
}

type channelMark struct {
	id      int64
	sent    bool
	errText *string
}

func newMockQueries() *mockQueries {
	return &mockQueries{
		contents:      make(map[int64]db.Content),
		videos:        make(map[int64]db.Video),
		notifications: make(map[int64]db.Notification),
		connections:   make(map[int64]*db.StorageConnection),
		contentThumbs: make(map[int64][3]string),
		videoThumbs:   make(map[int64][3]string),
		tasks:         make(map[uuid.UUID]*db.ProcessingTask),
		taskAttempts:  make(map[uuid.UUID]int),
	}
}

var _ Querier = (*mockQueries)(nil)

func (m *mockQueries) GetContent(ctx context.Context, id int64) (db.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errGetContent != nil {
		return db.Content{}, m.errGetContent
	}
	c, ok := m.contents[id]
	if !ok {
		return db.Content{}, notFoundErr("content")
	}
	return c, nil
}

func (m *mockQueries) SetContentProcessing(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errSetProcessing != nil {
		return false, m.errSetProcessing
	}
	if m.claimDenied {
		return false, nil
	}
	c := m.contents[id]
	c.MarkerStatus = db.MarkerStatusProcessing
	m.contents[id] = c
	return true, nil
}

func (m *mockQueries) SetMarkerReady(ctx context.Context, arg db.MarkerReadyParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errSetMarkerReady != nil {
		return false, m.errSetMarkerReady
	}
	if m.setMarkerReadyStale {
		return false, nil
	}
	m.markerReady = append(m.markerReady, arg)
	c := m.contents[arg.ContentID]
	c.MarkerStatus = db.MarkerStatusReady
	m.contents[arg.ContentID] = c
	return true, nil
}

func (m *mockQueries) SetMarkerFailed(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markerFailed = append(m.markerFailed, id)
	c := m.contents[id]
	c.MarkerStatus = db.MarkerStatusFailed
	m.contents[id] = c
	return true, nil
}

func (m *mockQueries) SetContentThumbnails(ctx context.Context, id int64, small, medium, large string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contentThumbs[id] = [3]string{small, medium, large}
	return nil
}

func (m *mockQueries) GetVideo(ctx context.Context, id int64) (db.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return db.Video{}, notFoundErr("video")
	}
	return v, nil
}

func (m *mockQueries) SetVideoThumbnails(ctx context.Context, id int64, small, medium, large string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videoThumbs[id] = [3]string{small, medium, large}
	return nil
}

func (m *mockQueries) GetNotification(ctx context.Context, id int64) (db.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errGetNotification != nil {
		return db.Notification{}, m.errGetNotification
	}
	n, ok := m.notifications[id]
	if !ok {
		return db.Notification{}, notFoundErr("notification")
	}
	return n, nil
}

func (m *mockQueries) MarkNotificationEmail(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailMarks = append(m.emailMarks, channelMark{id: id, sent: sent, errText: errText})
	n := m.notifications[id]
	n.EmailSent = sent
	m.notifications[id] = n
	return nil
}

func (m *mockQueries) MarkNotificationWebhook(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookMarks = append(m.webhookMarks, channelMark{id: id, sent: sent, errText: errText})
	n := m.notifications[id]
	n.WebhookSent = sent
	m.notifications[id] = n
	return nil
}

func (m *mockQueries) GetStorageConnectionForCompany(ctx context.Context, companyID int64) (*db.StorageConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connections[companyID], nil
}

func (m *mockQueries) CreateTask(ctx context.Context, kind string, recordID int64) (db.ProcessingTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task := db.ProcessingTask{ID: uuid.New(), Kind: kind, RecordID: recordID, Status: db.TaskStatusPending}
	m.tasks[task.ID] = &task
	return task, nil
}

func (m *mockQueries) MarkTaskRunning(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = db.TaskStatusRunning
	}
	return nil
}

func (m *mockQueries) IncrementTaskAttempts(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskAttempts[id]++
	return nil
}

func (m *mockQueries) MarkTaskCompleted(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = db.TaskStatusCompleted
	}
	return nil
}

func (m *mockQueries) MarkTaskFailed(ctx context.Context, id uuid.UUID, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		t.Status = db.TaskStatusFailed
		t.Error = &errText
	}
	return nil
}

func notFoundErr(what string) error {
	return apperror.New(apperror.KindNotFound, what+" not found")
}

// sourceRejectingProvider fails uploads into the source namespace only,
// everything else passes through.
type sourceRejectingProvider struct {
	*storage.MemoryProvider
}

func (p *sourceRejectingProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	if strings.Contains(destPath, "/source/") {
		return "", errors.New("tenant backend rejected upload")
	}
	return p.MemoryProvider.Upload(ctx, localPath, destPath, contentType)
}

// staticResolver hands every tenant the same provider.
type staticResolver struct {
	provider storage.Provider
}

func (r *staticResolver) ProviderFor(conn *db.StorageConnection) (storage.Provider, error) {
	return r.provider, nil
}

type fakeCompiler struct {
	fn    func(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error)
	calls int
}

func (c *fakeCompiler) Compile(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error) {
	c.calls++
	return c.fn(ctx, imagePath, outDir)
}

type fakeFrames struct {
	fn func(ctx context.Context, videoPath, outPath string) error
}

func (f *fakeFrames) ExtractMidpointFrame(ctx context.Context, videoPath, outPath string) error {
	return f.fn(ctx, videoPath, outPath)
}

type recordingBroker struct {
	mu       sync.Mutex
	enqueued []enqueuedJob
	err      error
}

type enqueuedJob struct {
	lane    queue.Lane
	kind    string
	payload any
}

func (b *recordingBroker) Enqueue(ctx context.Context, lane queue.Lane, taskKind string, payload any) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return "", b.err
	}
	b.enqueued = append(b.enqueued, enqueuedJob{lane: lane, kind: taskKind, payload: payload})
	return uuid.New().String(), nil
}

// immediateRetries is a retry policy with no delays and attempts-1 retries.
func immediateRetries(attempts int) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1))
	}
}
