package worker

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/extproc"
	"github.com/fegerV/ARV-sub005/internal/notify"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
)

type testEnv struct {
	queries  *mockQueries
	provider *storage.MemoryProvider
	compiler *fakeCompiler
	broker   *recordingBroker
	deps     *Dependencies
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	queries := newMockQueries()
	provider := storage.NewMemoryProvider()
	broker := &recordingBroker{}
	compiler := &fakeCompiler{fn: func(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error) {
		artifact := filepath.Join(outDir, "marker.mind")
		if err := os.WriteFile(artifact, []byte("markerdata!"), 0o644); err != nil {
			return nil, err
		}
		return &extproc.CompileResult{ArtifactPath: artifact, SizeBytes: 11, FeaturePoints: 412}, nil
	}}

	deps := &Dependencies{
		Queries:        queries,
		Providers:      &staticResolver{provider: provider},
		Compiler:       compiler,
		Broker:         broker,
		TempDir:        t.TempDir(),
		NewRetryPolicy: immediateRetries(3),
	}
	return &testEnv{queries: queries, provider: provider, compiler: compiler, broker: broker, deps: deps}
}

func (e *testEnv) putObject(t *testing.T, key string, data []byte) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "obj")
	require.NoError(t, os.WriteFile(tmp, data, 0o644))
	_, err := e.provider.Upload(context.Background(), tmp, key, "application/octet-stream")
	require.NoError(t, err)
}

func (e *testEnv) addContent(t *testing.T, id int64, sourceData []byte) uuid.UUID {
	t.Helper()
	key := storage.SourceKey(id, "ref.jpg")
	e.putObject(t, key, sourceData)
	e.queries.contents[id] = db.Content{
		ID:           id,
		CompanyID:    1,
		SourcePath:   key,
		MarkerStatus: db.MarkerStatusPending,
	}
	task, err := e.queries.CreateTask(context.Background(), queue.TaskMarkerGenerate, id)
	require.NoError(t, err)
	return task.ID
}

func newJob(t *testing.T, jobType string, payload any) *job.Job {
	t.Helper()
	j, err := job.New(jobType, payload)
	require.NoError(t, err)
	return j
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}

func TestMarkerGenerateSuccess(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("source image"))

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))

	require.Len(t, env.queries.markerReady, 1)
	ready := env.queries.markerReady[0]
	assert.Equal(t, int64(42), ready.ContentID)
	assert.Equal(t, "content/42/marker/marker.mind", ready.MarkerPath)
	assert.Equal(t, int32(412), ready.FeaturePoints)
	assert.Equal(t, int64(11), ready.SizeBytes)

	artifact, ok := env.provider.Object("content/42/marker/marker.mind")
	require.True(t, ok)
	assert.Equal(t, []byte("markerdata!"), artifact)

	assert.Equal(t, 1, env.queries.taskAttempts[taskID])
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[taskID].Status)
	assert.Empty(t, env.queries.markerFailed)
}

func TestMarkerGeneratePublishesSourceImage(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, nil)

	// The record still points at the raw upload location, not the
	// canonical source key.
	env.putObject(t, "uploads/tmp/photo.jpg", []byte("source image"))
	content := env.queries.contents[42]
	content.SourcePath = "uploads/tmp/photo.jpg"
	env.queries.contents[42] = content

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))

	published, ok := env.provider.Object("content/42/source/photo.jpg")
	require.True(t, ok)
	assert.Equal(t, []byte("source image"), published)
	require.Len(t, env.queries.markerReady, 1)
}

func TestMarkerGenerateSourcePublishFailureIsNonFatal(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, nil)

	env.putObject(t, "uploads/tmp/photo.jpg", []byte("source image"))
	content := env.queries.contents[42]
	content.SourcePath = "uploads/tmp/photo.jpg"
	env.queries.contents[42] = content

	env.deps.Providers = &staticResolver{provider: &sourceRejectingProvider{MemoryProvider: env.provider}}

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))

	_, ok := env.provider.Object("content/42/source/photo.jpg")
	assert.False(t, ok)
	require.Len(t, env.queries.markerReady, 1)
	assert.Equal(t, 1, env.queries.taskAttempts[taskID])
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[taskID].Status)
}

func TestMarkerGenerateExhaustsRetriesThenFails(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("source image"))
	env.compiler.fn = func(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error) {
		return nil, apperror.New(apperror.KindExternalProcess, "compiler crashed")
	}

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	err := handler(context.Background(), j)
	require.Error(t, err)

	// The configured policy allows exactly three attempts, no more.
	assert.Equal(t, 3, env.compiler.calls)
	assert.Equal(t, 3, env.queries.taskAttempts[taskID])
	assert.Equal(t, []int64{42}, env.queries.markerFailed)
	assert.Equal(t, db.TaskStatusFailed, env.queries.tasks[taskID].Status)
	require.NotNil(t, env.queries.tasks[taskID].Error)
	assert.Contains(t, *env.queries.tasks[taskID].Error, "compiler crashed")
}

func TestMarkerGenerateTerminalErrorSkipsRetries(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("not really an image"))
	env.compiler.fn = func(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error) {
		return nil, apperror.New(apperror.KindPrecondition, "source image not readable")
	}

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	err := handler(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, 1, env.compiler.calls)
	assert.Equal(t, 1, env.queries.taskAttempts[taskID])
	assert.Equal(t, []int64{42}, env.queries.markerFailed)
}

func TestMarkerGenerateMissingSourceIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("x"))
	env.queries.contents[42] = db.Content{
		ID: 42, CompanyID: 1, SourcePath: "content/42/source/gone.jpg",
	}

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	err := handler(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, 0, env.compiler.calls)
	assert.Equal(t, 1, env.queries.taskAttempts[taskID])
}

func TestMarkerGenerateSupersededIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("source image"))
	env.queries.claimDenied = true

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))
	assert.Equal(t, 0, env.compiler.calls)
	assert.Empty(t, env.queries.markerReady)
	assert.Empty(t, env.queries.markerFailed)
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[taskID].Status)
}

func TestMarkerGenerateStalePromotionIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("source image"))
	env.queries.setMarkerReadyStale = true

	handler := MarkerGenerateHandler(env.deps)
	j := newJob(t, queue.TaskMarkerGenerate, &queue.MarkerPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))
	assert.Empty(t, env.queries.markerFailed)
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[taskID].Status)
}

func TestContentThumbnailHandler(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, testJPEG(t))

	handler := ContentThumbnailHandler(env.deps)
	j := newJob(t, queue.TaskContentThumbnails, &queue.ContentThumbnailPayload{TaskID: taskID, ContentID: 42})

	require.NoError(t, handler(context.Background(), j))

	thumbs, ok := env.queries.contentThumbs[42]
	require.True(t, ok)
	assert.Equal(t, "memory://thumbnails/content/42/small.jpg", thumbs[0])
	assert.Equal(t, "memory://thumbnails/content/42/medium.jpg", thumbs[1])
	assert.Equal(t, "memory://thumbnails/content/42/large.jpg", thumbs[2])

	for _, size := range []string{"small", "medium", "large"} {
		data, ok := env.provider.Object("thumbnails/content/42/" + size + ".jpg")
		require.True(t, ok, "missing %s thumbnail", size)
		assert.NotEmpty(t, data)
	}
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[taskID].Status)
}

func TestContentThumbnailHandlerUndecodableSource(t *testing.T) {
	env := newTestEnv(t)
	taskID := env.addContent(t, 42, []byte("not a jpeg"))

	handler := ContentThumbnailHandler(env.deps)
	j := newJob(t, queue.TaskContentThumbnails, &queue.ContentThumbnailPayload{TaskID: taskID, ContentID: 42})

	err := handler(context.Background(), j)
	require.Error(t, err)

	// Undecodable bytes do not improve with retries.
	assert.Equal(t, 1, env.queries.taskAttempts[taskID])
	assert.Equal(t, db.TaskStatusFailed, env.queries.tasks[taskID].Status)
}

func TestVideoThumbnailHandler(t *testing.T) {
	env := newTestEnv(t)
	env.addContent(t, 42, []byte("source image"))

	frame := testJPEG(t)
	env.deps.Frames = &fakeFrames{fn: func(ctx context.Context, videoPath, outPath string) error {
		return os.WriteFile(outPath, frame, 0o644)
	}}

	env.putObject(t, "content/42/videos/7.mp4", []byte("video bytes"))
	env.queries.videos[7] = db.Video{ID: 7, ContentID: 42, StoragePath: "content/42/videos/7.mp4"}
	task, err := env.queries.CreateTask(context.Background(), queue.TaskVideoThumbnails, 7)
	require.NoError(t, err)

	handler := VideoThumbnailHandler(env.deps)
	j := newJob(t, queue.TaskVideoThumbnails, &queue.VideoThumbnailPayload{TaskID: task.ID, VideoID: 7})

	require.NoError(t, handler(context.Background(), j))

	thumbs, ok := env.queries.videoThumbs[7]
	require.True(t, ok)
	assert.Equal(t, "memory://thumbnails/video/7/small.jpg", thumbs[0])

	_, ok = env.provider.Object("thumbnails/video/7/large.jpg")
	assert.True(t, ok)
}

func TestVideoThumbnailHandlerZeroDurationVideo(t *testing.T) {
	env := newTestEnv(t)
	env.addContent(t, 42, []byte("source image"))
	env.deps.Frames = &fakeFrames{fn: func(ctx context.Context, videoPath, outPath string) error {
		return apperror.New(apperror.KindPrecondition, "video has zero duration")
	}}

	env.putObject(t, "content/42/videos/7.mp4", []byte("broken"))
	env.queries.videos[7] = db.Video{ID: 7, ContentID: 42, StoragePath: "content/42/videos/7.mp4"}
	task, err := env.queries.CreateTask(context.Background(), queue.TaskVideoThumbnails, 7)
	require.NoError(t, err)

	handler := VideoThumbnailHandler(env.deps)
	j := newJob(t, queue.TaskVideoThumbnails, &queue.VideoThumbnailPayload{TaskID: task.ID, VideoID: 7})

	err = handler(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, 1, env.queries.taskAttempts[task.ID])
}

type countingWebhook struct {
	failures int
	calls    int
}

func (w *countingWebhook) Send(ctx context.Context, url string, event notify.WebhookEvent) error {
	w.calls++
	if w.calls <= w.failures {
		return assert.AnError
	}
	return nil
}

type recordingEmail struct {
	calls int
	err   error
}

func (e *recordingEmail) Send(ctx context.Context, to, subject, htmlBody string) error {
	e.calls++
	return e.err
}

func TestNotificationHandlerRetriesOnlyFailedChannel(t *testing.T) {
	env := newTestEnv(t)
	email := &recordingEmail{}
	webhook := &countingWebhook{failures: 1}
	env.deps.Dispatcher = notify.NewDispatcher(email, webhook)

	url := "https://tenant.example/hook"
	env.queries.notifications[5] = db.Notification{
		ID:         5,
		ProjectID:  10,
		Kind:       db.NotificationExpirationWarning,
		Subject:    "Project expiring",
		Body:       "<p>soon</p>",
		EmailTo:    "owner@tenant.example",
		WebhookURL: &url,
	}
	task, err := env.queries.CreateTask(context.Background(), queue.TaskNotificationSend, 5)
	require.NoError(t, err)

	handler := NotificationHandler(env.deps)
	j := newJob(t, queue.TaskNotificationSend, &queue.NotificationPayload{TaskID: task.ID, NotificationID: 5})

	require.NoError(t, handler(context.Background(), j))

	// Email went out once; only the webhook was re-attempted.
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 2, webhook.calls)
	assert.Equal(t, 2, env.queries.taskAttempts[task.ID])
	assert.Equal(t, db.TaskStatusCompleted, env.queries.tasks[task.ID].Status)

	require.Len(t, env.queries.emailMarks, 1)
	assert.True(t, env.queries.emailMarks[0].sent)
	require.Len(t, env.queries.webhookMarks, 2)
	assert.False(t, env.queries.webhookMarks[0].sent)
	assert.True(t, env.queries.webhookMarks[1].sent)
}

func TestNotificationHandlerExhaustsRetries(t *testing.T) {
	env := newTestEnv(t)
	email := &recordingEmail{err: assert.AnError}
	env.deps.Dispatcher = notify.NewDispatcher(email, &countingWebhook{})

	env.queries.notifications[6] = db.Notification{
		ID:      6,
		Kind:    db.NotificationProjectExpired,
		EmailTo: "owner@tenant.example",
	}
	task, err := env.queries.CreateTask(context.Background(), queue.TaskNotificationSend, 6)
	require.NoError(t, err)

	handler := NotificationHandler(env.deps)
	j := newJob(t, queue.TaskNotificationSend, &queue.NotificationPayload{TaskID: task.ID, NotificationID: 6})

	err = handler(context.Background(), j)
	require.Error(t, err)
	assert.Equal(t, 3, email.calls)
	assert.Equal(t, db.TaskStatusFailed, env.queries.tasks[task.ID].Status)
}

func TestEnqueueWithTracking(t *testing.T) {
	env := newTestEnv(t)

	task, queueID, err := EnqueueWithTracking(context.Background(), env.queries, env.broker,
		&queue.MarkerPayload{ContentID: 42})
	require.NoError(t, err)
	assert.NotEmpty(t, queueID)
	assert.Equal(t, queue.TaskMarkerGenerate, task.Kind)
	assert.Equal(t, int64(42), task.RecordID)
	assert.Equal(t, db.TaskStatusPending, task.Status)

	require.Len(t, env.broker.enqueued, 1)
	assert.Equal(t, queue.LaneMarkers, env.broker.enqueued[0].lane)
	payload := env.broker.enqueued[0].payload.(*queue.MarkerPayload)
	assert.Equal(t, task.ID, payload.TaskID)
}

func TestEnqueueNotificationRoutesToNotificationLane(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.deps.EnqueueNotification(context.Background(), 9))
	require.Len(t, env.broker.enqueued, 1)
	assert.Equal(t, queue.LaneNotifications, env.broker.enqueued[0].lane)
	assert.Equal(t, queue.TaskNotificationSend, env.broker.enqueued[0].kind)
}
