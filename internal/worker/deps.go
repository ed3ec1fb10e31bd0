package worker

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/extproc"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/notify"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
	"github.com/fegerV/ARV-sub005/internal/sweep"
)

// Querier is the slice of the store the job handlers need.
type Querier interface {
	GetContent(ctx context.Context, id int64) (db.Content, error)
	SetContentProcessing(ctx context.Context, id int64) (bool, error)
	SetMarkerReady(ctx context.Context, arg db.MarkerReadyParams) (bool, error)
	SetMarkerFailed(ctx context.Context, id int64) (bool, error)
	SetContentThumbnails(ctx context.Context, id int64, small, medium, large string) error

	GetVideo(ctx context.Context, id int64) (db.Video, error)
	SetVideoThumbnails(ctx context.Context, id int64, small, medium, large string) error

	GetNotification(ctx context.Context, id int64) (db.Notification, error)
	MarkNotificationEmail(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error
	MarkNotificationWebhook(ctx context.Context, id int64, sent bool, at time.Time, errText *string) error

	GetStorageConnectionForCompany(ctx context.Context, companyID int64) (*db.StorageConnection, error)

	CreateTask(ctx context.Context, kind string, recordID int64) (db.ProcessingTask, error)
	MarkTaskRunning(ctx context.Context, id uuid.UUID) error
	IncrementTaskAttempts(ctx context.Context, id uuid.UUID) error
	MarkTaskCompleted(ctx context.Context, id uuid.UUID) error
	MarkTaskFailed(ctx context.Context, id uuid.UUID, errText string) error
}

var _ Querier = (*db.Store)(nil)

// Compiler produces a tracking marker from a reference image.
type Compiler interface {
	Compile(ctx context.Context, imagePath, outDir string) (*extproc.CompileResult, error)
}

// FrameGrabber extracts the representative frame of a video.
type FrameGrabber interface {
	ExtractMidpointFrame(ctx context.Context, videoPath, outPath string) error
}

// ProviderResolver maps a tenant's storage connection to a live provider.
type ProviderResolver interface {
	ProviderFor(conn *db.StorageConnection) (storage.Provider, error)
}

// SweepRunner is implemented by sweep.Sweeper.
type SweepRunner interface {
	RunExpirationWarnings(ctx context.Context) (sweep.ExpirationStats, error)
	RunDeactivation(ctx context.Context) (sweep.DeactivationStats, error)
	RunRotation(ctx context.Context) (sweep.RotationStats, error)
}

type Dependencies struct {
	Queries    Querier
	Providers  ProviderResolver
	Compiler   Compiler
	Frames     FrameGrabber
	Dispatcher *notify.Dispatcher
	Broker     queue.Broker
	Sweeper    SweepRunner

	TempDir string

	// NewRetryPolicy builds the in-handler retry schedule for one task
	// execution. Nil means the default exponential policy.
	NewRetryPolicy func() backoff.BackOff
}

// DefaultRetryPolicy doubles the delay from initial up to max, with the
// total number of attempts bounded by maxAttempts.
func DefaultRetryPolicy(initial, max time.Duration, maxAttempts int) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = 2
		b.RandomizationFactor = 0
		b.MaxElapsedTime = 0
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		return backoff.WithMaxRetries(b, uint64(maxAttempts-1))
	}
}

func (d *Dependencies) retryPolicy() backoff.BackOff {
	if d.NewRetryPolicy != nil {
		return d.NewRetryPolicy()
	}
	return DefaultRetryPolicy(30*time.Second, 10*time.Minute, 3)()
}

// runAttempts executes op under the retry policy. Terminal failures stop
// the schedule immediately; each attempt is counted on the tracking record.
func (d *Dependencies) runAttempts(ctx context.Context, taskID uuid.UUID, op func() error) error {
	log := logger.FromContext(ctx)

	wrapped := func() error {
		if taskID != uuid.Nil {
			if err := d.Queries.IncrementTaskAttempts(ctx, taskID); err != nil {
				log.Warn("failed to count task attempt", "error", err)
			}
		}
		err := op()
		if err == nil {
			return nil
		}
		if !apperror.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.RetryNotify(wrapped, backoff.WithContext(d.retryPolicy(), ctx),
		func(err error, next time.Duration) {
			log.Warn("task attempt failed, retrying", "error", err, "retry_in", next.String())
		})
}

func (d *Dependencies) taskRunning(ctx context.Context, taskID uuid.UUID) {
	if taskID == uuid.Nil {
		return
	}
	if err := d.Queries.MarkTaskRunning(ctx, taskID); err != nil {
		logger.FromContext(ctx).Warn("failed to mark task running", "error", err)
	}
}

func (d *Dependencies) taskCompleted(ctx context.Context, taskID uuid.UUID) {
	if taskID == uuid.Nil {
		return
	}
	if err := d.Queries.MarkTaskCompleted(ctx, taskID); err != nil {
		logger.FromContext(ctx).Warn("failed to mark task completed", "error", err)
	}
}

func (d *Dependencies) taskFailed(ctx context.Context, taskID uuid.UUID, taskErr error) {
	if taskID == uuid.Nil {
		return
	}
	if err := d.Queries.MarkTaskFailed(ctx, taskID, taskErr.Error()); err != nil {
		logger.FromContext(ctx).Warn("failed to mark task failed", "error", err)
	}
}

// providerForCompany resolves the storage backend the tenant's artifacts
// live on. No dedicated connection means the platform default.
func (d *Dependencies) providerForCompany(ctx context.Context, companyID int64) (storage.Provider, error) {
	conn, err := d.Queries.GetStorageConnectionForCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return d.Providers.ProviderFor(conn)
}

func (d *Dependencies) workDir(pattern string) (string, error) {
	return os.MkdirTemp(d.TempDir, pattern)
}

// classifyStorageErr maps provider sentinels onto the failure taxonomy so
// the retry loop treats missing objects and unsupported backends as
// terminal while transport hiccups stay retryable.
func classifyStorageErr(err error, message string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperror.Wrap(err, apperror.KindNotFound, message)
	case errors.Is(err, storage.ErrUnsupported):
		return apperror.Wrap(err, apperror.KindUnsupported, message)
	case errors.Is(err, storage.ErrInvalidPath):
		return apperror.Wrap(err, apperror.KindPrecondition, message)
	default:
		return apperror.Wrap(err, apperror.KindStorage, message)
	}
}
