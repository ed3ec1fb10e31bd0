package worker

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"

	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/queue"
)

// Sweep handlers are thin: the sweep package scans for its own work, so the
// job payload carries nothing but the trigger time and a redelivered sweep
// job is harmless.

func ExpirationSweepHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		ctx = sweepContext(ctx, j, queue.TaskExpirationSweep)
		if _, err := deps.Sweeper.RunExpirationWarnings(ctx); err != nil {
			return fmt.Errorf("expiration warning sweep: %w", err)
		}
		return nil
	}
}

func DeactivationSweepHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		ctx = sweepContext(ctx, j, queue.TaskDeactivationSweep)
		if _, err := deps.Sweeper.RunDeactivation(ctx); err != nil {
			return fmt.Errorf("deactivation sweep: %w", err)
		}
		return nil
	}
}

func RotationSweepHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		ctx = sweepContext(ctx, j, queue.TaskVideoRotationSweep)
		if _, err := deps.Sweeper.RunRotation(ctx); err != nil {
			return fmt.Errorf("rotation sweep: %w", err)
		}
		return nil
	}
}

func sweepContext(ctx context.Context, j *job.Job, jobType string) context.Context {
	log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", jobType)
	return logger.WithLogger(ctx, log)
}
