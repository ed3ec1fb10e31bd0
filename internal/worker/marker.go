package worker

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
	"github.com/fegerV/ARV-sub005/internal/tracing"
)

// MarkerGenerateHandler compiles the recognition marker for one content
// record. All retries happen inside the handler under the configured
// policy; once the policy is exhausted the failure is permanent and the
// content record moves to failed.
func MarkerGenerateHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", queue.TaskMarkerGenerate)

		var payload queue.MarkerPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		log = log.With("content_id", payload.ContentID, "task_id", payload.TaskID.String())
		ctx = logger.WithLogger(ctx, log)

		ctx, span := tracing.StartTask(ctx, queue.TaskMarkerGenerate, payload.ContentID)
		defer span.End()

		log.Info("marker generation started")
		start := time.Now()
		deps.taskRunning(ctx, payload.TaskID)

		err := deps.runAttempts(ctx, payload.TaskID, func() error {
			return deps.generateMarker(ctx, payload.ContentID)
		})
		if err != nil {
			tracing.RecordError(ctx, err)
			metrics.MarkerCompilationsTotal.WithLabelValues("error").Inc()

			if _, markErr := deps.Queries.SetMarkerFailed(ctx, payload.ContentID); markErr != nil {
				log.Error("failed to mark content failed", "error", markErr)
			}
			deps.taskFailed(ctx, payload.TaskID, err)

			log.Error("marker generation failed permanently",
				"error", err, "duration_ms", time.Since(start).Milliseconds())
			return middleware.Permanent(err)
		}

		deps.taskCompleted(ctx, payload.TaskID)
		log.Info("marker generation finished", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

// generateMarker is one attempt: claim the record, fetch the source image,
// compile, publish the artifact and promote the record.
func (d *Dependencies) generateMarker(ctx context.Context, contentID int64) error {
	log := logger.FromContext(ctx)

	content, err := d.Queries.GetContent(ctx, contentID)
	if err != nil {
		return err
	}

	claimed, err := d.Queries.SetContentProcessing(ctx, contentID)
	if err != nil {
		return fmt.Errorf("claim content: %w", err)
	}
	if !claimed {
		// A marker already exists; this attempt was superseded.
		log.Info("content already ready, skipping", "status", string(content.MarkerStatus))
		return nil
	}

	provider, err := d.providerForCompany(ctx, content.CompanyID)
	if err != nil {
		return err
	}

	dir, err := d.workDir("marker-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	srcPath := filepath.Join(dir, "source"+filepath.Ext(content.SourcePath))
	if _, err := provider.Download(ctx, content.SourcePath, srcPath); err != nil {
		return classifyStorageErr(err, "download source image")
	}

	// Publish the original under its canonical source key so every later
	// consumer reads from one place. Best effort: a failure here never
	// blocks marker generation.
	sourceKey := storage.SourceKey(contentID, filepath.Base(content.SourcePath))
	if content.SourcePath != sourceKey {
		if _, err := provider.Upload(ctx, srcPath, sourceKey, sourceContentType(content.SourcePath)); err != nil {
			log.Warn("source image publish failed", "key", sourceKey, "error", err)
		}
	}

	res, err := d.Compiler.Compile(ctx, srcPath, dir)
	if err != nil {
		return err
	}

	markerKey := storage.MarkerKey(contentID, "marker.mind")
	markerURL, err := provider.Upload(ctx, res.ArtifactPath, markerKey, "application/octet-stream")
	if err != nil {
		return classifyStorageErr(err, "upload marker artifact")
	}

	promoted, err := d.Queries.SetMarkerReady(ctx, db.MarkerReadyParams{
		ContentID:     contentID,
		MarkerPath:    markerKey,
		MarkerURL:     markerURL,
		SizeBytes:     res.SizeBytes,
		FeaturePoints: int32(res.FeaturePoints),
		GeneratedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("promote marker: %w", err)
	}
	if !promoted {
		log.Warn("marker promotion lost to a newer attempt")
		return nil
	}

	metrics.MarkerCompilationsTotal.WithLabelValues("success").Inc()
	metrics.MarkerFeaturePoints.Observe(float64(res.FeaturePoints))

	log.Info("marker ready",
		"marker_path", markerKey,
		"size_bytes", res.SizeBytes,
		"feature_points", res.FeaturePoints)
	return nil
}

func sourceContentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
