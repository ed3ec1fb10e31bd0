package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/job-queue/pkg/job"
	"github.com/abdul-hamid-achik/job-queue/pkg/middleware"

	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/fegerV/ARV-sub005/internal/metrics"
	"github.com/fegerV/ARV-sub005/internal/queue"
	"github.com/fegerV/ARV-sub005/internal/storage"
	"github.com/fegerV/ARV-sub005/internal/thumbnail"
	"github.com/fegerV/ARV-sub005/internal/tracing"
)

// ContentThumbnailHandler renders the preview set for a content record's
// reference image.
func ContentThumbnailHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", queue.TaskContentThumbnails)

		var payload queue.ContentThumbnailPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		log = log.With("content_id", payload.ContentID, "task_id", payload.TaskID.String())
		ctx = logger.WithLogger(ctx, log)

		ctx, span := tracing.StartTask(ctx, queue.TaskContentThumbnails, payload.ContentID)
		defer span.End()

		log.Info("content thumbnails started")
		start := time.Now()
		deps.taskRunning(ctx, payload.TaskID)

		err := deps.runAttempts(ctx, payload.TaskID, func() error {
			return deps.renderContentThumbnails(ctx, payload.ContentID)
		})
		if err != nil {
			tracing.RecordError(ctx, err)
			metrics.ThumbnailsRenderedTotal.WithLabelValues("content", "error").Inc()
			deps.taskFailed(ctx, payload.TaskID, err)
			log.Error("content thumbnails failed permanently", "error", err)
			return middleware.Permanent(err)
		}

		deps.taskCompleted(ctx, payload.TaskID)
		metrics.ThumbnailsRenderedTotal.WithLabelValues("content", "success").Inc()
		log.Info("content thumbnails finished", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

func (d *Dependencies) renderContentThumbnails(ctx context.Context, contentID int64) error {
	content, err := d.Queries.GetContent(ctx, contentID)
	if err != nil {
		return err
	}

	provider, err := d.providerForCompany(ctx, content.CompanyID)
	if err != nil {
		return err
	}

	dir, err := d.workDir("thumbs-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	srcPath := filepath.Join(dir, "source"+filepath.Ext(content.SourcePath))
	if _, err := provider.Download(ctx, content.SourcePath, srcPath); err != nil {
		return classifyStorageErr(err, "download source image")
	}

	urls, err := d.renderAndUpload(ctx, provider, srcPath, dir, "content", contentID)
	if err != nil {
		return err
	}

	return d.Queries.SetContentThumbnails(ctx, contentID, urls["small"], urls["medium"], urls["large"])
}

// VideoThumbnailHandler renders the preview set for a video, using the
// frame at the video's midpoint as the still.
func VideoThumbnailHandler(deps *Dependencies) func(context.Context, *job.Job) error {
	return func(ctx context.Context, j *job.Job) error {
		log := logger.FromContext(ctx).With("job_id", j.ID, "job_type", queue.TaskVideoThumbnails)

		var payload queue.VideoThumbnailPayload
		if err := j.UnmarshalPayload(&payload); err != nil {
			log.Error("invalid payload", "error", err)
			return middleware.Permanent(fmt.Errorf("invalid payload: %w", err))
		}

		log = log.With("video_id", payload.VideoID, "task_id", payload.TaskID.String())
		ctx = logger.WithLogger(ctx, log)

		ctx, span := tracing.StartTask(ctx, queue.TaskVideoThumbnails, payload.VideoID)
		defer span.End()

		log.Info("video thumbnails started")
		start := time.Now()
		deps.taskRunning(ctx, payload.TaskID)

		err := deps.runAttempts(ctx, payload.TaskID, func() error {
			return deps.renderVideoThumbnails(ctx, payload.VideoID)
		})
		if err != nil {
			tracing.RecordError(ctx, err)
			metrics.ThumbnailsRenderedTotal.WithLabelValues("video", "error").Inc()
			deps.taskFailed(ctx, payload.TaskID, err)
			log.Error("video thumbnails failed permanently", "error", err)
			return middleware.Permanent(err)
		}

		deps.taskCompleted(ctx, payload.TaskID)
		metrics.ThumbnailsRenderedTotal.WithLabelValues("video", "success").Inc()
		log.Info("video thumbnails finished", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
}

func (d *Dependencies) renderVideoThumbnails(ctx context.Context, videoID int64) error {
	video, err := d.Queries.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	content, err := d.Queries.GetContent(ctx, video.ContentID)
	if err != nil {
		return err
	}

	provider, err := d.providerForCompany(ctx, content.CompanyID)
	if err != nil {
		return err
	}

	dir, err := d.workDir("vthumbs-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	videoPath := filepath.Join(dir, "video"+filepath.Ext(video.StoragePath))
	if _, err := provider.Download(ctx, video.StoragePath, videoPath); err != nil {
		return classifyStorageErr(err, "download video")
	}

	framePath := filepath.Join(dir, "frame.jpg")
	if err := d.Frames.ExtractMidpointFrame(ctx, videoPath, framePath); err != nil {
		return err
	}

	urls, err := d.renderAndUpload(ctx, provider, framePath, dir, "video", videoID)
	if err != nil {
		return err
	}

	return d.Queries.SetVideoThumbnails(ctx, videoID, urls["small"], urls["medium"], urls["large"])
}

// renderAndUpload produces every thumbnail variant from srcPath and uploads
// them under the record's namespace, returning variant name to URL.
func (d *Dependencies) renderAndUpload(ctx context.Context, provider storage.Provider, srcPath, dir, kind string, recordID int64) (map[string]string, error) {
	rendered, err := thumbnail.RenderAll(ctx, srcPath, dir)
	if err != nil {
		return nil, err
	}

	urls := make(map[string]string, len(rendered))
	for name, path := range rendered {
		key := storage.ThumbnailKey(kind, recordID, name)
		url, err := provider.Upload(ctx, path, key, "image/jpeg")
		if err != nil {
			return nil, classifyStorageErr(err, "upload "+name+" thumbnail")
		}
		urls[name] = url
	}
	return urls, nil
}
