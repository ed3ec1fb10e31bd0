package extproc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// FrameExtractor pulls single frames out of video files with ffmpeg,
// probing duration with ffprobe first.
type FrameExtractor struct {
	ffmpeg  string
	ffprobe string
	runner  *Runner
}

func NewFrameExtractor(ffmpegPath, ffprobePath string, timeout time.Duration) *FrameExtractor {
	return &FrameExtractor{
		ffmpeg:  ffmpegPath,
		ffprobe: ffprobePath,
		runner:  NewRunner(timeout),
	}
}

// Duration probes the container duration of videoPath.
func (e *FrameExtractor) Duration(ctx context.Context, videoPath string) (time.Duration, error) {
	res, err := e.runner.Run(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	if err != nil {
		return 0, err
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(res.Stdout), 64)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.KindExternalProcess, "ffprobe returned unparseable duration")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// ExtractFrame writes the frame at offset as a JPEG to outPath. The run
// succeeds only when ffmpeg exits zero AND the frame file exists; an
// exit-zero run without output is still a failure.
func (e *FrameExtractor) ExtractFrame(ctx context.Context, videoPath string, offset time.Duration, outPath string) error {
	_, err := e.runner.Run(ctx, e.ffmpeg,
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		outPath,
	)
	if err != nil {
		return err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return apperror.New(apperror.KindExternalProcess,
			"ffmpeg exited cleanly but produced no frame")
	}
	if info.Size() == 0 {
		return apperror.New(apperror.KindExternalProcess, "ffmpeg produced empty frame")
	}
	return nil
}

// ExtractMidpointFrame grabs the representative frame from the middle of the
// video. A zero or negative probed duration means the file is not a usable
// video and retrying cannot help.
func (e *FrameExtractor) ExtractMidpointFrame(ctx context.Context, videoPath, outPath string) error {
	log := logger.FromContext(ctx)

	dur, err := e.Duration(ctx, videoPath)
	if err != nil {
		return err
	}
	if dur <= 0 {
		return apperror.New(apperror.KindPrecondition, "video has zero duration")
	}

	mid := dur / 2
	if err := e.ExtractFrame(ctx, videoPath, mid, outPath); err != nil {
		return err
	}

	log.Debug("midpoint frame extracted",
		"duration_ms", dur.Milliseconds(),
		"offset_ms", mid.Milliseconds())
	return nil
}
