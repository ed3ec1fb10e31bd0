package extproc

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// Result holds the captured output of one finished process run.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runner executes external tools with a bounded timeout. A deadline hit is
// reported the same way as a non-zero exit so callers only handle one
// failure shape.
type Runner struct {
	Timeout time.Duration
}

func NewRunner(timeout time.Duration) *Runner {
	return &Runner{Timeout: timeout}
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	log := logger.FromContext(ctx)

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Descendants inheriting the output pipes must not extend the
	// deadline past the kill.
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return res, apperror.Wrap(err, apperror.KindExternalProcess,
				name+" timed out after "+r.Timeout.String())
		}
		return res, apperror.Wrap(err, apperror.KindExternalProcess,
			name+" failed: "+firstLine(res.Stderr))
	}

	log.Debug("external process completed",
		"command", name,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "no error output"
	}
	return s
}
