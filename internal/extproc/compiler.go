package extproc

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// MarkerArtifactName is the file the compiler must leave in its output
// directory for a run to count as successful.
const MarkerArtifactName = "marker.mind"

var featureLineRe = regexp.MustCompile(`(?m)^features:\s*(\d+)\s*$`)

// CompileResult describes a successfully produced tracking marker.
type CompileResult struct {
	ArtifactPath  string
	SizeBytes     int64
	FeaturePoints int
}

// MarkerCompiler wraps the marker compiler binary. A run succeeds only when
// the process exits zero AND the marker artifact exists in the output
// directory; an exit-zero run without the artifact is still a failure.
type MarkerCompiler struct {
	binary           string
	runner           *Runner
	maxFeaturePoints int
}

func NewMarkerCompiler(binary string, timeout time.Duration, maxFeaturePoints int) *MarkerCompiler {
	return &MarkerCompiler{
		binary:           binary,
		runner:           NewRunner(timeout),
		maxFeaturePoints: maxFeaturePoints,
	}
}

// Compile runs the compiler over the source image and returns the produced
// artifact. outDir must exist and be writable.
func (c *MarkerCompiler) Compile(ctx context.Context, imagePath, outDir string) (*CompileResult, error) {
	log := logger.FromContext(ctx)

	if _, err := os.Stat(imagePath); err != nil {
		return nil, apperror.Wrap(err, apperror.KindPrecondition, "source image not readable")
	}

	args := []string{
		"--input", imagePath,
		"--output", outDir,
		"--max-features", strconv.Itoa(c.maxFeaturePoints),
	}

	res, err := c.runner.Run(ctx, c.binary, args...)
	if err != nil {
		return nil, err
	}

	artifact := filepath.Join(outDir, MarkerArtifactName)
	info, err := os.Stat(artifact)
	if err != nil {
		return nil, apperror.New(apperror.KindExternalProcess,
			"compiler exited cleanly but produced no marker artifact")
	}
	if info.Size() == 0 {
		return nil, apperror.New(apperror.KindExternalProcess, "compiler produced empty marker artifact")
	}

	points := parseFeaturePoints(res.Stdout)

	log.Info("marker compiled",
		"artifact_bytes", info.Size(),
		"feature_points", points,
		"duration_ms", res.Duration.Milliseconds())

	return &CompileResult{
		ArtifactPath:  artifact,
		SizeBytes:     info.Size(),
		FeaturePoints: points,
	}, nil
}

// parseFeaturePoints reads the feature count the compiler prints on stdout.
// Missing or malformed output yields zero; the count is informational only.
func parseFeaturePoints(stdout string) int {
	m := featureLineRe.FindStringSubmatch(stdout)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}
