package thumbnail

import (
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fegerV/ARV-sub005/internal/apperror"
)

func writeTestJPEG(t *testing.T, width, height int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	path := filepath.Join(t.TempDir(), "source.jpg")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	return path
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestRenderAllProducesEveryVariant(t *testing.T) {
	src := writeTestJPEG(t, 1600, 896)
	outDir := t.TempDir()

	out, err := RenderAll(context.Background(), src, outDir)
	require.NoError(t, err)
	require.Len(t, out, len(Variants))

	for _, v := range Variants {
		path, ok := out[v.Name]
		require.True(t, ok, "missing variant %s", v.Name)

		w, h := decodeSize(t, path)
		assert.Equal(t, v.Width, w)
		assert.LessOrEqual(t, h, v.Height)
	}
}

func TestRenderAllPreservesAspectRatio(t *testing.T) {
	// A portrait source must fit inside the box, not be stretched to it.
	src := writeTestJPEG(t, 450, 800)

	out, err := RenderAll(context.Background(), src, t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, out["small"])
	assert.LessOrEqual(t, w, 200)
	assert.LessOrEqual(t, h, 112)
	assert.InDelta(t, 450.0/800.0, float64(w)/float64(h), 0.05)
}

func TestRenderAllNeverUpscales(t *testing.T) {
	src := writeTestJPEG(t, 100, 56)

	out, err := RenderAll(context.Background(), src, t.TempDir())
	require.NoError(t, err)

	w, h := decodeSize(t, out["large"])
	assert.LessOrEqual(t, w, 100)
	assert.LessOrEqual(t, h, 56)
}

func TestRenderAllUndecodableSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-image.jpg")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	_, err := RenderAll(context.Background(), path, t.TempDir())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindPrecondition))
}
