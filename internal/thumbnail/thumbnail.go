package thumbnail

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/fegerV/ARV-sub005/internal/apperror"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

// Quality is the JPEG quality used for every rendered variant.
const Quality = 85

// Variant is one fixed output size. Variants preserve the source aspect
// ratio, so the stated dimensions are upper bounds.
type Variant struct {
	Name   string
	Width  int
	Height int
}

// Variants are rendered for every thumbnail task, smallest first.
var Variants = []Variant{
	{Name: "small", Width: 200, Height: 112},
	{Name: "medium", Width: 400, Height: 225},
	{Name: "large", Width: 800, Height: 450},
}

// Rendered maps a variant name to the local path of its JPEG file.
type Rendered map[string]string

// RenderAll decodes sourcePath once and writes one JPEG per variant into
// outDir. An undecodable source is terminal, retries see the same bytes.
func RenderAll(ctx context.Context, sourcePath, outDir string) (Rendered, error) {
	log := logger.FromContext(ctx)

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindPrecondition, "source image not decodable")
	}

	out := make(Rendered, len(Variants))
	for _, v := range Variants {
		resized := imaging.Fit(src, v.Width, v.Height, imaging.Lanczos)

		path := filepath.Join(outDir, v.Name+".jpg")
		if err := imaging.Save(resized, path, imaging.JPEGQuality(Quality)); err != nil {
			return nil, fmt.Errorf("save %s thumbnail: %w", v.Name, err)
		}
		out[v.Name] = path
	}

	log.Debug("thumbnails rendered",
		"source", filepath.Base(sourcePath),
		"variants", len(out))
	return out, nil
}
