package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
)

var (
	ErrNotFound    = errors.New("storage: object not found")
	ErrInvalidPath = errors.New("storage: invalid path")

	// ErrUnsupported marks an operation a backend does not implement.
	// Callers must treat it as terminal, never as a transient failure.
	ErrUnsupported = errors.New("storage: operation not supported by this backend")
)

type ObjectInfo struct {
	Path       string
	Size       int64
	ModifiedAt time.Time
}

type UsageInfo struct {
	BytesUsed   int64
	ObjectCount int64
}

// Provider is the uniform contract over the physical storage backends.
// Upload and Download work on local file paths because every producer and
// consumer in the pipeline (compiler, frame extractor, thumbnail encoder)
// reads and writes ordinary files.
type Provider interface {
	Kind() db.ProviderKind
	TestConnection(ctx context.Context) error
	Upload(ctx context.Context, localPath, destPath, contentType string) (string, error)
	Download(ctx context.Context, sourcePath, destPath string) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error)
	CreateFolder(ctx context.Context, path string) error
	Usage(ctx context.Context, path string) (UsageInfo, error)
	PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// SourceKey returns the tenant-scoped object path for an uploaded reference
// image. Paths are namespaced per artifact kind so two tenants on one
// backend never collide.
func SourceKey(contentID int64, filename string) string {
	return fmt.Sprintf("content/%d/source/%s", contentID, filename)
}

func MarkerKey(contentID int64, filename string) string {
	return fmt.Sprintf("content/%d/marker/%s", contentID, filename)
}

func ThumbnailKey(kind string, recordID int64, size string) string {
	return fmt.Sprintf("thumbnails/%s/%d/%s.jpg", kind, recordID, size)
}
