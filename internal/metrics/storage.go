package metrics

import (
	"context"
	"time"

	"github.com/fegerV/ARV-sub005/internal/storage"
)

// InstrumentedProvider wraps a storage provider with operation counters and
// latency histograms. Unwrapped methods pass through via embedding.
type InstrumentedProvider struct {
	storage.Provider
}

var _ storage.Provider = (*InstrumentedProvider)(nil)

func NewInstrumentedProvider(p storage.Provider) *InstrumentedProvider {
	return &InstrumentedProvider{Provider: p}
}

func (s *InstrumentedProvider) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	StorageOperationsTotal.WithLabelValues(string(s.Provider.Kind()), operation, status).Inc()
	StorageOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (s *InstrumentedProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	start := time.Now()
	url, err := s.Provider.Upload(ctx, localPath, destPath, contentType)
	s.observe("upload", start, err)
	return url, err
}

func (s *InstrumentedProvider) Download(ctx context.Context, sourcePath, destPath string) (string, error) {
	start := time.Now()
	path, err := s.Provider.Download(ctx, sourcePath, destPath)
	s.observe("download", start, err)
	return path, err
}

func (s *InstrumentedProvider) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := s.Provider.Delete(ctx, path)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedProvider) List(ctx context.Context, folder string, recursive bool) ([]storage.ObjectInfo, error) {
	start := time.Now()
	objects, err := s.Provider.List(ctx, folder, recursive)
	s.observe("list", start, err)
	return objects, err
}
