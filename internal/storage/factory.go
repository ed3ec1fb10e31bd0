package storage

import (
	"fmt"
	"sync"

	"github.com/fegerV/ARV-sub005/internal/db"
)

// Factory resolves a tenant's storage connection to a ready Provider.
// Providers are cached per connection id so repeated tasks for the same
// tenant reuse one client.
type Factory struct {
	defaultProvider Provider
	wrap            func(Provider) Provider

	mu    sync.Mutex
	cache map[int64]Provider
}

// NewFactory builds a factory over the platform-default provider. When
// wrap is non-nil every provider the factory hands out, the default and
// the tenant-built ones alike, passes through it.
func NewFactory(defaultProvider Provider, wrap func(Provider) Provider) *Factory {
	if wrap == nil {
		wrap = func(p Provider) Provider { return p }
	}
	return &Factory{
		defaultProvider: wrap(defaultProvider),
		wrap:            wrap,
		cache:           make(map[int64]Provider),
	}
}

// ProviderFor returns the provider for conn. A nil connection means the
// tenant has no dedicated backend and falls back to the platform default.
func (f *Factory) ProviderFor(conn *db.StorageConnection) (Provider, error) {
	if conn == nil {
		return f.defaultProvider, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[conn.ID]; ok {
		return p, nil
	}

	p, err := f.build(conn)
	if err != nil {
		return nil, err
	}
	p = f.wrap(p)
	f.cache[conn.ID] = p
	return p, nil
}

func (f *Factory) build(conn *db.StorageConnection) (Provider, error) {
	switch conn.Provider {
	case db.ProviderLocal:
		return NewLocalProvider(conn.BasePath, conn.PublicBaseURL), nil

	case db.ProviderObjectStore:
		return NewMinIOProvider(&MinIOConfig{
			Endpoint:      conn.Endpoint,
			AccessKey:     conn.AccessKey,
			SecretKey:     conn.SecretKey,
			Bucket:        conn.Bucket,
			Region:        conn.Region,
			UseSSL:        conn.UseSSL,
			PublicBaseURL: conn.PublicBaseURL,
		})

	case db.ProviderCloudDisk:
		// Cloud disk auth is a single OAuth token, stored in the
		// access key column.
		return NewCloudDiskProvider(conn.Endpoint, conn.AccessKey, conn.BasePath), nil

	default:
		return nil, fmt.Errorf("unknown storage provider %q", conn.Provider)
	}
}

// Invalidate drops a cached provider, forcing a rebuild on next use. Called
// after a tenant edits their connection credentials.
func (f *Factory) Invalidate(connectionID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cache, connectionID)
}
