package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
)

var _ Provider = (*MemoryProvider)(nil)

// MemoryProvider keeps objects in a map. Test double for handlers and sweeps
// that need a Provider without touching disk or the network.
type MemoryProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
	folders map[string]bool

	// FailUpload, when set, is returned by every Upload call.
	FailUpload error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		objects: make(map[string][]byte),
		folders: make(map[string]bool),
	}
}

func (p *MemoryProvider) Kind() db.ProviderKind {
	return db.ProviderLocal
}

func (p *MemoryProvider) TestConnection(ctx context.Context) error {
	return nil
}

func (p *MemoryProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	if p.FailUpload != nil {
		return "", p.FailUpload
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.objects[strings.Trim(destPath, "/")] = data
	p.mu.Unlock()

	return "memory://" + strings.Trim(destPath, "/"), nil
}

func (p *MemoryProvider) Download(ctx context.Context, sourcePath, destPath string) (string, error) {
	p.mu.Lock()
	data, ok := p.objects[strings.Trim(sourcePath, "/")]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("download %s: %w", sourcePath, ErrNotFound)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", err
	}
	return destPath, nil
}

func (p *MemoryProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := strings.Trim(path, "/")
	if _, ok := p.objects[key]; !ok {
		return fmt.Errorf("delete %s: %w", path, ErrNotFound)
	}
	delete(p.objects, key)
	return nil
}

func (p *MemoryProvider) List(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error) {
	prefix := strings.Trim(folder, "/")
	if prefix != "" {
		prefix += "/"
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var objects []ObjectInfo
	for key, data := range p.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		if !recursive && strings.Contains(rest, "/") {
			continue
		}
		objects = append(objects, ObjectInfo{Path: key, Size: int64(len(data))})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Path < objects[j].Path })
	return objects, nil
}

func (p *MemoryProvider) CreateFolder(ctx context.Context, path string) error {
	p.mu.Lock()
	p.folders[strings.Trim(path, "/")] = true
	p.mu.Unlock()
	return nil
}

func (p *MemoryProvider) Usage(ctx context.Context, path string) (UsageInfo, error) {
	objects, err := p.List(ctx, path, true)
	if err != nil {
		return UsageInfo{}, err
	}
	usage := UsageInfo{ObjectCount: int64(len(objects))}
	for _, o := range objects {
		usage.BytesUsed += o.Size
	}
	return usage, nil
}

func (p *MemoryProvider) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "memory://" + strings.Trim(path, "/"), nil
}

// Object returns a stored object's bytes, for assertions.
func (p *MemoryProvider) Object(path string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[strings.Trim(path, "/")]
	return data, ok
}

// HasFolder reports whether CreateFolder was called for path.
func (p *MemoryProvider) HasFolder(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.folders[strings.Trim(path, "/")]
}
