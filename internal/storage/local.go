package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

var _ Provider = (*LocalProvider)(nil)

// LocalProvider stores objects under a root directory on the worker host
// and serves them via a configured base URL.
type LocalProvider struct {
	root    string
	baseURL string
}

func NewLocalProvider(root, baseURL string) *LocalProvider {
	return &LocalProvider{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *LocalProvider) Kind() db.ProviderKind {
	return db.ProviderLocal
}

func (p *LocalProvider) resolve(path string) (string, error) {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s escapes storage root", ErrInvalidPath, path)
		}
	}
	cleaned := filepath.Clean("/" + path)
	if cleaned == "/" {
		return p.root, nil
	}
	return filepath.Join(p.root, cleaned), nil
}

func (p *LocalProvider) url(path string) string {
	if p.baseURL == "" {
		return "file://" + filepath.Join(p.root, path)
	}
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (p *LocalProvider) TestConnection(ctx context.Context) error {
	if err := os.MkdirAll(p.root, 0o755); err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	return nil
}

func (p *LocalProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	log := logger.FromContext(ctx)

	full, err := p.resolve(destPath)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}

	if err := copyFile(localPath, full); err != nil {
		return "", fmt.Errorf("upload %s: %w", destPath, err)
	}

	log.Debug("local storage upload completed", "path", destPath, "content_type", contentType)
	return p.url(destPath), nil
}

func (p *LocalProvider) Download(ctx context.Context, sourcePath, destPath string) (string, error) {
	full, err := p.resolve(sourcePath)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(full); os.IsNotExist(err) {
		return "", ErrNotFound
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}

	if err := copyFile(full, destPath); err != nil {
		return "", fmt.Errorf("download %s: %w", sourcePath, err)
	}
	return destPath, nil
}

func (p *LocalProvider) Delete(ctx context.Context, path string) error {
	full, err := p.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (p *LocalProvider) List(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error) {
	full, err := p.resolve(folder)
	if err != nil {
		return nil, err
	}

	var objects []ObjectInfo
	if recursive {
		err = filepath.Walk(full, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(p.root, path)
			if relErr != nil {
				return relErr
			}
			objects = append(objects, ObjectInfo{
				Path:       filepath.ToSlash(rel),
				Size:       info.Size(),
				ModifiedAt: info.ModTime(),
			})
			return nil
		})
		if os.IsNotExist(err) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, err)
		}
		return objects, nil
	}

	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, ObjectInfo{
			Path:       filepath.ToSlash(filepath.Join(strings.TrimLeft(folder, "/"), entry.Name())),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	return objects, nil
}

func (p *LocalProvider) CreateFolder(ctx context.Context, path string) error {
	full, err := p.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(full, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

func (p *LocalProvider) Usage(ctx context.Context, path string) (UsageInfo, error) {
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

// PresignedURL on the local backend returns the plain served URL; there is
// nothing to sign.
func (p *LocalProvider) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	full, err := p.resolve(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); os.IsNotExist(err) {
		return "", ErrNotFound
	}
	return p.url(path), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
