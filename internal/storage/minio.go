package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Provider = (*MinIOProvider)(nil)

type MinIOConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	Region        string
	PublicBaseURL string
}

// MinIOProvider backs the object-store provider kind. Any S3-compatible
// endpoint works, the client is just minio's.
type MinIOProvider struct {
	client *minio.Client
	bucket string
	config *MinIOConfig
}

func NewMinIOProvider(cfg *MinIOConfig) (*MinIOProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOProvider{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

func (p *MinIOProvider) Kind() db.ProviderKind {
	return db.ProviderObjectStore
}

// EnsureBucket creates the bucket if missing and applies a public-read
// policy so that marker and thumbnail URLs are directly servable.
func (p *MinIOProvider) EnsureBucket(ctx context.Context) error {
	log := logger.FromContext(ctx)

	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		log.Info("creating bucket", "bucket", p.bucket, "region", p.config.Region)
		err = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{
			Region: p.config.Region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	policy := fmt.Sprintf(`{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::%s/*"]
		}]
	}`, p.bucket)

	if err := p.client.SetBucketPolicy(ctx, p.bucket, policy); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	return nil
}

func (p *MinIOProvider) TestConnection(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("bucket check failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", p.bucket)
	}
	return nil
}

func (p *MinIOProvider) objectURL(key string) string {
	if p.config.PublicBaseURL != "" {
		return strings.TrimRight(p.config.PublicBaseURL, "/") + "/" + key
	}
	scheme := "http"
	if p.config.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, p.config.Endpoint, p.bucket, key)
}

func (p *MinIOProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	key := strings.TrimLeft(destPath, "/")
	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		log.Error("storage upload failed", "key", key, "error", err)
		return "", fmt.Errorf("upload to %s: %w", key, err)
	}

	log.Debug("storage upload completed", "key", key, "content_type", contentType, "duration_ms", time.Since(start).Milliseconds())
	return p.objectURL(key), nil
}

func (p *MinIOProvider) Download(ctx context.Context, sourcePath, destPath string) (string, error) {
	log := logger.FromContext(ctx)

	key := strings.TrimLeft(sourcePath, "/")
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent dir: %w", err)
	}

	if err := p.client.FGetObject(ctx, p.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
		if isNotFoundError(err) {
			log.Warn("storage object not found", "key", key)
			return "", ErrNotFound
		}
		log.Error("storage download failed", "key", key, "error", err)
		return "", fmt.Errorf("download %s: %w", key, err)
	}
	return destPath, nil
}

func (p *MinIOProvider) Delete(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)

	key := strings.TrimLeft(path, "/")
	if err := p.client.RemoveObject(ctx, p.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		log.Error("storage delete failed", "key", key, "error", err)
		return fmt.Errorf("delete %s: %w", key, err)
	}

	log.Debug("storage object deleted", "key", key)
	return nil
}

func (p *MinIOProvider) List(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error) {
	prefix := strings.TrimLeft(folder, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var objects []ObjectInfo
	for obj := range p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", folder, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		objects = append(objects, ObjectInfo{
			Path:       obj.Key,
			Size:       obj.Size,
			ModifiedAt: obj.LastModified,
		})
	}
	return objects, nil
}

// CreateFolder is a no-op object for S3-style stores; folders exist once an
// object carries the prefix. A zero-byte sentinel keeps empty folders
// listable.
func (p *MinIOProvider) CreateFolder(ctx context.Context, path string) error {
	key := strings.TrimLeft(path, "/")
	if !strings.HasSuffix(key, "/") {
		key += "/"
	}

	_, err := p.client.PutObject(ctx, p.bucket, key, strings.NewReader(""), 0, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}
	return nil
}

func (p *MinIOProvider) Usage(ctx context.Context, path string) (UsageInfo, error) {
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

func (p *MinIOProvider) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	log := logger.FromContext(ctx)

	key := strings.TrimLeft(path, "/")
	url, err := p.client.PresignedGetObject(ctx, p.bucket, key, expiry, nil)
	if err != nil {
		log.Error("storage presign failed", "key", key, "error", err)
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return url.String(), nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey"
}
