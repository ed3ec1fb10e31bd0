package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fegerV/ARV-sub005/internal/db"
	"github.com/fegerV/ARV-sub005/internal/logger"
)

var _ Provider = (*CloudDiskProvider)(nil)

// CloudDiskProvider talks to a third-party cloud-disk REST API. The bundled
// provider only needs folder management, listing and quota reads; object
// upload and download are not part of its feature set and return
// ErrUnsupported.
type CloudDiskProvider struct {
	endpoint string
	token    string
	basePath string
	httpc    *http.Client
}

func NewCloudDiskProvider(endpoint, token, basePath string) *CloudDiskProvider {
	return &CloudDiskProvider{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		basePath: strings.Trim(basePath, "/"),
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *CloudDiskProvider) Kind() db.ProviderKind {
	return db.ProviderCloudDisk
}

type diskResource struct {
	Path     string    `json:"path"`
	Type     string    `json:"type"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Embedded struct {
		Items []diskResource `json:"items"`
	} `json:"_embedded"`
}

type diskQuota struct {
	TotalSpace int64 `json:"total_space"`
	UsedSpace  int64 `json:"used_space"`
}

func (p *CloudDiskProvider) remotePath(path string) string {
	path = strings.Trim(path, "/")
	if p.basePath == "" {
		return "/" + path
	}
	if path == "" {
		return "/" + p.basePath
	}
	return "/" + p.basePath + "/" + path
}

func (p *CloudDiskProvider) do(ctx context.Context, method, apiPath string, query url.Values, out any) error {
	u := p.endpoint + apiPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("cloud disk request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("cloud disk %s %s: %w", method, apiPath, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cloud disk auth failed (%d): %s", resp.StatusCode, body)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("cloud disk %s %s: status %d: %s", method, apiPath, resp.StatusCode, body)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode cloud disk response: %w", err)
		}
	}
	return nil
}

func (p *CloudDiskProvider) TestConnection(ctx context.Context) error {
	var quota diskQuota
	if err := p.do(ctx, http.MethodGet, "/v1/disk", nil, &quota); err != nil {
		return err
	}
	return nil
}

func (p *CloudDiskProvider) Upload(ctx context.Context, localPath, destPath, contentType string) (string, error) {
	return "", fmt.Errorf("upload %s: %w", destPath, ErrUnsupported)
}

func (p *CloudDiskProvider) Download(ctx context.Context, sourcePath, destPath string) (string, error) {
	return "", fmt.Errorf("download %s: %w", sourcePath, ErrUnsupported)
}

func (p *CloudDiskProvider) Delete(ctx context.Context, path string) error {
	q := url.Values{"path": {p.remotePath(path)}, "permanently": {"true"}}
	if err := p.do(ctx, http.MethodDelete, "/v1/disk/resources", q, nil); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

func (p *CloudDiskProvider) List(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error) {
	return p.list(ctx, folder, recursive)
}

func (p *CloudDiskProvider) list(ctx context.Context, folder string, recursive bool) ([]ObjectInfo, error) {
	q := url.Values{
		"path":  {p.remotePath(folder)},
		"limit": {"1000"},
	}

	var res diskResource
	if err := p.do(ctx, http.MethodGet, "/v1/disk/resources", q, &res); err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}

	var objects []ObjectInfo
	for _, item := range res.Embedded.Items {
		switch item.Type {
		case "file":
			objects = append(objects, ObjectInfo{
				Path:       strings.TrimPrefix(strings.TrimPrefix(item.Path, "disk:"), "/"),
				Size:       item.Size,
				ModifiedAt: item.Modified,
			})
		case "dir":
			if !recursive {
				continue
			}
			rel := strings.Trim(folder, "/") + "/" + item.Path[strings.LastIndex(item.Path, "/")+1:]
			children, err := p.list(ctx, rel, true)
			if err != nil {
				return nil, err
			}
			objects = append(objects, children...)
		}
	}
	return objects, nil
}

func (p *CloudDiskProvider) CreateFolder(ctx context.Context, path string) error {
	log := logger.FromContext(ctx)

	q := url.Values{"path": {p.remotePath(path)}}
	err := p.do(ctx, http.MethodPut, "/v1/disk/resources", q, nil)
	if err != nil && strings.Contains(err.Error(), "status 409") {
		// Folder already exists.
		return nil
	}
	if err != nil {
		return fmt.Errorf("create folder %s: %w", path, err)
	}

	log.Debug("cloud disk folder created", "path", path)
	return nil
}

func (p *CloudDiskProvider) Usage(ctx context.Context, path string) (UsageInfo, error) {
	if strings.Trim(path, "/") == "" {
		var quota diskQuota
		if err := p.do(ctx, http.MethodGet, "/v1/disk", nil, &quota); err != nil {
			return UsageInfo{}, err
		}
		return UsageInfo{BytesUsed: quota.UsedSpace}, nil
	}

	objects, err := p.list(ctx, path, true)
	if err != nil {
		return UsageInfo{}, err
	}

	usage := UsageInfo{ObjectCount: int64(len(objects))}
	for _, o := range objects {
		usage.BytesUsed += o.Size
	}
	return usage, nil
}

func (p *CloudDiskProvider) PresignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return "", fmt.Errorf("presign %s: %w", path, ErrUnsupported)
}
