package db

import (
	"context"
	"fmt"
	"time"
)

const contentColumns = `
	id, token, project_id, company_id,
	source_path, source_url,
	marker_path, marker_url, marker_status, marker_generated_at, marker_size_bytes, feature_points,
	thumb_small_url, thumb_medium_url, thumb_large_url,
	is_active, expires_at, created_at, updated_at`

func scanContent(row interface{ Scan(...any) error }) (Content, error) {
	var c Content
	err := row.Scan(
		&c.ID, &c.Token, &c.ProjectID, &c.CompanyID,
		&c.SourcePath, &c.SourceURL,
		&c.MarkerPath, &c.MarkerURL, &c.MarkerStatus, &c.MarkerGeneratedAt, &c.MarkerSizeBytes, &c.FeaturePoints,
		&c.ThumbSmallURL, &c.ThumbMediumURL, &c.ThumbLargeURL,
		&c.IsActive, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (s *Store) GetContent(ctx context.Context, id int64) (Content, error) {
	q := `SELECT` + contentColumns + ` FROM contents WHERE id = $1`

	c, err := scanContent(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return Content{}, notFound(err, fmt.Sprintf("content %d not found", id))
	}
	return c, nil
}

// SetContentProcessing transitions a content record into the processing
// state. The guard keeps status monotonic: a record that already reached
// ready is never pulled back by a stale retry, in which case false is
// returned and the caller must treat its attempt as superseded.
func (s *Store) SetContentProcessing(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE contents
		SET marker_status = 'processing', updated_at = NOW()
		WHERE id = $1 AND marker_status <> 'ready'
	`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("content set processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type MarkerReadyParams struct {
	ContentID     int64
	MarkerPath    string
	MarkerURL     string
	SizeBytes     int64
	FeaturePoints int32
	GeneratedAt   time.Time
}

// SetMarkerReady persists a successful compilation. Only a record still in
// processing can be promoted, so a late attempt cannot clobber a newer one.
func (s *Store) SetMarkerReady(ctx context.Context, arg MarkerReadyParams) (bool, error) {
	const q = `
		UPDATE contents
		SET marker_path = $2,
		    marker_url = $3,
		    marker_status = 'ready',
		    marker_generated_at = $4,
		    marker_size_bytes = $5,
		    feature_points = $6,
		    updated_at = NOW()
		WHERE id = $1 AND marker_status = 'processing'
	`

	tag, err := s.pool.Exec(ctx, q,
		arg.ContentID, arg.MarkerPath, arg.MarkerURL, arg.GeneratedAt, arg.SizeBytes, arg.FeaturePoints,
	)
	if err != nil {
		return false, fmt.Errorf("content set marker ready: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetMarkerFailed(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE contents
		SET marker_status = 'failed', updated_at = NOW()
		WHERE id = $1 AND marker_status = 'processing'
	`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("content set marker failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) SetContentThumbnails(ctx context.Context, id int64, small, medium, large string) error {
	const q = `
		UPDATE contents
		SET thumb_small_url = $2, thumb_medium_url = $3, thumb_large_url = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, small, medium, large); err != nil {
		return fmt.Errorf("content set thumbnails: %w", err)
	}
	return nil
}

func (s *Store) DeactivateProjectContents(ctx context.Context, projectID int64) (int64, error) {
	const q = `
		UPDATE contents
		SET is_active = FALSE, updated_at = NOW()
		WHERE project_id = $1 AND is_active
	`

	tag, err := s.pool.Exec(ctx, q, projectID)
	if err != nil {
		return 0, fmt.Errorf("deactivate project contents: %w", err)
	}
	return tag.RowsAffected(), nil
}
