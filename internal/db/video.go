package db

import (
	"context"
	"fmt"
)

const videoColumns = `
	id, content_id, storage_path, url,
	thumb_small_url, thumb_medium_url, thumb_large_url,
	is_active, sort_order, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (Video, error) {
	var v Video
	err := row.Scan(
		&v.ID, &v.ContentID, &v.StoragePath, &v.URL,
		&v.ThumbSmallURL, &v.ThumbMediumURL, &v.ThumbLargeURL,
		&v.IsActive, &v.SortOrder, &v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

func (s *Store) GetVideo(ctx context.Context, id int64) (Video, error) {
	q := `SELECT` + videoColumns + ` FROM videos WHERE id = $1`

	v, err := scanVideo(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return Video{}, notFound(err, fmt.Sprintf("video %d not found", id))
	}
	return v, nil
}

func (s *Store) ListVideosForContent(ctx context.Context, contentID int64) ([]Video, error) {
	q := `SELECT` + videoColumns + ` FROM videos WHERE content_id = $1 ORDER BY sort_order, id`

	rows, err := s.pool.Query(ctx, q, contentID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *Store) SetVideoThumbnails(ctx context.Context, id int64, small, medium, large string) error {
	const q = `
		UPDATE videos
		SET thumb_small_url = $2, thumb_medium_url = $3, thumb_large_url = $4, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, small, medium, large); err != nil {
		return fmt.Errorf("video set thumbnails: %w", err)
	}
	return nil
}

func (s *Store) CountActiveVideos(ctx context.Context, contentID int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM videos WHERE content_id = $1 AND is_active`

	var n int64
	if err := s.pool.QueryRow(ctx, q, contentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active videos: %w", err)
	}
	return n, nil
}

// SetActiveVideo flips videoID active and every sibling inactive in one
// statement, so the single-active invariant holds no matter what state the
// rows were in beforehand.
func (s *Store) SetActiveVideo(ctx context.Context, contentID, videoID int64) error {
	const q = `
		UPDATE videos
		SET is_active = (id = $2), updated_at = NOW()
		WHERE content_id = $1
	`

	if _, err := s.pool.Exec(ctx, q, contentID, videoID); err != nil {
		return fmt.Errorf("set active video: %w", err)
	}
	return nil
}
