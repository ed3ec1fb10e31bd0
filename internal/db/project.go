package db

import (
	"context"
	"fmt"
	"time"
)

const projectColumns = `
	id, company_id, name, status, contact_email, webhook_url,
	expires_at, expiration_notified_at, is_active, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Status, &p.ContactEmail, &p.WebhookURL,
		&p.ExpiresAt, &p.ExpirationNotifiedAt, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	q := `SELECT` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return Project{}, notFound(err, fmt.Sprintf("project %d not found", id))
	}
	return p, nil
}

// ListProjectsExpiringWithin returns active projects whose expiration falls
// inside the lookahead window and which have not been warned within the
// cooldown period.
func (s *Store) ListProjectsExpiringWithin(ctx context.Context, now time.Time, lookahead, cooldown time.Duration) ([]Project, error) {
	q := `SELECT` + projectColumns + `
		FROM projects
		WHERE is_active
		  AND status = 'active'
		  AND expires_at IS NOT NULL
		  AND expires_at > $1
		  AND expires_at <= $2
		  AND (expiration_notified_at IS NULL OR expiration_notified_at <= $3)
		ORDER BY expires_at`

	rows, err := s.pool.Query(ctx, q, now, now.Add(lookahead), now.Add(-cooldown))
	if err != nil {
		return nil, fmt.Errorf("list expiring projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) ListExpiredActiveProjects(ctx context.Context, now time.Time) ([]Project, error) {
	q := `SELECT` + projectColumns + `
		FROM projects
		WHERE is_active
		  AND status = 'active'
		  AND expires_at IS NOT NULL
		  AND expires_at <= $1
		ORDER BY expires_at`

	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("list expired projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) MarkProjectNotified(ctx context.Context, id int64, at time.Time) error {
	const q = `
		UPDATE projects
		SET expiration_notified_at = $2, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, at); err != nil {
		return fmt.Errorf("mark project notified: %w", err)
	}
	return nil
}

// ExpireProject marks an active project expired. The status guard makes the
// sweep idempotent: a second run over an already-expired project touches
// nothing and returns false.
func (s *Store) ExpireProject(ctx context.Context, id int64) (bool, error) {
	const q = `
		UPDATE projects
		SET status = 'expired', is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return false, fmt.Errorf("expire project: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
