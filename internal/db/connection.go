package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const connectionColumns = `
	sc.id, sc.company_id, sc.provider,
	sc.endpoint, sc.access_key, sc.secret_key, sc.bucket, sc.region, sc.use_ssl,
	sc.base_path, sc.public_base_url, sc.created_at`

func scanConnection(row interface{ Scan(...any) error }) (StorageConnection, error) {
	var c StorageConnection
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.Provider,
		&c.Endpoint, &c.AccessKey, &c.SecretKey, &c.Bucket, &c.Region, &c.UseSSL,
		&c.BasePath, &c.PublicBaseURL, &c.CreatedAt,
	)
	return c, err
}

func (s *Store) GetCompany(ctx context.Context, id int64) (Company, error) {
	const q = `SELECT id, name, storage_connection_id, created_at FROM companies WHERE id = $1`

	var c Company
	err := s.pool.QueryRow(ctx, q, id).Scan(&c.ID, &c.Name, &c.StorageConnectionID, &c.CreatedAt)
	if err != nil {
		return Company{}, notFound(err, fmt.Sprintf("company %d not found", id))
	}
	return c, nil
}

// GetStorageConnectionForCompany resolves the backend configured for a
// tenant. A company without a connection row falls back to the platform
// default, signalled by (nil, nil).
func (s *Store) GetStorageConnectionForCompany(ctx context.Context, companyID int64) (*StorageConnection, error) {
	q := `
		SELECT` + connectionColumns + `
		FROM storage_connections sc
		JOIN companies c ON c.storage_connection_id = sc.id
		WHERE c.id = $1`

	conn, err := scanConnection(s.pool.QueryRow(ctx, q, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get storage connection: %w", err)
	}
	return &conn, nil
}
