package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const scheduleColumns = `
	id, content_id, rule, video_order, dates, interval_seconds,
	next_rotation_at, last_rotated_at, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (RotationSchedule, error) {
	var (
		sched           RotationSchedule
		orderJSON       []byte
		datesJSON       []byte
		intervalSeconds int64
	)

	err := row.Scan(
		&sched.ID, &sched.ContentID, &sched.Rule, &orderJSON, &datesJSON, &intervalSeconds,
		&sched.NextRotationAt, &sched.LastRotatedAt, &sched.CreatedAt, &sched.UpdatedAt,
	)
	if err != nil {
		return RotationSchedule{}, err
	}

	sched.Interval = time.Duration(intervalSeconds) * time.Second
	if len(orderJSON) > 0 {
		if err := json.Unmarshal(orderJSON, &sched.VideoOrder); err != nil {
			return RotationSchedule{}, fmt.Errorf("decode video order: %w", err)
		}
	}
	if len(datesJSON) > 0 {
		if err := json.Unmarshal(datesJSON, &sched.Dates); err != nil {
			return RotationSchedule{}, fmt.Errorf("decode rotation dates: %w", err)
		}
	}
	return sched, nil
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (RotationSchedule, error) {
	q := `SELECT` + scheduleColumns + ` FROM rotation_schedules WHERE id = $1`

	sched, err := scanSchedule(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return RotationSchedule{}, notFound(err, fmt.Sprintf("rotation schedule %d not found", id))
	}
	return sched, nil
}

func (s *Store) ListDueSchedules(ctx context.Context, now time.Time) ([]RotationSchedule, error) {
	q := `SELECT` + scheduleColumns + `
		FROM rotation_schedules
		WHERE next_rotation_at IS NOT NULL AND next_rotation_at <= $1
		ORDER BY id`

	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []RotationSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// ClaimSchedule atomically advances next_rotation_at for a due schedule.
// At most one caller wins the claim for a given due time, which serializes
// rotation runs per schedule without a long-lived lock. Returns false when
// another worker already claimed it.
func (s *Store) ClaimSchedule(ctx context.Context, id int64, now time.Time, next *time.Time) (bool, error) {
	const q = `
		UPDATE rotation_schedules
		SET next_rotation_at = $3, last_rotated_at = $2, updated_at = NOW()
		WHERE id = $1 AND next_rotation_at IS NOT NULL AND next_rotation_at <= $2
	`

	tag, err := s.pool.Exec(ctx, q, id, now, next)
	if err != nil {
		return false, fmt.Errorf("claim schedule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
