package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const taskColumns = `
	id, kind, record_id, status, attempts, error, created_at, started_at, finished_at`

func scanTask(row interface{ Scan(...any) error }) (ProcessingTask, error) {
	var t ProcessingTask
	err := row.Scan(
		&t.ID, &t.Kind, &t.RecordID, &t.Status, &t.Attempts, &t.Error,
		&t.CreatedAt, &t.StartedAt, &t.FinishedAt,
	)
	return t, err
}

func (s *Store) CreateTask(ctx context.Context, kind string, recordID int64) (ProcessingTask, error) {
	q := `
		INSERT INTO processing_tasks (id, kind, record_id, status, attempts, created_at)
		VALUES ($1, $2, $3, 'pending', 0, NOW())
		RETURNING` + taskColumns

	t, err := scanTask(s.pool.QueryRow(ctx, q, uuid.New(), kind, recordID))
	if err != nil {
		return ProcessingTask{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (ProcessingTask, error) {
	q := `SELECT` + taskColumns + ` FROM processing_tasks WHERE id = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return ProcessingTask{}, notFound(err, fmt.Sprintf("task %s not found", id))
	}
	return t, nil
}

func (s *Store) MarkTaskRunning(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE processing_tasks
		SET status = 'running', started_at = COALESCE(started_at, NOW())
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("mark task running: %w", err)
	}
	return nil
}

func (s *Store) IncrementTaskAttempts(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE processing_tasks SET attempts = attempts + 1 WHERE id = $1`

	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("increment task attempts: %w", err)
	}
	return nil
}

func (s *Store) MarkTaskCompleted(ctx context.Context, id uuid.UUID) error {
	const q = `
		UPDATE processing_tasks
		SET status = 'completed', error = NULL, finished_at = NOW()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("mark task completed: %w", err)
	}
	return nil
}

func (s *Store) MarkTaskFailed(ctx context.Context, id uuid.UUID, errText string) error {
	const q = `
		UPDATE processing_tasks
		SET status = 'failed', error = $2, finished_at = NOW()
		WHERE id = $1
	`

	if _, err := s.pool.Exec(ctx, q, id, errText); err != nil {
		return fmt.Errorf("mark task failed: %w", err)
	}
	return nil
}
