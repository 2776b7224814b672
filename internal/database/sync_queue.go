package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"citaplan/internal/models"
)

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, appointment_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.AppointmentID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("create sync task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sync task insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now

	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM sync_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query,
		models.SyncStatusPending, models.SyncStatusRetry, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		var lastError sql.NullString
		var processedAt, nextRetryAt sql.NullTime
		err := rows.Scan(&t.ID, &t.TaskType, &t.AppointmentID, &t.Payload, &t.Status,
			&t.RetryCount, &lastError, &t.CreatedAt, &processedAt, &nextRetryAt)
		if err != nil {
			return nil, fmt.Errorf("scan sync task: %w", err)
		}
		if lastError.Valid {
			t.LastError = &lastError.String
		}
		if processedAt.Valid {
			t.ProcessedAt = &processedAt.Time
		}
		if nextRetryAt.Valid {
			t.NextRetryAt = &nextRetryAt.Time
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now().UTC()

	switch status {
	case models.SyncStatusCompleted:
		query = `UPDATE sync_queue SET status = ?, processed_at = ?, last_error = NULL WHERE id = ?`
		args = []any{status, now, id}
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, retry_count = retry_count + 1, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, now, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update sync task %d: %w", id, err)
	}
	return nil
}
