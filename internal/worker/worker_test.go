package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"citaplan/internal/database"
	"citaplan/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := newTestWorker(db, sheets, RetryPolicy{})

	appt := &models.Appointment{
		ID:                1,
		AppointmentTypeID: 1,
		StaffID:           2,
		UserID:            7,
		StartAt:           time.Now().UTC(),
		EndAt:             time.Now().UTC().Add(30 * time.Minute),
		Status:            models.StatusBooked,
	}

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, appt.ID, appt, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusCompleted {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := newTestWorker(db, sheets, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})

	appt := &models.Appointment{ID: 2, StaffID: 2, UserID: 7, StartAt: time.Now().UTC(), EndAt: time.Now().UTC().Add(30 * time.Minute)}

	ctx := context.Background()
	if err := worker.EnqueueTask(ctx, TaskUpsert, appt.ID, appt, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusRetry {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := newTestWorker(db, sheets, RetryPolicy{MaxRetries: 1})

	appt := &models.Appointment{ID: 3, StaffID: 2, UserID: 7, StartAt: time.Now().UTC(), EndAt: time.Now().UTC().Add(30 * time.Minute)}

	ctx := context.Background()
	worker.EnqueueTask(ctx, TaskUpsert, appt.ID, appt, "")
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != models.SyncStatusFailed {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestEnqueueSyncSchedule(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := newTestWorker(db, sheets, RetryPolicy{MaxRetries: 3})

	ctx := context.Background()
	start := time.Now()
	end := start.AddDate(0, 0, 7)

	if err := worker.EnqueueSyncSchedule(ctx, start, end); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tasks, _ := db.GetPendingSyncTasks(ctx, 10)
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].TaskType != TaskSyncSchedule {
		t.Fatalf("expected TaskSyncSchedule, got %s", tasks[0].TaskType)
	}
}

func TestHandleTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := newTestWorker(db, sheets, RetryPolicy{MaxRetries: 3})

	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		appt := &models.Appointment{ID: 1, StaffID: 2}
		if err := worker.handleTask(ctx, TaskUpsert, syncTaskPayload{Appointment: appt}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleTask(ctx, TaskUpdateStatus, syncTaskPayload{AppointmentID: 123, Status: models.StatusCancelled})
		if err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("SyncSchedule", func(t *testing.T) {
		if err := worker.handleTask(ctx, TaskSyncSchedule, syncTaskPayload{}); err != nil {
			t.Fatalf("handle: %v", err)
		}
		if sheets.scheduleCalls != 1 {
			t.Fatalf("expected 1 schedule call, got %d", sheets.scheduleCalls)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if err := worker.handleTask(ctx, "nonsense", syncTaskPayload{}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestEnqueueTaskValidation(t *testing.T) {
	db := newTestDB(t)
	worker := newTestWorker(db, &fakeSheets{}, RetryPolicy{})

	ctx := context.Background()
	appt := &models.Appointment{ID: 1}

	t.Run("ValidTask", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, 1, appt, ""); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, "", 1, appt, ""); err == nil {
			t.Fatalf("expected error for empty task type")
		}
	})

	t.Run("InvalidAppointmentID", func(t *testing.T) {
		if err := worker.EnqueueTask(ctx, TaskUpsert, 0, nil, ""); err == nil {
			t.Fatalf("expected error for missing appointment id")
		}
	})
}

// Helpers

type fakeSheets struct {
	err           error
	upsertCalls   int
	statusCalls   int
	scheduleCalls int
}

func (f *fakeSheets) UpsertAppointment(ctx context.Context, appt *models.Appointment) error {
	f.upsertCalls++
	return f.err
}

func (f *fakeSheets) UpdateAppointmentStatus(ctx context.Context, appointmentID int64, status string) error {
	f.statusCalls++
	return f.err
}

func (f *fakeSheets) UpdateScheduleSheet(ctx context.Context, startDate, endDate time.Time, daily map[string][]models.Appointment, staff []models.Staff) error {
	f.scheduleCalls++
	return f.err
}

func newTestWorker(db *database.DB, sheets *fakeSheets, retry RetryPolicy) *SyncWorker {
	logger := zerolog.New(io.Discard)
	return NewSyncWorker(db, sheets, nil, retry, &logger)
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
