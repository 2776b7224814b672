package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"citaplan/internal/database"
	"citaplan/internal/domain"
	"citaplan/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"
	TaskSyncSchedule = "sync_schedule"
)

// scheduleWindowDays is the span the schedule grid covers when the
// enqueue did not pin a range.
const scheduleWindowDays = 14

// syncTaskPayload is persisted in SyncTask.Payload as JSON.
type syncTaskPayload struct {
	AppointmentID int64               `json:"appointment_id,omitempty"`
	Appointment   *models.Appointment `json:"appointment,omitempty"`
	Status        string              `json:"status,omitempty"`
	StartDate     *time.Time          `json:"start_date,omitempty"`
	EndDate       *time.Time          `json:"end_date,omitempty"`
}

// SyncWorker drains the sync_queue and mirrors appointments into the
// spreadsheet. Tasks are persisted first; redis is the fast path, the
// in-memory channel the fallback, and the DB poll the safety net that
// picks up whatever both missed.
type SyncWorker struct {
	db            *database.DB
	sheets        domain.SheetsWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewSyncWorker(db *database.DB, sheets domain.SheetsWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *SyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}

	return &SyncWorker{
		db:            db,
		sheets:        sheets,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, 128),
		redisQueueKey: "sheets:queue",
		deadLetterKey: "sheets:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists the task and schedules it via redis or the
// in-memory queue.
func (w *SyncWorker) EnqueueTask(ctx context.Context, taskType string, appointmentID int64, appt *models.Appointment, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if appointmentID == 0 && (appt == nil || appt.ID == 0) {
		return errors.New("appointment id is required")
	}

	payload := syncTaskPayload{
		AppointmentID: appointmentID,
		Appointment:   appt,
		Status:        status,
	}
	if payload.AppointmentID == 0 && appt != nil {
		payload.AppointmentID = appt.ID
	}

	return w.enqueue(ctx, taskType, payload)
}

// EnqueueSyncSchedule schedules a full schedule-grid rewrite. Zero
// dates mean the default window starting today.
func (w *SyncWorker) EnqueueSyncSchedule(ctx context.Context, startDate, endDate time.Time) error {
	payload := syncTaskPayload{}
	if !startDate.IsZero() {
		payload.StartDate = &startDate
	}
	if !endDate.IsZero() {
		payload.EndDate = &endDate
	}
	return w.enqueue(ctx, TaskSyncSchedule, payload)
}

func (w *SyncWorker) enqueue(ctx context.Context, taskType string, payload syncTaskPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	syncTask := models.SyncTask{
		TaskType:      taskType,
		AppointmentID: payload.AppointmentID,
		Payload:       string(payloadBytes),
		Status:        models.SyncStatusPending,
	}

	if err := w.db.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, syncTask); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", syncTask.ID).Msg("redis push failed, fallback to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("in-memory queue full, task left for polling")
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending sync tasks")
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.SyncTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	var payload syncTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task completed")
	}
}

func (w *SyncWorker) handleTask(ctx context.Context, taskType string, payload syncTaskPayload) error {
	switch taskType {
	case TaskUpsert:
		if payload.Appointment == nil {
			return errors.New("appointment payload missing")
		}
		return w.sheets.UpsertAppointment(ctx, payload.Appointment)
	case TaskUpdateStatus:
		if payload.AppointmentID == 0 || payload.Status == "" {
			return errors.New("appointment id or status missing")
		}
		return w.sheets.UpdateAppointmentStatus(ctx, payload.AppointmentID, payload.Status)
	case TaskSyncSchedule:
		return w.syncSchedule(ctx, payload)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *SyncWorker) syncSchedule(ctx context.Context, payload syncTaskPayload) error {
	startDate := time.Now().UTC().Truncate(24 * time.Hour)
	if payload.StartDate != nil {
		startDate = payload.StartDate.UTC().Truncate(24 * time.Hour)
	}
	endDate := startDate.AddDate(0, 0, scheduleWindowDays-1)
	if payload.EndDate != nil {
		endDate = payload.EndDate.UTC().Truncate(24 * time.Hour)
	}
	if endDate.Before(startDate) {
		return fmt.Errorf("invalid schedule range %s..%s", startDate, endDate)
	}

	appts, err := w.db.ListAppointmentsByRange(ctx, startDate, endDate.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}

	daily := make(map[string][]models.Appointment)
	for _, a := range appts {
		key := a.StartAt.Format(models.DateLayout)
		daily[key] = append(daily[key], a)
	}

	staff, err := w.db.ListStaff(ctx)
	if err != nil {
		return fmt.Errorf("load staff: %w", err)
	}

	return w.sheets.UpdateScheduleSheet(ctx, startDate, endDate, daily, staff)
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task failed")
		}
		w.pushDeadLetter(ctx, task)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task for retry")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *SyncWorker) pushRedis(ctx context.Context, task models.SyncTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task *models.SyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
