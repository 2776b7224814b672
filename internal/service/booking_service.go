package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"citaplan/internal/availability"
	"citaplan/internal/database"
	"citaplan/internal/domain"
	"citaplan/internal/events"
	"citaplan/internal/metrics"
	"citaplan/internal/models"
	"citaplan/internal/repository"

	"github.com/rs/zerolog"
)

// BookingService owns the slot catalog and the commit path. Catalog
// reads are snapshot-consistent only; the storage transaction inside
// InsertAppointmentsAtomic is what actually keeps staff calendars
// overlap-free.
type BookingService struct {
	repo           domain.Repository
	identity       domain.IdentitySource
	cache          domain.CatalogCache
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	location       *time.Location
	maxAdvanceDays int
	logger         *zerolog.Logger
}

type Options struct {
	Cache          domain.CatalogCache
	EventBus       domain.EventPublisher
	SyncWorker     domain.SyncWorker
	Location       *time.Location
	MaxAdvanceDays int
}

func NewBookingService(repo domain.Repository, identity domain.IdentitySource, opts Options, logger *zerolog.Logger) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = 90
	}
	return &BookingService{
		repo:           repo,
		identity:       identity,
		cache:          opts.Cache,
		eventBus:       opts.EventBus,
		syncWorker:     opts.SyncWorker,
		location:       opts.Location,
		maxAdvanceDays: opts.MaxAdvanceDays,
		logger:         logger,
	}
}

// BuildCatalog computes the bookable slot list for one (appointment
// type, staff, date, duration) request: tile every configured window,
// mark tiles that overlap an existing booking, drop duplicate tiles
// from overlapping windows, sort by start. The result reflects booking
// state at read time only.
func (s *BookingService) BuildCatalog(ctx context.Context, appointmentTypeID, staffID int64, dateStr string, durationMinutes int) ([]models.CandidateSlot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration_minutes must be positive", ErrInvalidArgument)
	}
	date, err := time.ParseInLocation(models.DateLayout, dateStr, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q, expected YYYY-MM-DD", ErrInvalidArgument, dateStr)
	}
	horizon := time.Now().In(s.location).AddDate(0, 0, s.maxAdvanceDays)
	if date.After(horizon) {
		return nil, fmt.Errorf("%w: date %s is more than %d days ahead", ErrInvalidArgument, dateStr, s.maxAdvanceDays)
	}

	if _, err := s.repo.GetAppointmentType(ctx, appointmentTypeID); err != nil {
		return nil, fmt.Errorf("appointment type %d: %w", appointmentTypeID, err)
	}
	if _, err := s.repo.GetStaff(ctx, staffID); err != nil {
		return nil, fmt.Errorf("staff %d: %w", staffID, err)
	}

	cacheKey := repository.CatalogKey(appointmentTypeID, staffID, date, durationMinutes)
	if s.cache != nil {
		if slots, ok, err := s.cache.GetCatalog(ctx, cacheKey); err == nil && ok {
			return slots, nil
		}
	}

	slots, err := s.computeCatalog(ctx, appointmentTypeID, staffID, date, durationMinutes)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCatalog(ctx, cacheKey, slots); err != nil {
			s.logger.Warn().Err(err).Str("key", cacheKey).Msg("catalog cache write failed")
		}
	}
	return slots, nil
}

// BuildCatalogForTariff resolves the slot duration from the tariff and
// builds the catalog with it.
func (s *BookingService) BuildCatalogForTariff(ctx context.Context, appointmentTypeID, staffID int64, dateStr string, tariffID int64) ([]models.CandidateSlot, error) {
	tariff, err := s.repo.GetTariff(ctx, tariffID)
	if err != nil {
		return nil, fmt.Errorf("tariff %d: %w", tariffID, err)
	}
	if tariff.AppointmentTypeID != appointmentTypeID {
		return nil, fmt.Errorf("%w: tariff %d does not belong to appointment type %d",
			ErrInvalidArgument, tariffID, appointmentTypeID)
	}
	return s.BuildCatalog(ctx, appointmentTypeID, staffID, dateStr, tariff.DurationMinutes)
}

func (s *BookingService) computeCatalog(ctx context.Context, appointmentTypeID, staffID int64, date time.Time, durationMinutes int) ([]models.CandidateSlot, error) {
	metrics.IncCatalogBuilds()

	windows, err := s.repo.ListWindows(ctx, appointmentTypeID, staffID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	duration := time.Duration(durationMinutes) * time.Minute
	var candidates []models.CandidateSlot
	for _, w := range windows {
		tiles, err := availability.Tile(w, date, duration, s.location)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		candidates = append(candidates, tiles...)
	}
	if len(candidates) == 0 {
		return []models.CandidateSlot{}, nil
	}

	// One conservative busy fetch covering every tile of the day.
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.location).UTC()
	dayEnd := dayStart.Add(48 * time.Hour)
	busy, err := s.repo.ListBookings(ctx, staffID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	return availability.Dedupe(availability.Annotate(candidates, busy)), nil
}

// CommitInput is one all-or-nothing booking request.
type CommitInput struct {
	AppointmentTypeID int64
	StaffID           int64
	TariffID          int64
	Slots             []models.SlotRequest
}

// Commit validates the batch against the tariff and writes it
// atomically. If any requested slot has been taken since the catalog
// was read, the whole batch fails with database.ErrSlotConflict and no
// appointment is created; the right response is to rebuild the catalog
// and let the user pick again.
func (s *BookingService) Commit(ctx context.Context, in CommitInput) ([]models.Appointment, error) {
	if len(in.Slots) == 0 {
		return nil, fmt.Errorf("%w: at least one slot is required", ErrInvalidArgument)
	}

	tariff, err := s.repo.GetTariff(ctx, in.TariffID)
	if err != nil {
		return nil, fmt.Errorf("tariff %d: %w", in.TariffID, err)
	}

	if len(in.Slots) > tariff.Sessions {
		return nil, fmt.Errorf("%w: tariff allows %d sessions, got %d slots",
			ErrQuotaExceeded, tariff.Sessions, len(in.Slots))
	}
	if tariff.AppointmentTypeID != in.AppointmentTypeID {
		return nil, fmt.Errorf("%w: tariff %d does not belong to appointment type %d",
			ErrInvalidArgument, in.TariffID, in.AppointmentTypeID)
	}
	if _, err := s.repo.GetStaff(ctx, in.StaffID); err != nil {
		return nil, fmt.Errorf("staff %d: %w", in.StaffID, err)
	}

	duration := time.Duration(tariff.DurationMinutes) * time.Minute
	for i, slot := range in.Slots {
		if !slot.EndAt.After(slot.StartAt) {
			return nil, fmt.Errorf("%w: slot %d end_at must be after start_at", ErrInvalidArgument, i)
		}
		if slot.EndAt.Sub(slot.StartAt) != duration {
			return nil, fmt.Errorf("%w: slot %d length %s does not match tariff duration %s",
				ErrInvalidArgument, i, slot.EndAt.Sub(slot.StartAt), duration)
		}
		for _, other := range in.Slots[:i] {
			if availability.Overlaps(slot.StartAt, slot.EndAt, other.StartAt, other.EndAt) {
				return nil, fmt.Errorf("%w: requested slots overlap each other", ErrInvalidArgument)
			}
		}
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	appts := make([]models.Appointment, 0, len(in.Slots))
	for _, slot := range in.Slots {
		appts = append(appts, models.Appointment{
			AppointmentTypeID: in.AppointmentTypeID,
			StaffID:           in.StaffID,
			UserID:            user.ID,
			StartAt:           slot.StartAt.UTC(),
			EndAt:             slot.EndAt.UTC(),
		})
	}

	created, err := s.repo.InsertAppointmentsAtomic(ctx, appts)
	if err != nil {
		if errors.Is(err, database.ErrSlotConflict) {
			metrics.IncSlotConflicts()
			s.logger.Info().
				Int64("staff_id", in.StaffID).
				Int64("user_id", user.ID).
				Int("slots", len(in.Slots)).
				Msg("commit lost slot race")
		}
		return nil, err
	}

	metrics.AddAppointmentsCommitted(len(created))
	s.invalidateCatalogs(ctx, in.StaffID, created)
	s.publishBooked(in, user.ID, created)
	s.enqueueSync(ctx, created)

	return created, nil
}

// Cancel sets one appointment to cancelled. Idempotent: a second
// cancel of the same id succeeds without touching anything else.
func (s *BookingService) Cancel(ctx context.Context, appointmentID int64) error {
	if appointmentID <= 0 {
		return fmt.Errorf("%w: appointment id is required", ErrInvalidArgument)
	}

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return err
	}

	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return fmt.Errorf("appointment %d: %w", appointmentID, err)
	}
	if appt.UserID != user.ID {
		return fmt.Errorf("appointment %d: %w", appointmentID, database.ErrNotFound)
	}
	if appt.Status == models.StatusCancelled {
		return nil
	}

	if err := s.repo.CancelAppointment(ctx, appointmentID); err != nil {
		return err
	}

	s.invalidateCatalogs(ctx, appt.StaffID, []models.Appointment{*appt})

	if s.eventBus != nil {
		payload := events.CancelledPayload{
			AppointmentID: appt.ID,
			StaffID:       appt.StaffID,
			UserID:        appt.UserID,
			StartAt:       appt.StartAt,
		}
		if err := s.eventBus.PublishJSON(events.EventAppointmentCancelled, payload); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", appt.ID).Msg("publish cancel event")
		}
	}
	if s.syncWorker != nil {
		if err := s.syncWorker.EnqueueTask(ctx, "update_status", appt.ID, nil, models.StatusCancelled); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", appt.ID).Msg("sync enqueue")
		}
	}

	return nil
}

// ListMine returns the caller's appointments, newest first.
func (s *BookingService) ListMine(ctx context.Context) ([]models.Appointment, error) {
	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentsByUser(ctx, user.ID)
}

func (s *BookingService) ListAppointmentTypes(ctx context.Context) ([]models.AppointmentType, error) {
	return s.repo.ListAppointmentTypes(ctx)
}

func (s *BookingService) ListTariffs(ctx context.Context, appointmentTypeID int64) ([]models.Tariff, error) {
	if _, err := s.repo.GetAppointmentType(ctx, appointmentTypeID); err != nil {
		return nil, fmt.Errorf("appointment type %d: %w", appointmentTypeID, err)
	}
	return s.repo.ListTariffs(ctx, appointmentTypeID)
}

func (s *BookingService) invalidateCatalogs(ctx context.Context, staffID int64, appts []models.Appointment) {
	if s.cache == nil {
		return
	}
	days := make(map[string]time.Time)
	for _, a := range appts {
		local := a.StartAt.In(s.location)
		day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.location)
		days[day.Format(models.DateLayout)] = day
	}
	for _, day := range days {
		if err := s.cache.InvalidateStaffDay(ctx, staffID, day); err != nil {
			s.logger.Warn().Err(err).Int64("staff_id", staffID).Msg("catalog invalidation failed")
		}
	}
}

func (s *BookingService) publishBooked(in CommitInput, userID int64, created []models.Appointment) {
	if s.eventBus == nil || len(created) == 0 {
		return
	}
	payload := events.BookedPayload{
		UserID:            userID,
		StaffID:           in.StaffID,
		AppointmentTypeID: in.AppointmentTypeID,
		TariffID:          in.TariffID,
		FirstStartAt:      created[0].StartAt,
		LastEndAt:         created[len(created)-1].EndAt,
	}
	for _, a := range created {
		payload.AppointmentIDs = append(payload.AppointmentIDs, a.ID)
	}
	if err := s.eventBus.PublishJSON(events.EventAppointmentsBooked, payload); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("publish booked event")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, created []models.Appointment) {
	if s.syncWorker == nil {
		return
	}
	for i := range created {
		if err := s.syncWorker.EnqueueTask(ctx, "upsert", created[i].ID, &created[i], ""); err != nil {
			s.logger.Error().Err(err).Int64("appointment_id", created[i].ID).Msg("sync enqueue")
		}
	}
	if err := s.syncWorker.EnqueueSyncSchedule(ctx, time.Time{}, time.Time{}); err != nil {
		s.logger.Error().Err(err).Msg("schedule sync enqueue")
	}
}
