package domain

import (
	"context"
	"time"

	"citaplan/internal/models"
)

// Repository is the persistence collaborator. AvailabilityWindow,
// Tariff, AppointmentType and Staff rows are read-only to the engine;
// appointments are only ever created or cancelled through it.
type Repository interface {
	// Schedule configuration (read-only).
	GetAppointmentType(ctx context.Context, id int64) (*models.AppointmentType, error)
	ListAppointmentTypes(ctx context.Context) ([]models.AppointmentType, error)
	GetStaff(ctx context.Context, id int64) (*models.Staff, error)
	ListStaff(ctx context.Context) ([]models.Staff, error)
	ListWindows(ctx context.Context, appointmentTypeID, staffID int64) ([]models.AvailabilityWindow, error)
	GetTariff(ctx context.Context, id int64) (*models.Tariff, error)
	ListTariffs(ctx context.Context, appointmentTypeID int64) ([]models.Tariff, error)

	// Booking store.
	ListBookings(ctx context.Context, staffID int64, from, to time.Time) ([]models.BusyInterval, error)
	InsertAppointmentsAtomic(ctx context.Context, appts []models.Appointment) ([]models.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) error
	GetAppointment(ctx context.Context, id int64) (*models.Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID int64) ([]models.Appointment, error)
	ListAppointmentsByRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error)
}

// IdentitySource resolves the authenticated caller from request
// context. Implementations return service.ErrUnauthenticated-wrapped
// errors when no valid credentials are present.
type IdentitySource interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// CatalogCache holds built day catalogs for a short TTL. Reads are
// allowed to be slightly stale; the committer never consults it.
type CatalogCache interface {
	GetCatalog(ctx context.Context, key string) ([]models.CandidateSlot, bool, error)
	SetCatalog(ctx context.Context, key string, slots []models.CandidateSlot) error
	InvalidateStaffDay(ctx context.Context, staffID int64, date time.Time) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter mirrors the booked schedule into a staff-facing
// spreadsheet.
type SheetsWriter interface {
	UpsertAppointment(ctx context.Context, appt *models.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, appointmentID int64, status string) error
	UpdateScheduleSheet(ctx context.Context, startDate, endDate time.Time, daily map[string][]models.Appointment, staff []models.Staff) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, appointmentID int64, appt *models.Appointment, status string) error
	EnqueueSyncSchedule(ctx context.Context, startDate, endDate time.Time) error
}
