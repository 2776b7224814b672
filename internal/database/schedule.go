package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"citaplan/internal/models"
)

func (db *DB) GetAppointmentType(ctx context.Context, id int64) (*models.AppointmentType, error) {
	var t models.AppointmentType
	err := db.QueryRowContext(ctx,
		`SELECT id, name, COALESCE(description, ''), sort_order, is_active
         FROM appointment_types WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &t.SortOrder, &t.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment type: %w", err)
	}
	return &t, nil
}

func (db *DB) ListAppointmentTypes(ctx context.Context) ([]models.AppointmentType, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, COALESCE(description, ''), sort_order, is_active
         FROM appointment_types WHERE is_active = 1 ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list appointment types: %w", err)
	}
	defer rows.Close()

	var out []models.AppointmentType
	for rows.Next() {
		var t models.AppointmentType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.SortOrder, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scan appointment type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	var s models.Staff
	err := db.QueryRowContext(ctx,
		`SELECT id, full_name, sort_order, is_active FROM staff WHERE id = ?`, id).
		Scan(&s.ID, &s.FullName, &s.SortOrder, &s.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	return &s, nil
}

func (db *DB) ListStaff(ctx context.Context) ([]models.Staff, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, full_name, sort_order, is_active
         FROM staff WHERE is_active = 1 ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []models.Staff
	for rows.Next() {
		var s models.Staff
		if err := rows.Scan(&s.ID, &s.FullName, &s.SortOrder, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan staff: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListWindows returns the recurring availability windows configured
// for one (appointment type, staff) pair.
func (db *DB) ListWindows(ctx context.Context, appointmentTypeID, staffID int64) ([]models.AvailabilityWindow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, staff_id, appointment_type_id, start_time, end_time
         FROM availability_windows
         WHERE appointment_type_id = ? AND staff_id = ?
         ORDER BY start_time ASC`, appointmentTypeID, staffID)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	defer rows.Close()

	var out []models.AvailabilityWindow
	for rows.Next() {
		var w models.AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.StaffID, &w.AppointmentTypeID, &w.StartTime, &w.EndTime); err != nil {
			return nil, fmt.Errorf("scan window: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (db *DB) GetTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	var t models.Tariff
	err := db.QueryRowContext(ctx,
		`SELECT id, appointment_type_id, name, duration_minutes, sessions, price_cents
         FROM tariffs WHERE id = ?`, id).
		Scan(&t.ID, &t.AppointmentTypeID, &t.Name, &t.DurationMinutes, &t.Sessions, &t.PriceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	return &t, nil
}

func (db *DB) ListTariffs(ctx context.Context, appointmentTypeID int64) ([]models.Tariff, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, appointment_type_id, name, duration_minutes, sessions, price_cents
         FROM tariffs WHERE appointment_type_id = ? ORDER BY duration_minutes ASC, id ASC`,
		appointmentTypeID)
	if err != nil {
		return nil, fmt.Errorf("list tariffs: %w", err)
	}
	defer rows.Close()

	var out []models.Tariff
	for rows.Next() {
		var t models.Tariff
		if err := rows.Scan(&t.ID, &t.AppointmentTypeID, &t.Name, &t.DurationMinutes, &t.Sessions, &t.PriceCents); err != nil {
			return nil, fmt.Errorf("scan tariff: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Seed upserts (replaces by id) schedule configuration. Owned by
// scheduling tooling; the engine only ever reads these tables.
func (db *DB) SeedAppointmentType(ctx context.Context, t *models.AppointmentType) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO appointment_types (id, name, description, sort_order, is_active)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description,
             sort_order=excluded.sort_order, is_active=excluded.is_active`,
		t.ID, t.Name, t.Description, t.SortOrder, t.IsActive)
	if err != nil {
		return fmt.Errorf("seed appointment type %d: %w", t.ID, err)
	}
	return nil
}

func (db *DB) SeedStaff(ctx context.Context, s *models.Staff) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO staff (id, full_name, sort_order, is_active)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET full_name=excluded.full_name,
             sort_order=excluded.sort_order, is_active=excluded.is_active`,
		s.ID, s.FullName, s.SortOrder, s.IsActive)
	if err != nil {
		return fmt.Errorf("seed staff %d: %w", s.ID, err)
	}
	return nil
}

func (db *DB) SeedWindow(ctx context.Context, w *models.AvailabilityWindow) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO availability_windows (id, staff_id, appointment_type_id, start_time, end_time)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET staff_id=excluded.staff_id,
             appointment_type_id=excluded.appointment_type_id,
             start_time=excluded.start_time, end_time=excluded.end_time`,
		w.ID, w.StaffID, w.AppointmentTypeID, w.StartTime, w.EndTime)
	if err != nil {
		return fmt.Errorf("seed window %d: %w", w.ID, err)
	}
	return nil
}

func (db *DB) SeedTariff(ctx context.Context, t *models.Tariff) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO tariffs (id, appointment_type_id, name, duration_minutes, sessions, price_cents)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET appointment_type_id=excluded.appointment_type_id,
             name=excluded.name, duration_minutes=excluded.duration_minutes,
             sessions=excluded.sessions, price_cents=excluded.price_cents`,
		t.ID, t.AppointmentTypeID, t.Name, t.DurationMinutes, t.Sessions, t.PriceCents)
	if err != nil {
		return fmt.Errorf("seed tariff %d: %w", t.ID, err)
	}
	return nil
}
