package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"citaplan/internal/models"
)

// ListBookings returns the busy intervals of booked appointments for a
// staff member that intersect [from, to). Cancelled rows never count.
func (db *DB) ListBookings(ctx context.Context, staffID int64, from, to time.Time) ([]models.BusyInterval, error) {
	query := `SELECT start_at, end_at FROM appointments
              WHERE staff_id = ? AND status = ? AND start_at < ? AND end_at > ?
              ORDER BY start_at ASC`
	rows, err := db.QueryContext(ctx, query, staffID, models.StatusBooked,
		to.UTC().Format(time.RFC3339), from.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var busy []models.BusyInterval
	for rows.Next() {
		var startStr, endStr string
		if err := rows.Scan(&startStr, &endStr); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		interval, err := parseInterval(startStr, endStr)
		if err != nil {
			return nil, err
		}
		busy = append(busy, interval)
	}
	return busy, rows.Err()
}

// InsertAppointmentsAtomic writes the whole batch or nothing. The
// transaction takes SQLite's write lock at BEGIN (immediate tx lock in
// the DSN), so the overlap re-check below cannot race another
// committer: two batches fighting over one slot serialize, and the
// loser sees the winner's row and gets ErrSlotConflict.
func (db *DB) InsertAppointmentsAtomic(ctx context.Context, appts []models.Appointment) ([]models.Appointment, error) {
	if len(appts) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	checkQuery := `SELECT COUNT(*) FROM appointments
                   WHERE staff_id = ? AND status = ? AND start_at < ? AND end_at > ?`
	now := time.Now().UTC()
	out := make([]models.Appointment, 0, len(appts))

	for _, a := range appts {
		start := a.StartAt.UTC()
		end := a.EndAt.UTC()

		var overlapping int
		err = tx.QueryRowContext(ctx, checkQuery, a.StaffID, models.StatusBooked,
			end.Format(time.RFC3339), start.Format(time.RFC3339)).Scan(&overlapping)
		if err != nil {
			return nil, fmt.Errorf("re-check overlap: %w", err)
		}
		if overlapping > 0 {
			return nil, ErrSlotConflict
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO appointments (appointment_type_id, staff_id, user_id, start_at, end_at, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.AppointmentTypeID, a.StaffID, a.UserID,
			start.Format(time.RFC3339), end.Format(time.RFC3339),
			models.StatusBooked, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("insert appointment: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}

		created := a
		created.ID = id
		created.StartAt = start
		created.EndAt = end
		created.Status = models.StatusBooked
		created.CreatedAt = now
		created.UpdatedAt = now
		out = append(out, created)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit appointments: %w", err)
	}
	return out, nil
}

// CancelAppointment sets status=cancelled. Cancelling an already
// cancelled appointment is a no-op success; an unknown id is
// ErrNotFound. Other appointments are untouched.
func (db *DB) CancelAppointment(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel appointment: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAppointment fetches one appointment by id.
func (db *DB) GetAppointment(ctx context.Context, id int64) (*models.Appointment, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, appointment_type_id, staff_id, user_id, start_at, end_at, status, created_at, updated_at
         FROM appointments WHERE id = ?`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointmentsByUser returns a user's appointments, newest first.
func (db *DB) ListAppointmentsByUser(ctx context.Context, userID int64) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, appointment_type_id, staff_id, user_id, start_at, end_at, status, created_at, updated_at
         FROM appointments WHERE user_id = ? ORDER BY start_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user appointments: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user appointment: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

// ListAppointmentsByRange returns booked appointments with start_at in
// [from, to), ordered by staff then time. Used by schedule exports.
func (db *DB) ListAppointmentsByRange(ctx context.Context, from, to time.Time) ([]models.Appointment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, appointment_type_id, staff_id, user_id, start_at, end_at, status, created_at, updated_at
         FROM appointments
         WHERE status = ? AND start_at >= ? AND start_at < ?
         ORDER BY staff_id ASC, start_at ASC`,
		models.StatusBooked, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("list appointments by range: %w", err)
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *appt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(r rowScanner) (*models.Appointment, error) {
	var a models.Appointment
	var startStr, endStr string
	if err := r.Scan(&a.ID, &a.AppointmentTypeID, &a.StaffID, &a.UserID,
		&startStr, &endStr, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	interval, err := parseInterval(startStr, endStr)
	if err != nil {
		return nil, err
	}
	a.StartAt = interval.StartAt
	a.EndAt = interval.EndAt
	return &a, nil
}

func parseInterval(startStr, endStr string) (models.BusyInterval, error) {
	start, err := parseInstant(startStr)
	if err != nil {
		return models.BusyInterval{}, fmt.Errorf("parse start_at %q: %w", startStr, err)
	}
	end, err := parseInstant(endStr)
	if err != nil {
		return models.BusyInterval{}, fmt.Errorf("parse end_at %q: %w", endStr, err)
	}
	return models.BusyInterval{StartAt: start, EndAt: end}, nil
}

func parseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// go-sqlite3 may hand back its own datetime rendering.
		t, err = time.Parse("2006-01-02 15:04:05Z07:00", raw)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}
