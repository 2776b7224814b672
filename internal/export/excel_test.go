package export

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"citaplan/internal/database"
	"citaplan/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestExportSchedule(t *testing.T) {
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "export.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SeedAppointmentType(ctx, &models.AppointmentType{ID: 1, Name: "Consultation", IsActive: true}))
	require.NoError(t, db.SeedStaff(ctx, &models.Staff{ID: 2, FullName: "Dr. Reyes", IsActive: true}))

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err = db.InsertAppointmentsAtomic(ctx, []models.Appointment{
		{AppointmentTypeID: 1, StaffID: 2, UserID: 7, StartAt: start, EndAt: start.Add(30 * time.Minute)},
	})
	require.NoError(t, err)

	exporter := NewExporter(db, filepath.Join(dir, "exports"), time.UTC, &logger)

	startDate := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	path, err := exporter.ExportSchedule(ctx, startDate, endDate)
	require.NoError(t, err)
	assert.Contains(t, path, "schedule_2026-03-09_to_2026-03-11.xlsx")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// Staff name in column A, row 3.
	name, err := f.GetCellValue(scheduleSheetName, "A3")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Reyes", name)

	// March 10 is the second date column.
	cell, err := f.GetCellValue(scheduleSheetName, "C3")
	require.NoError(t, err)
	assert.Contains(t, cell, "09:00-09:30")

	// March 9 has no bookings.
	free, err := f.GetCellValue(scheduleSheetName, "B3")
	require.NoError(t, err)
	assert.Equal(t, "free", free)
}

func TestExportScheduleRejectsBadRange(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "export.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	exporter := NewExporter(db, t.TempDir(), time.UTC, &logger)

	_, err = exporter.ExportSchedule(context.Background(),
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
