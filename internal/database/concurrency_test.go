package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"citaplan/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentCommitSameSlot(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SeedAppointmentType(ctx, &models.AppointmentType{ID: 1, Name: "Consultation", IsActive: true}))
	require.NoError(t, db.SeedStaff(ctx, &models.Staff{ID: 2, FullName: "Dr. Reyes", IsActive: true}))

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(userID int64) {
			defer wg.Done()
			_, cErr := db.InsertAppointmentsAtomic(ctx, []models.Appointment{
				{AppointmentTypeID: 1, StaffID: 2, UserID: userID, StartAt: start, EndAt: end},
			})
			results <- cErr
		}(int64(i + 1))
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrSlotConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected commit error: %v", err)
		}
	}

	// The slot can only be won once; every other committer must see
	// the winner's row during its in-transaction re-check.
	assert.Equal(t, 1, successCount, "exactly one commit should win the slot")
	assert.Equal(t, numGoroutines-1, conflictCount, "all other commits should conflict")

	busy, err := db.ListBookings(ctx, 2, start, end)
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, start, busy[0].StartAt)
	assert.Equal(t, end, busy[0].EndAt)
}
