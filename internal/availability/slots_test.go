package availability

import (
	"testing"
	"time"

	"citaplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(h, m int) time.Time {
	return time.Date(2026, 3, 10, h, m, 0, 0, time.UTC)
}

var testDate = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func TestTile_ExactFit(t *testing.T) {
	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "10:00"}

	slots, err := Tile(w, testDate, 20*time.Minute, time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	assert.Equal(t, utc(9, 0), slots[0].StartAt)
	assert.Equal(t, utc(9, 20), slots[0].EndAt)
	assert.Equal(t, utc(9, 20), slots[1].StartAt)
	assert.Equal(t, utc(9, 40), slots[1].EndAt)
	assert.Equal(t, utc(9, 40), slots[2].StartAt)
	assert.Equal(t, utc(10, 0), slots[2].EndAt)
}

func TestTile_DropsTrailingRemainder(t *testing.T) {
	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "10:00"}

	slots, err := Tile(w, testDate, 45*time.Minute, time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, utc(9, 45), slots[0].EndAt, "slot must not extend past window end")
}

func TestTile_WindowShorterThanDuration(t *testing.T) {
	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "09:30"}

	slots, err := Tile(w, testDate, 45*time.Minute, time.UTC)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestTile_Deterministic(t *testing.T) {
	w := models.AvailabilityWindow{ID: 7, StartTime: "10:15", EndTime: "13:00"}

	first, err := Tile(w, testDate, 30*time.Minute, time.UTC)
	require.NoError(t, err)
	second, err := Tile(w, testDate, 30*time.Minute, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTile_ServiceTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "10:00"}
	slots, err := Tile(w, testDate, time.Hour, loc)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	// CET in March (before the DST switch on 2026-03-29): UTC+1.
	assert.Equal(t, utc(8, 0), slots[0].StartAt)
}

func TestTile_InvalidInputs(t *testing.T) {
	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "10:00"}
	_, err := Tile(w, testDate, 0, time.UTC)
	assert.Error(t, err)

	bad := models.AvailabilityWindow{ID: 2, StartTime: "10:00", EndTime: "09:00"}
	_, err = Tile(bad, testDate, 15*time.Minute, time.UTC)
	assert.Error(t, err)

	unparsable := models.AvailabilityWindow{ID: 3, StartTime: "9h00", EndTime: "10:00"}
	_, err = Tile(unparsable, testDate, 15*time.Minute, time.UTC)
	assert.Error(t, err)
}

func TestAnnotate_MarksOnlyOverlapping(t *testing.T) {
	w := models.AvailabilityWindow{ID: 1, StartTime: "09:00", EndTime: "10:00"}
	slots, err := Tile(w, testDate, 20*time.Minute, time.UTC)
	require.NoError(t, err)

	busy := []models.BusyInterval{{StartAt: utc(9, 20), EndAt: utc(9, 40)}}
	annotated := Annotate(slots, busy)

	assert.False(t, annotated[0].Booked)
	assert.True(t, annotated[1].Booked)
	assert.False(t, annotated[2].Booked, "slot starting exactly at booking end must stay free")
}

func TestAnnotate_PartialOverlapConflicts(t *testing.T) {
	slots := []models.CandidateSlot{{StartAt: utc(9, 0), EndAt: utc(9, 30)}}
	busy := []models.BusyInterval{{StartAt: utc(9, 15), EndAt: utc(9, 45)}}

	annotated := Annotate(slots, busy)
	assert.True(t, annotated[0].Booked)
}

func TestAnnotate_DoesNotMutateInput(t *testing.T) {
	slots := []models.CandidateSlot{{StartAt: utc(9, 0), EndAt: utc(9, 30)}}
	busy := []models.BusyInterval{{StartAt: utc(9, 0), EndAt: utc(9, 30)}}

	_ = Annotate(slots, busy)
	assert.False(t, slots[0].Booked)
}

func TestAnnotate_NoBusy(t *testing.T) {
	slots := []models.CandidateSlot{{StartAt: utc(9, 0), EndAt: utc(9, 30)}}
	annotated := Annotate(slots, nil)
	assert.False(t, annotated[0].Booked)
}

func TestDedupe_RemovesDuplicatePairsAndSorts(t *testing.T) {
	slots := []models.CandidateSlot{
		{WindowID: 2, StartAt: utc(10, 0), EndAt: utc(10, 30)},
		{WindowID: 1, StartAt: utc(9, 0), EndAt: utc(9, 30)},
		{WindowID: 2, StartAt: utc(9, 0), EndAt: utc(9, 30)}, // same tile from an overlapping window
	}

	out := Dedupe(slots)
	require.Len(t, out, 2)
	assert.Equal(t, utc(9, 0), out[0].StartAt)
	assert.Equal(t, utc(10, 0), out[1].StartAt)
}

func TestOverlaps_HalfOpen(t *testing.T) {
	assert.True(t, Overlaps(utc(9, 0), utc(9, 30), utc(9, 15), utc(9, 45)))
	assert.False(t, Overlaps(utc(9, 0), utc(9, 30), utc(9, 30), utc(10, 0)), "abutting intervals do not overlap")
	assert.False(t, Overlaps(utc(9, 30), utc(10, 0), utc(9, 0), utc(9, 30)))
	assert.True(t, Overlaps(utc(9, 0), utc(10, 0), utc(9, 15), utc(9, 20)), "containment overlaps")
}
