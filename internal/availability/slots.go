package availability

import (
	"fmt"
	"sort"
	"time"

	"citaplan/internal/models"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Two intervals that merely abut do not.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// WindowBounds resolves a window's "HH:MM" wall-clock bounds on the
// given calendar date in loc and returns them as UTC instants.
func WindowBounds(w models.AvailabilityWindow, date time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start, err := clockOn(w.StartTime, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window %d start_time: %w", w.ID, err)
	}
	end, err := clockOn(w.EndTime, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("window %d end_time: %w", w.ID, err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("window %d: end_time %q not after start_time %q", w.ID, w.EndTime, w.StartTime)
	}
	return start, end, nil
}

func clockOn(clock string, date time.Time, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(models.ClockLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", clock, err)
	}
	local := time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
	return local.UTC(), nil
}

// Tile expands one availability window on a calendar date into
// duration-sized candidate slots. Slots are anchored at the window
// start and advance by exactly one duration; a trailing remainder
// shorter than the duration is not offered. The result is
// chronological and empty when the window is shorter than duration.
func Tile(w models.AvailabilityWindow, date time.Time, duration time.Duration, loc *time.Location) ([]models.CandidateSlot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", duration)
	}

	start, end, err := WindowBounds(w, date, loc)
	if err != nil {
		return nil, err
	}

	var slots []models.CandidateSlot
	for cursor := start; !cursor.Add(duration).After(end); cursor = cursor.Add(duration) {
		slots = append(slots, models.CandidateSlot{
			WindowID: w.ID,
			StartAt:  cursor,
			EndAt:    cursor.Add(duration),
		})
	}
	return slots, nil
}

// Annotate returns a copy of slots with Booked set on every slot that
// overlaps at least one busy interval. The input slice is left as is.
func Annotate(slots []models.CandidateSlot, busy []models.BusyInterval) []models.CandidateSlot {
	out := make([]models.CandidateSlot, len(slots))
	copy(out, slots)
	for i := range out {
		for _, b := range busy {
			if Overlaps(out[i].StartAt, out[i].EndAt, b.StartAt, b.EndAt) {
				out[i].Booked = true
				break
			}
		}
	}
	return out
}

// Dedupe drops slots with a (StartAt, EndAt) pair already seen and
// sorts the survivors by start time. Overlapping configured windows
// can tile the same instant twice; the catalog must not.
func Dedupe(slots []models.CandidateSlot) []models.CandidateSlot {
	type key struct{ start, end int64 }
	seen := make(map[key]struct{}, len(slots))
	out := make([]models.CandidateSlot, 0, len(slots))
	for _, s := range slots {
		k := key{s.StartAt.UnixNano(), s.EndAt.UnixNano()}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out
}
