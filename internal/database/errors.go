package database

import "errors"

var (
	// ErrNotFound: the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSlotConflict: at least one requested slot overlaps a booked
	// appointment for the same staff member; the whole batch was
	// rejected and nothing was written.
	ErrSlotConflict = errors.New("slot already booked")
)
