package models

import "time"

type Appointment struct {
	ID                int64     `json:"id"`
	AppointmentTypeID int64     `json:"appointment_type_id"`
	StaffID           int64     `json:"staff_id"`
	UserID            int64     `json:"user_id"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	Status            string    `json:"status"` // booked, cancelled
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SlotRequest is one (start, end) pair picked by a client from a
// previously fetched catalog. Instants are UTC.
type SlotRequest struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

// BusyInterval is the minimal shape of an existing booking the
// conflict filter needs.
type BusyInterval struct {
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}
