package models

import "time"

type AppointmentType struct {
	ID          int64  `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	SortOrder   int64  `yaml:"sort_order" json:"sort_order"`
	IsActive    bool   `yaml:"is_active" json:"is_active"`
}

type Staff struct {
	ID        int64  `yaml:"id" json:"id"`
	FullName  string `yaml:"full_name" json:"full_name"`
	SortOrder int64  `yaml:"sort_order" json:"sort_order"`
	IsActive  bool   `yaml:"is_active" json:"is_active"`
}

// AvailabilityWindow is a recurring daily window during which a staff
// member accepts a given appointment type. StartTime/EndTime are
// "HH:MM" wall-clock values in the configured service time zone.
type AvailabilityWindow struct {
	ID                int64  `yaml:"id" json:"id"`
	StaffID           int64  `yaml:"staff_id" json:"staff_id"`
	AppointmentTypeID int64  `yaml:"appointment_type_id" json:"appointment_type_id"`
	StartTime         string `yaml:"start_time" json:"start_time"`
	EndTime           string `yaml:"end_time" json:"end_time"`
}

type Tariff struct {
	ID                int64  `yaml:"id" json:"id"`
	AppointmentTypeID int64  `yaml:"appointment_type_id" json:"appointment_type_id"`
	Name              string `yaml:"name" json:"name"`
	DurationMinutes   int    `yaml:"duration_minutes" json:"duration_minutes"`
	Sessions          int    `yaml:"sessions" json:"sessions"`
	PriceCents        int64  `yaml:"price_cents" json:"price_cents,omitempty"`
}

// CandidateSlot is a computed, never persisted slot of a day catalog.
type CandidateSlot struct {
	WindowID int64     `json:"window_id"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	Booked   bool      `json:"booked"`
}
