package models

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

const (
	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)
