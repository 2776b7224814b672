package service

import "errors"

// Engine error taxonomy. The API layer maps these to HTTP statuses;
// nothing below it should inspect message text.
var (
	// ErrInvalidArgument: malformed date, duration, ids or slot shape.
	// Caller bug, not retryable.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated: no valid caller credentials; re-authenticate
	// before retrying.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrQuotaExceeded: more slots requested than the tariff's session
	// count allows.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
