package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventAppointmentsBooked   = "appointments_booked"
	EventAppointmentCancelled = "appointment_cancelled"
)

// BookedPayload describes one committed batch for event consumers.
type BookedPayload struct {
	AppointmentIDs    []int64   `json:"appointment_ids"`
	UserID            int64     `json:"user_id"`
	StaffID           int64     `json:"staff_id"`
	AppointmentTypeID int64     `json:"appointment_type_id"`
	TariffID          int64     `json:"tariff_id"`
	FirstStartAt      time.Time `json:"first_start_at"`
	LastEndAt         time.Time `json:"last_end_at"`
}

// CancelledPayload describes a single cancellation.
type CancelledPayload struct {
	AppointmentID int64     `json:"appointment_id"`
	StaffID       int64     `json:"staff_id"`
	UserID        int64     `json:"user_id"`
	StartAt       time.Time `json:"start_at"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
