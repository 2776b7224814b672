package repository

import (
	"context"
	"sync"
	"time"

	"citaplan/internal/models"
)

// MemoryCatalogCache is the in-process fallback used when redis is
// absent or unhealthy. Entries expire lazily on read.
type MemoryCatalogCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	days    map[string][]string
	ttl     time.Duration
}

type memoryEntry struct {
	slots     []models.CandidateSlot
	expiresAt time.Time
}

func NewMemoryCatalogCache(ttl time.Duration) *MemoryCatalogCache {
	return &MemoryCatalogCache{
		entries: make(map[string]memoryEntry),
		days:    make(map[string][]string),
		ttl:     ttl,
	}
}

func (r *MemoryCatalogCache) GetCatalog(ctx context.Context, key string) ([]models.CandidateSlot, bool, error) {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		r.mu.Lock()
		delete(r.entries, key)
		r.mu.Unlock()
		return nil, false, nil
	}

	out := make([]models.CandidateSlot, len(entry.slots))
	copy(out, entry.slots)
	return out, true, nil
}

func (r *MemoryCatalogCache) SetCatalog(ctx context.Context, key string, slots []models.CandidateSlot) error {
	stored := make([]models.CandidateSlot, len(slots))
	copy(stored, slots)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = memoryEntry{slots: stored, expiresAt: time.Now().Add(r.ttl)}
	if staffID, date, ok := parseCatalogKey(key); ok {
		dayKey := staffDayKey(staffID, date)
		r.days[dayKey] = append(r.days[dayKey], key)
	}
	return nil
}

func (r *MemoryCatalogCache) InvalidateStaffDay(ctx context.Context, staffID int64, date time.Time) error {
	dayKey := staffDayKey(staffID, date)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.days[dayKey] {
		delete(r.entries, key)
	}
	delete(r.days, dayKey)
	return nil
}
