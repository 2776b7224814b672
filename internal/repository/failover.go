package repository

import (
	"context"
	"sync/atomic"
	"time"

	"citaplan/internal/domain"
	"citaplan/internal/models"

	"github.com/rs/zerolog"
)

// FailoverCatalogCache serves from redis while it is healthy and
// degrades to the in-memory cache on error. The primary is probed
// again a minute after the last failure. Catalog reads tolerate
// staleness, so losing cached entries on failover is acceptable.
type FailoverCatalogCache struct {
	primary   domain.CatalogCache
	fallback  domain.CatalogCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCatalogCache(primary, fallback domain.CatalogCache, logger *zerolog.Logger) *FailoverCatalogCache {
	return &FailoverCatalogCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverCatalogCache) markDown(err error) {
	r.logger.Error().Err(err).Msg("primary catalog cache failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverCatalogCache) shouldRetryPrimary() bool {
	return time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute
}

func (r *FailoverCatalogCache) GetCatalog(ctx context.Context, key string) ([]models.CandidateSlot, bool, error) {
	if !r.isDown.Load() {
		slots, ok, err := r.primary.GetCatalog(ctx, key)
		if err == nil {
			return slots, ok, nil
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		slots, ok, err := r.primary.GetCatalog(ctx, key)
		if err == nil {
			r.isDown.Store(false)
			return slots, ok, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.GetCatalog(ctx, key)
}

func (r *FailoverCatalogCache) SetCatalog(ctx context.Context, key string, slots []models.CandidateSlot) error {
	if !r.isDown.Load() {
		err := r.primary.SetCatalog(ctx, key, slots)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetCatalog(ctx, key, slots)
}

func (r *FailoverCatalogCache) InvalidateStaffDay(ctx context.Context, staffID int64, date time.Time) error {
	// Invalidate both sides; a stale entry surviving in the idle tier
	// would outlive a failover flip.
	var primaryErr error
	if !r.isDown.Load() {
		primaryErr = r.primary.InvalidateStaffDay(ctx, staffID, date)
		if primaryErr != nil {
			r.markDown(primaryErr)
		}
	}
	return r.fallback.InvalidateStaffDay(ctx, staffID, date)
}
