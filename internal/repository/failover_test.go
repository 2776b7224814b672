package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"citaplan/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCatalog(ctx context.Context, key string) ([]models.CandidateSlot, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.CandidateSlot), args.Bool(1), args.Error(2)
}

func (m *mockCache) SetCatalog(ctx context.Context, key string, slots []models.CandidateSlot) error {
	return m.Called(ctx, key, slots).Error(0)
}

func (m *mockCache) InvalidateStaffDay(ctx context.Context, staffID int64, date time.Time) error {
	return m.Called(ctx, staffID, date).Error(0)
}

func TestFailoverCatalogCache(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	key := CatalogKey(1, 2, date, 30)

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverCatalogCache(primary, fallback, &logger)

		slots := sampleSlots()
		primary.On("GetCatalog", ctx, key).Return(slots, true, nil).Once()

		got, ok, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "GetCatalog", mock.Anything, mock.Anything)
	})

	t.Run("PrimaryFailureFlipsToFallback", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverCatalogCache(primary, fallback, &logger)

		primary.On("GetCatalog", ctx, key).Return(nil, false, errors.New("connection refused")).Once()
		fallback.On("GetCatalog", ctx, key).Return(nil, false, nil).Twice()

		_, _, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.True(t, cache.isDown.Load())

		// While down, the primary is not consulted.
		_, _, err = cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAfterRetryWindow", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverCatalogCache(primary, fallback, &logger)

		cache.isDown.Store(true)
		cache.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		slots := sampleSlots()
		primary.On("GetCatalog", ctx, key).Return(slots, true, nil).Once()

		got, ok, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)
		assert.False(t, cache.isDown.Load())
	})

	t.Run("SetFallsBackOnError", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverCatalogCache(primary, fallback, &logger)

		slots := sampleSlots()
		primary.On("SetCatalog", ctx, key, slots).Return(errors.New("down")).Once()
		fallback.On("SetCatalog", ctx, key, slots).Return(nil).Once()

		assert.NoError(t, cache.SetCatalog(ctx, key, slots))
		fallback.AssertExpectations(t)
	})

	t.Run("InvalidateHitsBothTiers", func(t *testing.T) {
		primary := new(mockCache)
		fallback := new(mockCache)
		cache := NewFailoverCatalogCache(primary, fallback, &logger)

		primary.On("InvalidateStaffDay", ctx, int64(2), date).Return(nil).Once()
		fallback.On("InvalidateStaffDay", ctx, int64(2), date).Return(nil).Once()

		assert.NoError(t, cache.InvalidateStaffDay(ctx, 2, date))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}

func TestMemoryCatalogCache(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("SetGetInvalidate", func(t *testing.T) {
		cache := NewMemoryCatalogCache(time.Minute)
		key := CatalogKey(1, 2, date, 30)

		_, ok, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.False(t, ok)

		slots := sampleSlots()
		assert.NoError(t, cache.SetCatalog(ctx, key, slots))

		got, ok, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, slots, got)

		assert.NoError(t, cache.InvalidateStaffDay(ctx, 2, date))
		_, ok, _ = cache.GetCatalog(ctx, key)
		assert.False(t, ok)
	})

	t.Run("ExpiredEntryIsAMiss", func(t *testing.T) {
		cache := NewMemoryCatalogCache(-time.Second)
		key := CatalogKey(1, 2, date, 30)

		assert.NoError(t, cache.SetCatalog(ctx, key, sampleSlots()))
		_, ok, err := cache.GetCatalog(ctx, key)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		cache := NewMemoryCatalogCache(time.Minute)
		key := CatalogKey(1, 2, date, 30)

		slots := sampleSlots()
		assert.NoError(t, cache.SetCatalog(ctx, key, slots))

		got, _, _ := cache.GetCatalog(ctx, key)
		got[0].Booked = true

		again, _, _ := cache.GetCatalog(ctx, key)
		assert.False(t, again[0].Booked)
	})
}
