package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"citaplan/internal/config"
	"citaplan/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCatalogCache keeps built day catalogs in redis under a short
// TTL. Key shape: catalog:{type}:{staff}:{date}:{durationMinutes};
// a per-staff-day set tracks keys so commits can invalidate them.
type RedisCatalogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisCatalogCache(client *redis.Client, ttl time.Duration) *RedisCatalogCache {
	return &RedisCatalogCache{
		client: client,
		ttl:    ttl,
	}
}

// CatalogKey builds the cache key for one catalog request.
func CatalogKey(appointmentTypeID, staffID int64, date time.Time, durationMinutes int) string {
	return fmt.Sprintf("catalog:%d:%d:%s:%d",
		appointmentTypeID, staffID, date.Format(models.DateLayout), durationMinutes)
}

func staffDayKey(staffID int64, date time.Time) string {
	return fmt.Sprintf("catalog_keys:%d:%s", staffID, date.Format(models.DateLayout))
}

func (r *RedisCatalogCache) GetCatalog(ctx context.Context, key string) ([]models.CandidateSlot, bool, error) {
	if r.client == nil {
		return nil, false, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get catalog from redis: %w", err)
	}

	var slots []models.CandidateSlot
	if err := json.Unmarshal([]byte(val), &slots); err != nil {
		return nil, false, fmt.Errorf("unmarshal catalog: %w", err)
	}
	return slots, true, nil
}

func (r *RedisCatalogCache) SetCatalog(ctx context.Context, key string, slots []models.CandidateSlot) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}

	staffID, date, ok := parseCatalogKey(key)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, r.ttl)
	if ok {
		dayKey := staffDayKey(staffID, date)
		pipe.SAdd(ctx, dayKey, key)
		pipe.Expire(ctx, dayKey, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set catalog in redis: %w", err)
	}
	return nil
}

func (r *RedisCatalogCache) InvalidateStaffDay(ctx context.Context, staffID int64, date time.Time) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	dayKey := staffDayKey(staffID, date)
	keys, err := r.client.SMembers(ctx, dayKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list staff day keys: %w", err)
	}
	keys = append(keys, dayKey)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate staff day: %w", err)
	}
	return nil
}

func parseCatalogKey(key string) (staffID int64, date time.Time, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 5 || parts[0] != "catalog" {
		return 0, time.Time{}, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	d, err := time.Parse(models.DateLayout, parts[3])
	if err != nil {
		return 0, time.Time{}, false
	}
	return id, d, true
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
