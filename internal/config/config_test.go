package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"citaplan/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("FullConfig", func(t *testing.T) {
		path := writeConfig(t, `
app:
  name: citaplan
  environment: test
database:
  path: /tmp/citaplan-test.db
redis:
  address: localhost:6379
api:
  enabled: true
  http:
    port: 8099
  auth:
    api_keys:
      - key: test-key
        extra: test-extra
        name: tester
        permissions: ["read", "write"]
booking:
  timezone: Europe/Madrid
  max_advance_days: 30
  catalog_cache_ttl: 45s
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "citaplan", cfg.App.Name)
		assert.Equal(t, 8099, cfg.API.HTTP.Port)
		assert.Equal(t, "Europe/Madrid", cfg.Booking.Timezone)
		assert.Equal(t, 30, cfg.Booking.MaxAdvanceDays)
		assert.Equal(t, 45*time.Second, cfg.CatalogTTL())
		assert.Equal(t, "Europe/Madrid", cfg.Location().String())
		require.Len(t, cfg.API.Auth.APIKeys, 1)
		assert.Equal(t, "tester", cfg.API.Auth.APIKeys[0].Name)
	})

	t.Run("Defaults", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/citaplan-test.db
`)

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.API.HTTP.Port)
		assert.Equal(t, "UTC", cfg.Booking.Timezone)
		assert.Equal(t, 90, cfg.Booking.MaxAdvanceDays)
		assert.Equal(t, 30*time.Second, cfg.CatalogTTL())
		assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
		assert.Equal(t, "x-user-token", cfg.API.Auth.HeaderUserToken)
	})

	t.Run("EnvExpansion", func(t *testing.T) {
		t.Setenv("CITAPLAN_DB_PATH", "/tmp/env-expanded.db")
		path := writeConfig(t, `
database:
  path: ${CITAPLAN_DB_PATH}
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/env-expanded.db", cfg.Database.Path)
	})

	t.Run("MissingDatabasePath", func(t *testing.T) {
		path := writeConfig(t, `
app:
  name: citaplan
`)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("BadTimezone", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/citaplan-test.db
booking:
  timezone: Mars/Olympus
`)

		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("BadCacheTTL", func(t *testing.T) {
		path := writeConfig(t, `
database:
  path: /tmp/citaplan-test.db
booking:
  catalog_cache_ttl: soon
`)

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidateWindows(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		err := ValidateWindows([]models.AvailabilityWindow{
			{ID: 1, StartTime: "09:00", EndTime: "12:00"},
			{ID: 2, StartTime: "14:30", EndTime: "18:00"},
		})
		assert.NoError(t, err)
	})

	t.Run("BadClockValue", func(t *testing.T) {
		err := ValidateWindows([]models.AvailabilityWindow{
			{ID: 1, StartTime: "9am", EndTime: "12:00"},
		})
		assert.Error(t, err)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		err := ValidateWindows([]models.AvailabilityWindow{
			{ID: 1, StartTime: "12:00", EndTime: "09:00"},
		})
		assert.Error(t, err)
	})
}
