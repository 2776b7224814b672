package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"citaplan/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled         bool           `yaml:"enabled"`
	HeaderAPIKey    string         `yaml:"header_api_key"`
	HeaderExtra     string         `yaml:"header_extra"`
	HeaderUserToken string         `yaml:"header_user_token"`
	APIKeys         []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// BookingConfig pins the engine's time policy. Timezone is the single
// IANA zone in which availability window wall-clock values are
// interpreted; all stored instants are UTC.
type BookingConfig struct {
	Timezone        string `yaml:"timezone"`
	MaxAdvanceDays  int    `yaml:"max_advance_days"`
	CatalogCacheTTL string `yaml:"catalog_cache_ttl"`

	catalogCacheTTL time.Duration
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	ScheduleSpreadSheetID string `yaml:"schedule_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; only surface real read failures.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("booking.timezone %q: %w", c.Booking.Timezone, err)
	}

	if c.Booking.CatalogCacheTTL != "" {
		ttl, err := time.ParseDuration(c.Booking.CatalogCacheTTL)
		if err != nil {
			return fmt.Errorf("booking.catalog_cache_ttl %q: %w", c.Booking.CatalogCacheTTL, err)
		}
		c.Booking.catalogCacheTTL = ttl
	}

	return nil
}

// Location returns the service time zone. Validate must have accepted
// the config first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CatalogTTL returns the parsed catalog cache TTL.
func (c *Config) CatalogTTL() time.Duration {
	if c.Booking.catalogCacheTTL > 0 {
		return c.Booking.catalogCacheTTL
	}
	return 30 * time.Second
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.Auth.HeaderUserToken == "" {
		c.API.Auth.HeaderUserToken = "x-user-token"
	}

	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "UTC"
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 90
	}
}

// ValidateWindows rejects schedule seeds the engine cannot serve.
func ValidateWindows(windows []models.AvailabilityWindow) error {
	for _, w := range windows {
		start, err := time.Parse(models.ClockLayout, w.StartTime)
		if err != nil {
			return fmt.Errorf("window %d: invalid start_time %q", w.ID, w.StartTime)
		}
		end, err := time.Parse(models.ClockLayout, w.EndTime)
		if err != nil {
			return fmt.Errorf("window %d: invalid end_time %q", w.ID, w.EndTime)
		}
		if !end.After(start) {
			return fmt.Errorf("window %d: end_time %q must be after start_time %q", w.ID, w.EndTime, w.StartTime)
		}
	}
	return nil
}
