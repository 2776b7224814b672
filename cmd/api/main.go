package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"citaplan/internal/api"
	"citaplan/internal/config"
	"citaplan/internal/database"
	"citaplan/internal/domain"
	"citaplan/internal/events"
	"citaplan/internal/google"
	"citaplan/internal/logging"
	"citaplan/internal/metrics"
	"citaplan/internal/models"
	"citaplan/internal/repository"
	"citaplan/internal/service"
	"citaplan/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedSchedule(cfg, db, &logger); err != nil {
		return err
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sheetsService := initGoogleSheets(cfg, &logger)

	var syncWorker *worker.SyncWorker
	if sheetsService != nil {
		syncWorker = worker.NewSyncWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, &logger)
		go syncWorker.Start(ctx)
	}

	booking := buildBookingService(cfg, db, redisClient, syncWorker, &logger)
	httpServer := api.NewHTTPServer(cfg.API, booking, &logger)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

type scheduleConfig struct {
	AppointmentTypes []models.AppointmentType    `yaml:"appointment_types"`
	Staff            []models.Staff              `yaml:"staff"`
	Windows          []models.AvailabilityWindow `yaml:"windows"`
	Tariffs          []models.Tariff             `yaml:"tariffs"`
}

// seedSchedule upserts the availability catalog from YAML on boot so
// the schedule definition lives in version control next to the config.
func seedSchedule(cfg *config.Config, db *database.DB, logger *zerolog.Logger) error {
	schedulePath := os.Getenv("SCHEDULE_PATH")
	if schedulePath == "" {
		schedulePath = "configs/schedule.yaml"
	}

	data, err := os.ReadFile(schedulePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("schedule_path", schedulePath).Msg("no schedule file, skipping seed")
			return nil
		}
		return fmt.Errorf("read schedule: %w", err)
	}

	var sched scheduleConfig
	if err := yaml.Unmarshal(data, &sched); err != nil {
		return fmt.Errorf("parse schedule: %w", err)
	}
	if err := config.ValidateWindows(sched.Windows); err != nil {
		return fmt.Errorf("validate schedule: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range sched.AppointmentTypes {
		if err := db.SeedAppointmentType(ctx, &sched.AppointmentTypes[i]); err != nil {
			return fmt.Errorf("seed appointment type %d: %w", sched.AppointmentTypes[i].ID, err)
		}
	}
	for i := range sched.Staff {
		if err := db.SeedStaff(ctx, &sched.Staff[i]); err != nil {
			return fmt.Errorf("seed staff %d: %w", sched.Staff[i].ID, err)
		}
	}
	for i := range sched.Windows {
		if err := db.SeedWindow(ctx, &sched.Windows[i]); err != nil {
			return fmt.Errorf("seed window %d: %w", sched.Windows[i].ID, err)
		}
	}
	for i := range sched.Tariffs {
		if err := db.SeedTariff(ctx, &sched.Tariffs[i]); err != nil {
			return fmt.Errorf("seed tariff %d: %w", sched.Tariffs[i].ID, err)
		}
	}

	logger.Info().
		Int("types", len(sched.AppointmentTypes)).
		Int("staff", len(sched.Staff)).
		Int("windows", len(sched.Windows)).
		Int("tariffs", len(sched.Tariffs)).
		Msg("schedule seeded")
	return nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.ScheduleSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(
		cfg.Google.GoogleCredentialsFile,
		cfg.Google.ScheduleSpreadSheetID,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func buildBookingService(
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	syncWorker *worker.SyncWorker,
	logger *zerolog.Logger,
) *service.BookingService {
	ttl := cfg.CatalogTTL()

	var cache domain.CatalogCache = repository.NewMemoryCatalogCache(ttl)
	if redisClient != nil {
		cache = repository.NewFailoverCatalogCache(
			repository.NewRedisCatalogCache(redisClient, ttl),
			cache,
			logger,
		)
	}

	bus := events.NewEventBus()
	auditEvent := func(e *events.Event) error {
		logger.Info().Str("event", e.Type).RawJSON("payload", e.Payload).Msg("domain event")
		return nil
	}
	bus.Subscribe(events.EventAppointmentsBooked, auditEvent)
	bus.Subscribe(events.EventAppointmentCancelled, auditEvent)

	opts := service.Options{
		Cache:          cache,
		EventBus:       bus,
		Location:       cfg.Location(),
		MaxAdvanceDays: cfg.Booking.MaxAdvanceDays,
	}
	if syncWorker != nil {
		opts.SyncWorker = syncWorker
	}

	identity := service.NewTokenIdentity(db, logger)
	return service.NewBookingService(db, identity, opts, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
