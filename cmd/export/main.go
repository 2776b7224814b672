package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"citaplan/internal/config"
	"citaplan/internal/database"
	"citaplan/internal/export"
	"citaplan/internal/logging"
	"citaplan/internal/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "configs/config.yaml", "path to config.yaml")
		fromStr    = flag.String("from", "", "start date (YYYY-MM-DD), defaults to today")
		days       = flag.Int("days", 14, "number of days to export")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	loc := cfg.Location()
	start := time.Now().In(loc)
	if *fromStr != "" {
		start, err = time.ParseInLocation(models.DateLayout, *fromStr, loc)
		if err != nil {
			return fmt.Errorf("parse -from: %w", err)
		}
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	if *days < 1 {
		return fmt.Errorf("-days must be at least 1")
	}
	end := start.AddDate(0, 0, *days-1)

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	exportPath := cfg.Exports.Path
	if exportPath == "" {
		exportPath = "./exports"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	exporter := export.NewExporter(db, exportPath, loc, logger)
	filePath, err := exporter.ExportSchedule(ctx, start, end)
	if err != nil {
		return fmt.Errorf("export schedule: %w", err)
	}

	fmt.Println(filePath)
	return nil
}
