package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"citaplan/internal/config"
	"citaplan/internal/database"
	"citaplan/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// SeedFile is the on-disk shape of a full schedule definition plus
// optional bootstrap users.
type SeedFile struct {
	AppointmentTypes []models.AppointmentType    `yaml:"appointment_types"`
	Staff            []models.Staff              `yaml:"staff"`
	Windows          []models.AvailabilityWindow `yaml:"windows"`
	Tariffs          []models.Tariff             `yaml:"tariffs"`
	Users            []seedUser                  `yaml:"users"`
}

type seedUser struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	APIToken string `yaml:"api_token"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath = flag.String("seed", "configs/schedule.yaml", "path to seed yaml")
		dbPath   = flag.String("db", "./data/citaplan.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if len(seed.AppointmentTypes) == 0 && len(seed.Users) == 0 {
		return fmt.Errorf("nothing to seed in %s", *seedPath)
	}
	if err = config.ValidateWindows(seed.Windows); err != nil {
		return fmt.Errorf("validate windows: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := range seed.AppointmentTypes {
		if err = db.SeedAppointmentType(ctx, &seed.AppointmentTypes[i]); err != nil {
			return fmt.Errorf("seed appointment type %d: %w", seed.AppointmentTypes[i].ID, err)
		}
	}
	for i := range seed.Staff {
		if err = db.SeedStaff(ctx, &seed.Staff[i]); err != nil {
			return fmt.Errorf("seed staff %d: %w", seed.Staff[i].ID, err)
		}
	}
	for i := range seed.Windows {
		if err = db.SeedWindow(ctx, &seed.Windows[i]); err != nil {
			return fmt.Errorf("seed window %d: %w", seed.Windows[i].ID, err)
		}
	}
	for i := range seed.Tariffs {
		if err = db.SeedTariff(ctx, &seed.Tariffs[i]); err != nil {
			return fmt.Errorf("seed tariff %d: %w", seed.Tariffs[i].ID, err)
		}
	}

	for _, u := range seed.Users {
		token := u.APIToken
		if token == "" {
			token = uuid.NewString()
		}
		user := &models.User{Email: u.Email, FullName: u.FullName, APIToken: token}
		if err = db.CreateOrUpdateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		logger.Info().Str("email", u.Email).Str("api_token", token).Msg("user seeded")
	}

	logger.Info().
		Int("types", len(seed.AppointmentTypes)).
		Int("staff", len(seed.Staff)).
		Int("windows", len(seed.Windows)).
		Int("tariffs", len(seed.Tariffs)).
		Int("users", len(seed.Users)).
		Msg("seed complete")
	return nil
}
