package repository

import (
	"context"
	"fmt"
	"time"

	"claim-service/internal/models"

	"github.com/jmoiron/sqlx"
)

type WeatherRepository struct {
	db *sqlx.DB
}

func NewWeatherRepository(db *sqlx.DB) *WeatherRepository {
	return &WeatherRepository{db: db}
}

// ListReadings returns daily readings for a district within [from, to], oldest first.
func (r *WeatherRepository) ListReadings(ctx context.Context, district, state string, from, to time.Time) ([]models.WeatherReading, error) {
	readings := []models.WeatherReading{}
	query := `
		SELECT district, state, reading_date, rainfall_mm
		FROM weather_readings
		WHERE district = $1 AND state = $2 AND reading_date BETWEEN $3::date AND $4::date
		ORDER BY reading_date
	`
	if err := r.db.SelectContext(ctx, &readings, query, district, state, from, to); err != nil {
		return nil, fmt.Errorf("failed to list weather readings: %w", err)
	}
	return readings, nil
}

// UpsertReadings stores readings, replacing any existing value for the same day.
func (r *WeatherRepository) UpsertReadings(ctx context.Context, readings []models.WeatherReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO weather_readings (district, state, reading_date, rainfall_mm)
		VALUES (:district, :state, :reading_date, :rainfall_mm)
		ON CONFLICT (district, state, reading_date) DO UPDATE SET rainfall_mm = EXCLUDED.rainfall_mm
	`
	for _, reading := range readings {
		if _, err = tx.NamedExecContext(ctx, query, reading); err != nil {
			return fmt.Errorf("failed to upsert weather reading: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit weather readings: %w", err)
	}
	return nil
}
