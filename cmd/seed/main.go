package main

import (
	"context"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/hospital-booking/internal/config"
	"github.com/careslot/hospital-booking/internal/db"
	"github.com/careslot/hospital-booking/pkg/logging"
)

var logger = logging.Default().With("service", "seed")

func main() {
	logger.Info("seed starting")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("connect postgres failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	doctorIDs, err := seedDoctors(context.Background(), pool, 50)
	if err != nil {
		logger.Error("seed doctors failed", "error", err)
		os.Exit(1)
	}
	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		logger.Error("seed patients failed", "error", err)
		os.Exit(1)
	}
	if err := seedSlots(context.Background(), pool, doctorIDs); err != nil {
		logger.Error("seed slots failed", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	logger.Info("seeding doctors", "count", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, email, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, spec, email)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	logger.Info("seeding patients", "count", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info("patients seeded", "done", end, "total", count)
	}

	return nil
}

// seedSlots publishes, for each doctor, half-hour slots 09:00-17:00 for the
// next 7 days. Intervals within a day never touch, so the overlap validator
// would accept every one of them.
func seedSlots(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID) error {
	logger.Info("seeding slots", "doctors", len(doctorIDs))

	today := time.Now().UTC().Truncate(24 * time.Hour)

	for _, doctorID := range doctorIDs {
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for day := 1; day <= 7; day++ {
			date := today.AddDate(0, 0, day)
			for hour := 9; hour < 17; hour++ {
				for _, minute := range []int{0, 30} {
					start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.UTC)
					end := start.Add(30 * time.Minute)

					_, err := tx.Exec(ctx, `
						INSERT INTO availability_slots (id, doctor_id, slot_date, start_time, end_time, is_booked, created_at, updated_at)
						VALUES ($1, $2, $3, $4, $5, false, now(), now())
					`, uuid.New(), doctorID, date, start, end)
					if err != nil {
						_ = tx.Rollback(ctx)
						return err
					}
				}
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	logger.Info("slots seeded")
	return nil
}
