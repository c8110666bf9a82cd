// Command fitsync runs a sync session against a SQL-backed store and
// walks through one round of reads and mutations for an owner.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-fitsync/config"
	"github.com/goliatone/go-fitsync/entity"
	"github.com/goliatone/go-fitsync/identity"
	"github.com/goliatone/go-fitsync/logging"
	"github.com/goliatone/go-fitsync/pkg/di"
	"github.com/goliatone/go-fitsync/store/bunstore"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "", "path to a YAML config file")
		owner       = pflag.StringP("owner", "o", "demo-user", "owner identity for the session")
		serve       = pflag.Bool("serve", false, "keep the session running until interrupted")
		metricsAddr = pflag.String("metrics-addr", "", "serve Prometheus metrics on this address")
	)
	pflag.Parse()

	if err := run(*configPath, *owner, *serve, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "fitsync: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, owner string, serve bool, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.CreateSchema {
		if err := bunstore.CreateSchema(ctx, db); err != nil {
			return err
		}
	}

	registry, err := bunstore.Registry(db, bunstore.WithDerive(deriveBMI))
	if err != nil {
		return err
	}

	container, err := di.NewContainer(cfg, registry, di.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := container.Start(ctx); err != nil {
		return err
	}
	defer container.Close()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Shutdown(context.Background())
	}

	if err := demo(identity.WithOwner(ctx, owner), container, logger); err != nil {
		return err
	}

	if serve {
		logger.Info().Msg("session running, press ctrl+c to stop")
		<-ctx.Done()
	}
	return nil
}

func openDB(cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case config.DriverPostgres:
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}
	sqldb.Close()
	return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
}

// deriveBMI stands in for the server-side computation of BMI fields.
func deriveBMI(e entity.Entity) {
	b, ok := e.(*entity.BMIEntry)
	if !ok || b.HeightCM <= 0 {
		return
	}
	m := b.HeightCM / 100
	b.BMI = b.WeightKG / (m * m)

	switch {
	case b.BMI < 18.5:
		b.Category = "underweight"
	case b.BMI < 25:
		b.Category = "normal"
	case b.BMI < 30:
		b.Category = "overweight"
	default:
		b.Category = "obese"
	}
}

func demo(ctx context.Context, container *di.Container, logger zerolog.Logger) error {
	client := container.Client()

	workout, err := client.Workouts.Create(ctx, &entity.Workout{Title: "Evening run", Category: "cardio", DurationMinutes: 35})
	if err != nil {
		return err
	}
	recent, err := client.Workouts.Recent(ctx, 5)
	if err != nil {
		return err
	}
	logger.Info().Str("workout", workout.ID.String()).Int("recent", len(recent)).Msg("workout logged")

	goal, err := client.Goals.Create(ctx, &entity.Goal{Title: "Run 50km this month", Unit: "km", TargetValue: 50})
	if err != nil {
		return err
	}
	if goal, err = client.Goals.UpdateProgress(ctx, goal.ID, 12.5); err != nil {
		return err
	}
	logger.Info().Str("goal", goal.ID.String()).Int("progress", goal.ProgressPercentage).Str("status", string(goal.Status)).Msg("goal progress")

	routine, err := client.Routines.Create(ctx, &entity.Routine{Name: "5x5", Category: "strength", IsPublic: true})
	if err != nil {
		return err
	}
	if routine, err = client.Routines.IncrementUsage(ctx, routine.ID); err != nil {
		return err
	}
	mostUsed, err := client.Routines.MostUsed(ctx, 3)
	if err != nil {
		return err
	}
	logger.Info().Str("routine", routine.Name).Int("times_used", routine.TimesUsed).Int("most_used", len(mostUsed)).Msg("routine used")

	if _, err := client.BMI.Create(ctx, &entity.BMIEntry{HeightCM: 178, WeightKG: 74}); err != nil {
		return err
	}
	latest, err := client.BMI.Latest(ctx)
	if err != nil {
		return err
	}
	if latest != nil {
		logger.Info().Float64("bmi", latest.BMI).Str("category", latest.Category).Msg("latest bmi")
	}

	logger.Info().Int("cached_entries", container.Cache().Len()).Msg("demo complete")
	return nil
}
