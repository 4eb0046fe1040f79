package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/config"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
)

// Open connects to the configured database without migrating.
func Open(cfg *config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(log.GetLevel())),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	return db, nil
}

// Init opens the database and runs migrations.
func Init(cfg *config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	db, err := Open(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, cfg, log); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB, cfg *config.DatabaseConfig, log zerolog.Logger) error {
	log.Info().Msg("running database migrations")
	if err := db.AutoMigrate(
		&model.Vehicle{},
		&model.ScheduledEvent{},
		&model.MoveAttempt{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}

	if cfg.LaneExclusion {
		if cfg.Driver != "postgres" {
			log.Warn().Str("driver", cfg.Driver).Msg("lane exclusion constraint needs postgres, skipping")
		} else {
			log.Info().Msg("applying lane exclusion constraint")
			if err := applyLaneExclusionDDL(db); err != nil {
				log.Warn().Err(err).Msg("failed to apply lane exclusion DDL, continuing without it")
			}
		}
	}

	log.Info().Msg("database initialization complete")
	return nil
}

// laneExclusionDDL makes postgres reject two events sharing a vehicle over
// overlapping half-open ranges. Unassigned rows have a NULL vehicle and
// never collide. Every statement can run again on an already migrated
// schema.
var laneExclusionDDL = []string{
	"CREATE EXTENSION IF NOT EXISTS btree_gist;",

	addConstraintOnce("scheduled_events", "scheduled_events_interval_valid",
		"CHECK (starts_at < ends_at)"),

	addConstraintOnce("scheduled_events", "scheduled_events_lane_excl",
		"EXCLUDE USING GIST (vehicle_id WITH =, tstzrange(starts_at, ends_at, '[)') WITH &&)"),

	"CREATE INDEX IF NOT EXISTS idx_move_attempts_attempted_at ON move_attempts (attempted_at DESC);",
}

// addConstraintOnce wraps ALTER TABLE ADD CONSTRAINT, which has no
// IF NOT EXISTS form, in a pg_constraint lookup.
func addConstraintOnce(table, name, definition string) string {
	return fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%[2]s') THEN
		ALTER TABLE %[1]s ADD CONSTRAINT %[2]s %[3]s;
	END IF;
END
$$;`, table, name, definition)
}

func applyLaneExclusionDDL(db *gorm.DB) error {
	for _, ddl := range laneExclusionDDL {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

func gormLogLevel(level zerolog.Level) logger.LogLevel {
	switch {
	case level <= zerolog.DebugLevel:
		return logger.Info
	case level <= zerolog.WarnLevel:
		return logger.Warn
	case level == zerolog.Disabled:
		return logger.Silent
	default:
		return logger.Error
	}
}
