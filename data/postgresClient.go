package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/sp500_loader/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
)

const (
	defaultConnAttempts = 10
	connTimeout         = time.Second
)

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=disable password=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.DbName,
		cfg.Postgres.Password,
	)
}

// NewPostgresClient connects with retries and applies pending migrations. It panics when the
// database stays unreachable, the service can't do anything useful without it.
func NewPostgresClient(ctx context.Context, cfg *config.Config) *sqlx.DB {
	db, err := connectWithRetry(ctx, postgresDSN(cfg), defaultConnAttempts, connTimeout)
	if err != nil {
		slog.Error("Postgres unreachable", slog.String("err", err.Error()))
		panic(err)
	}

	configurePool(db, cfg.Postgres)
	slog.Info("Postgres connected", slog.String("host", cfg.Postgres.Host), slog.String("db", cfg.Postgres.DbName))

	version, err := migratePostgres(db, cfg.Postgres.DbName, cfg.Postgres.MigrationDir)
	if err != nil {
		_ = db.Close()
		panic(err)
	}
	slog.Info("Postgres schema is up to date", slog.Uint64("version", uint64(version)))

	return db
}

func connectWithRetry(ctx context.Context, dsn string, attempts int, wait time.Duration) (*sqlx.DB, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
		if err == nil {
			return db, nil
		}
		lastErr = err

		slog.Info("Postgres is trying to connect", slog.Int("attempt", attempt), slog.Int("of", attempts))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect after %d attempts: %w", attempts, lastErr)
}

func configurePool(db *sqlx.DB, pg config.Postgres) {
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(pg.ConnMaxLifetime) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(pg.ConnMaxIdleTime) * time.Second)
}

// migratePostgres applies every pending file migration and returns the resulting schema version.
func migratePostgres(db *sqlx.DB, dbName, migrationDir string) (uint, error) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{DatabaseName: dbName})
	if err != nil {
		return 0, fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationDir, dbName, driver)
	if err != nil {
		return 0, fmt.Errorf("migration source %s: %w", migrationDir, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	return version, nil
}
