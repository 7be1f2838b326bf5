package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/craftly/craftly/internal/config"
	ierr "github.com/craftly/craftly/internal/errors"
	"github.com/craftly/craftly/internal/logger"
)

// NewDB opens a postgres connection pool from configuration
func NewDB(cfg *config.Configuration, log *logger.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to open postgres connection").
			Mark(ierr.ErrDatabase)
	}

	db.SetMaxOpenConns(cfg.Postgres.MaxOpen)
	db.SetMaxIdleConns(cfg.Postgres.MaxIdle)

	if err := db.Ping(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to reach postgres").
			WithReportableDetails(map[string]interface{}{
				"host": cfg.Postgres.Host,
				"port": cfg.Postgres.Port,
			}).
			Mark(ierr.ErrDatabase)
	}

	log.Infow("connected to postgres",
		"host", cfg.Postgres.Host,
		"dbname", cfg.Postgres.DBName)

	return db, nil
}
