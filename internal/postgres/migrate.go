package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	pgxstd "github.com/jackc/pgx/v5/stdlib"
	"github.com/kirinyoku/cinebook/migrations"
)

// Migrate applies every pending up migration embedded in the binary.
// An already up-to-date schema is not an error.
func Migrate(dsn string) error {
	const op = "postgres.Migrate"

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	db := pgxstd.OpenDB(*connCfg)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("%s: driver: %w", op, err)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("%s: source: %w", op, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: up: %w", op, err)
	}

	return nil
}
