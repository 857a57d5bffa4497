package utils

import (
	"database/sql"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/pkg/errors"
)

// MigrateUp applies the migrations found in dir of fsys to the database at dsn,
// tracking them in table. It uses its own connection, closed on return.
func MigrateUp(dsn string, fsys fs.FS, dir, table string) error {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return errors.WithMessage(err, "error reading migrations")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return errors.WithMessage(err, "error opening database")
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	if err != nil {
		_ = db.Close()
		return errors.WithMessage(err, "error creating migration driver")
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return errors.WithMessage(err, "error creating migrator")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("Failed to close migrator", "source", srcErr, "database", dbErr)
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.WithMessage(err, "error applying migrations")
	}
	version, dirty, err := m.Version()
	if err == nil {
		slog.Debug("Schema migrated", "table", table, "version", version, "dirty", dirty)
	}
	return nil
}
