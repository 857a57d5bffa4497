package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/sustena-platforms/julctl/internal/utils"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "julctl_registry_migrations"

// PostgresStore persists entries in the registry_entries table.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore migrates the schema and connects to dsn.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := utils.MigrateUp(dsn, migrations, "migrations", migrationsTable); err != nil {
		return nil, fmt.Errorf("failed to migrate registry schema: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore uses an open database whose schema is already migrated.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM registry_entries WHERE key = $1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO registry_entries (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
