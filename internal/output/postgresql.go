package output

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver

	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/utils"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "julctl_archive_migrations"

// PostgresOutputHandler archives blocks into the blocks and transactions tables.
type PostgresOutputHandler struct {
	db *sql.DB
}

// NewPostgresOutputHandler migrates the archive schema and connects to dsn.
func NewPostgresOutputHandler(ctx context.Context, dsn string) (*PostgresOutputHandler, error) {
	if err := utils.MigrateUp(dsn, migrations, "migrations", migrationsTable); err != nil {
		return nil, fmt.Errorf("failed to migrate archive schema: %w", err)
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	slog.Info("Connected to archive database")
	return NewPostgresOutputHandlerWithDB(db), nil
}

// NewPostgresOutputHandlerWithDB uses an open database whose schema is already migrated.
func NewPostgresOutputHandlerWithDB(db *sql.DB) *PostgresOutputHandler {
	return &PostgresOutputHandler{db: db}
}

func (h *PostgresOutputHandler) WriteBlockWithTransactions(ctx context.Context, block *models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to encode block %d: %w", block.Index, err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("Failed to roll back archive transaction", "block", block.Index, "error", err)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blocks (id, hash, validator, ts, data) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
		int64(block.Index), block.Hash, block.Validator, time.Unix(block.Timestamp, 0).UTC(), data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert block %d: %w", block.Index, err)
	}

	for _, t := range block.Transactions {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO transactions (id, block_id, sender, recipient, amount, fee) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (id) DO NOTHING`,
			t.ID, int64(block.Index), t.From, t.To, strconv.FormatUint(uint64(t.Amount), 10), strconv.FormatUint(uint64(t.Fee), 10),
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s of block %d: %w", t.ID, block.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", block.Index, err)
	}
	return nil
}

func (h *PostgresOutputHandler) GetLatestBlock(ctx context.Context) (*models.Block, error) {
	return h.blockQuery(ctx, `SELECT data FROM blocks ORDER BY id DESC LIMIT 1`)
}

func (h *PostgresOutputHandler) GetEarliestBlock(ctx context.Context) (*models.Block, error) {
	return h.blockQuery(ctx, `SELECT data FROM blocks ORDER BY id ASC LIMIT 1`)
}

func (h *PostgresOutputHandler) blockQuery(ctx context.Context, query string) (*models.Block, error) {
	var data []byte
	err := h.db.QueryRowContext(ctx, query).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query block: %w", err)
	}
	var b models.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode archived block: %w", err)
	}
	return &b, nil
}

func (h *PostgresOutputHandler) GetMissingBlockIds(ctx context.Context) ([]uint64, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT s.i FROM generate_series(0, (SELECT MAX(id) FROM blocks)) AS s(i)
		WHERE NOT EXISTS (SELECT 1 FROM blocks b WHERE b.id = s.i) ORDER BY s.i`)
	if err != nil {
		return nil, fmt.Errorf("failed to query missing blocks: %w", err)
	}
	defer rows.Close()

	var missing []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan missing block id: %w", err)
		}
		missing = append(missing, uint64(id))
	}
	return missing, rows.Err()
}

func (h *PostgresOutputHandler) Close() error {
	slog.Info("Closing archive database connection")
	return h.db.Close()
}
