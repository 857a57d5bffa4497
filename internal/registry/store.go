package registry

import (
	"context"
	"fmt"

	"github.com/sustena-platforms/julctl/internal/config"
)

// Store is the key-value persistence behind a Registry.
type Store interface {
	// Load returns the value stored under key; found is false if there is none.
	Load(ctx context.Context, key string) (value []byte, found bool, err error)

	// Save replaces the value stored under key.
	Save(ctx context.Context, key string, value []byte) error

	// Close releases the store.
	Close() error
}

// NewStore opens the store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg config.RegistryConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Path)
	case config.BackendLevelDB:
		return NewLevelDBStore(cfg.Path)
	case config.BackendPostgres:
		return OpenPostgresStore(ctx, cfg.DSN)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Backend)
	}
}
