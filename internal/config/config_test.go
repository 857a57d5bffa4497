package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.Ledger.URL)
	assert.Equal(t, 10*time.Second, cfg.Ledger.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Sync.PollInterval)
	assert.Equal(t, []string{"mempool"}, cfg.Sync.PollKinds)
	assert.Equal(t, BackendLevelDB, cfg.Registry.Backend)
	assert.Equal(t, "julctl", cfg.Registry.Namespace)
	assert.Equal(t, uint(8), cfg.Archive.MaxConcurrency)
}

func TestLoadInvalid(t *testing.T) {
	cases := []struct {
		name      string
		overrides map[string]any
		wantErr   string
	}{
		{
			name:      "relative ledger url",
			overrides: map[string]any{"ledger.url": "localhost/api"},
			wantErr:   "not an absolute URL",
		},
		{
			name:      "zero poll interval",
			overrides: map[string]any{"sync.poll-interval": "0s"},
			wantErr:   "sync.poll-interval",
		},
		{
			name:      "unknown backend",
			overrides: map[string]any{"registry.backend": "etcd"},
			wantErr:   "unknown registry.backend",
		},
		{
			name:      "postgres without dsn",
			overrides: map[string]any{"registry.backend": BackendPostgres},
			wantErr:   "registry.dsn is required",
		},
		{
			name:      "namespace with separator",
			overrides: map[string]any{"registry.namespace": "a/b"},
			wantErr:   "registry.namespace",
		},
		{
			name:      "archive without dsn",
			overrides: map[string]any{"archive.enabled": true},
			wantErr:   "archive.dsn is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(newViper(tc.overrides))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
