package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Registry backends.
const (
	BackendFile     = "file"
	BackendLevelDB  = "leveldb"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type LedgerConfig struct {
	URL         string        `mapstructure:"url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MempoolPath string        `mapstructure:"mempool-path"`
}

type SyncConfig struct {
	PollInterval time.Duration `mapstructure:"poll-interval"`
	// PollKinds lists the resources refreshed on every tick. Mempool is always polled.
	PollKinds []string `mapstructure:"poll-kinds"`
}

type RegistryConfig struct {
	Backend   string `mapstructure:"backend"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
	DSN       string `mapstructure:"dsn"`
	Strict    bool   `mapstructure:"strict"`
}

type ArchiveConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	DSN            string `mapstructure:"dsn"`
	MaxConcurrency uint   `mapstructure:"max-concurrency"`
	MaxRetries     uint   `mapstructure:"max-retries"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
	ServiceName  string `mapstructure:"service-name"`
}

type Config struct {
	LogLevel  string          `mapstructure:"log-level"`
	LogFormat string          `mapstructure:"log-format"`
	FundUSD   float64         `mapstructure:"fund-usd"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
	v.SetDefault("fund-usd", 100.0)
	v.SetDefault("ledger.url", "http://localhost:8080/api")
	v.SetDefault("ledger.timeout", 10*time.Second)
	v.SetDefault("ledger.mempool-path", "/get_mempool")
	v.SetDefault("sync.poll-interval", 5*time.Second)
	v.SetDefault("sync.poll-kinds", []string{"mempool"})
	v.SetDefault("registry.backend", BackendLevelDB)
	v.SetDefault("registry.namespace", "julctl")
	v.SetDefault("registry.path", defaultDataDir())
	v.SetDefault("registry.dsn", "")
	v.SetDefault("registry.strict", false)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.dsn", "")
	v.SetDefault("archive.max-concurrency", 8)
	v.SetDefault("archive.max-retries", 3)
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("telemetry.otlp-endpoint", "")
	v.SetDefault("telemetry.service-name", "julctl")
}

// Load reads the configuration from v, which holds defaults, the optional
// config file, environment variables and bound flags.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.Ledger.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ledger.url %q is not an absolute URL", c.Ledger.URL)
	}
	if c.Ledger.Timeout <= 0 {
		return fmt.Errorf("ledger.timeout must be positive")
	}
	if c.Sync.PollInterval <= 0 {
		return fmt.Errorf("sync.poll-interval must be positive")
	}
	if c.Registry.Namespace == "" || strings.ContainsAny(c.Registry.Namespace, "/: ") {
		return fmt.Errorf("registry.namespace %q must be a non-empty word", c.Registry.Namespace)
	}
	switch c.Registry.Backend {
	case BackendFile, BackendLevelDB:
		if c.Registry.Path == "" {
			return fmt.Errorf("registry.path is required for the %s backend", c.Registry.Backend)
		}
	case BackendPostgres, BackendRedis:
		if c.Registry.DSN == "" {
			return fmt.Errorf("registry.dsn is required for the %s backend", c.Registry.Backend)
		}
	default:
		return fmt.Errorf("unknown registry.backend %q", c.Registry.Backend)
	}
	if c.Archive.Enabled {
		if c.Archive.DSN == "" {
			return fmt.Errorf("archive.dsn is required when the archive is enabled")
		}
		if c.Archive.MaxConcurrency == 0 {
			return fmt.Errorf("archive.max-concurrency must be at least 1")
		}
	}
	if c.FundUSD < 0 {
		return fmt.Errorf("fund-usd must not be negative")
	}
	return nil
}
