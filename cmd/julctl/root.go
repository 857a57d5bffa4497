package julctl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/config"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/view"
)

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":        "log-level",
	"log-format":       "log-format",
	"ledger-url":       "ledger.url",
	"ledger-timeout":   "ledger.timeout",
	"mempool-path":     "ledger.mempool-path",
	"poll-interval":    "sync.poll-interval",
	"poll-kinds":       "sync.poll-kinds",
	"registry-backend": "registry.backend",
	"registry-path":    "registry.path",
	"registry-dsn":     "registry.dsn",
	"namespace":        "registry.namespace",
	"strict":           "registry.strict",
	"archive":          "archive.enabled",
	"archive-dsn":      "archive.dsn",
	"otlp-endpoint":    "telemetry.otlp-endpoint",
}

// NewRootCmd builds the command tree reading its configuration from v.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "julctl",
		Short: "Client for the JUL ledger",
		Long: `julctl creates wallets, submits transactions, stakes and purchases JUL and
observes the chain, mempool, validators and community fund of a remote ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
			}
			if err := setupLogger(v.GetString("log-level"), v.GetString("log-format")); err != nil {
				return err
			}
			if cfgFile != "" {
				slog.Debug("Using config file", "path", v.ConfigFileUsed())
			}
			return nil
		},
	}

	config.SetDefaults(v)
	v.SetEnvPrefix("JULCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	flags.String("log-level", v.GetString("log-level"), "log level (debug, info, warn, error)")
	flags.String("log-format", v.GetString("log-format"), "log format (text, json)")
	flags.String("ledger-url", v.GetString("ledger.url"), "base URL of the ledger API")
	flags.Duration("ledger-timeout", v.GetDuration("ledger.timeout"), "timeout of a single ledger call")
	flags.String("mempool-path", v.GetString("ledger.mempool-path"), "path of the mempool endpoint")
	flags.Duration("poll-interval", v.GetDuration("sync.poll-interval"), "period of the background refresh")
	flags.StringSlice("poll-kinds", v.GetStringSlice("sync.poll-kinds"), "resources refreshed periodically (mempool, chain, validators, communityFund, balance)")
	flags.String("registry-backend", v.GetString("registry.backend"), "wallet registry backend (file, leveldb, postgres, redis)")
	flags.String("registry-path", v.GetString("registry.path"), "directory of the file and leveldb registry backends")
	flags.String("registry-dsn", v.GetString("registry.dsn"), "connection URL of the postgres and redis registry backends")
	flags.String("namespace", v.GetString("registry.namespace"), "namespace of the persisted registry entries")
	flags.Bool("strict", v.GetBool("registry.strict"), "fail when registering an already known wallet")
	flags.Bool("archive", v.GetBool("archive.enabled"), "archive accepted blocks into PostgreSQL")
	flags.String("archive-dsn", v.GetString("archive.dsn"), "PostgreSQL connection string of the chain archive")
	flags.String("otlp-endpoint", v.GetString("telemetry.otlp-endpoint"), "OTLP/HTTP endpoint for traces; empty disables tracing")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	rootCmd.AddCommand(
		newWalletCmd(v),
		newSendCmd(v),
		newStakeCmd(v, true),
		newStakeCmd(v, false),
		newPurchaseCmd(v),
		newForgeCmd(v),
		newShowCmd(v, "status", "Show wallets, chain, mempool, validators and community fund", 0),
		newShowCmd(v, "chain", "Show the chain", view.SectionChain),
		newShowCmd(v, "mempool", "Show pending transactions", view.SectionMempool),
		newShowCmd(v, "validators", "Show the validator set", view.SectionValidators),
		newShowCmd(v, "fund", "Show the community fund", view.SectionCommunityFund),
		newWatchCmd(v),
		newServeCmd(v),
		newArchiveCmd(v),
	)
	return rootCmd
}

func setupLogger(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// Execute runs the root command with the global viper instance.
func Execute() {
	if err := NewRootCmd(viper.GetViper()).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, failure("Error: "+models.UserMessage(err)))
		os.Exit(1)
	}
}
