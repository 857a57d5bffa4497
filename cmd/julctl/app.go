package julctl

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/client"
	"github.com/sustena-platforms/julctl/internal/config"
	"github.com/sustena-platforms/julctl/internal/coordinator"
	"github.com/sustena-platforms/julctl/internal/extractor"
	"github.com/sustena-platforms/julctl/internal/metrics"
	"github.com/sustena-platforms/julctl/internal/otel"
	"github.com/sustena-platforms/julctl/internal/output"
	"github.com/sustena-platforms/julctl/internal/registry"
	"github.com/sustena-platforms/julctl/internal/view"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
)

// app holds the components shared by every command.
type app struct {
	cfg             config.Config
	metrics         *metrics.Metrics
	registry        *registry.Registry
	ledger          *client.LedgerClient
	coord           *coordinator.Coordinator
	archive         output.OutputHandler
	shutdownTracing func(context.Context) error
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	kinds := make([]view.Kind, 0, len(cfg.Sync.PollKinds))
	for _, k := range cfg.Sync.PollKinds {
		kind, err := view.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("invalid sync.poll-kinds: %w", err)
		}
		kinds = append(kinds, kind)
	}

	store, err := registry.NewStore(ctx, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s registry: %w", cfg.Registry.Backend, err)
	}
	reg, err := registry.Open(ctx, store, registry.Options{Namespace: cfg.Registry.Namespace, Strict: cfg.Registry.Strict})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	m := metrics.New()
	ledger := client.New(client.Options{
		BaseURL:     cfg.Ledger.URL,
		Timeout:     cfg.Ledger.Timeout,
		MempoolPath: cfg.Ledger.MempoolPath,
		Metrics:     m,
	})
	coord := coordinator.New(ledger, reg, view.New(), coordinator.Options{
		PollInterval: cfg.Sync.PollInterval,
		PollKinds:    kinds,
		FundUSD:      cfg.FundUSD,
		Metrics:      m,
	})

	slog.Debug("Client ready", "ledger", cfg.Ledger.URL, "registry", cfg.Registry.Backend, "wallets", len(reg.List()))
	return &app{
		cfg:             cfg,
		metrics:         m,
		registry:        reg,
		ledger:          ledger,
		coord:           coord,
		shutdownTracing: otel.Init(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName),
	}, nil
}

// openArchive connects to the chain archive if it is enabled.
func (a *app) openArchive(ctx context.Context) (output.OutputHandler, error) {
	if a.archive != nil || !a.cfg.Archive.Enabled {
		return a.archive, nil
	}
	out, err := output.NewPostgresOutputHandler(ctx, a.cfg.Archive.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain archive: %w", err)
	}
	a.archive = out
	return out, nil
}

// followChain archives every chain the coordinator accepts until ctx is done.
// It is a no-op when the archive is disabled.
func (a *app) followChain(ctx context.Context) error {
	out, err := a.openArchive(ctx)
	if err != nil || out == nil {
		return err
	}
	follower := extractor.NewFollower(out, a.cfg.Archive)
	a.coord.OnChainAccepted(follower.OnChain)
	go func() {
		if err := follower.Run(ctx); err != nil {
			slog.Error("Chain archive stopped", "error", err)
		}
	}()
	slog.Info("Archiving accepted blocks")
	return nil
}

func (a *app) close() {
	if err := a.coord.Close(); err != nil {
		slog.Warn("Failed to stop coordinator", "error", err)
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			slog.Warn("Failed to close chain archive", "error", err)
		}
	}
	if err := a.registry.Close(); err != nil {
		slog.Warn("Failed to close wallet registry", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdownTracing(ctx); err != nil {
		slog.Warn("Failed to flush traces", "error", err)
	}
}

// withApp runs fn with the components built from v, cancelled on SIGINT or SIGTERM.
func withApp(v *viper.Viper, fn func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, v)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a, args)
	}
}

// resolveWallet maps an alias or address to a registered address; unknown
// names are passed through for the coordinator to reject.
func (a *app) resolveWallet(name string) string {
	if addr, ok := a.registry.Resolve(name); ok {
		return addr
	}
	return name
}
