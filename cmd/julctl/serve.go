package julctl

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the view and the wallet actions over HTTP",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if err := a.followChain(ctx); err != nil {
				return err
			}
			a.coord.Start(ctx)
			go func() {
				if err := a.coord.RefreshAll(ctx); err != nil {
					slog.Warn("Initial refresh incomplete", "error", err)
				}
			}()

			srv := server.New(a.coord, a.registry, a.metrics, a.cfg.Telemetry.ServiceName)
			return srv.Run(ctx, a.cfg.Server.Addr)
		}),
	}
	cmd.Flags().String("addr", v.GetString("server.addr"), "listen address")
	if err := v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")); err != nil {
		panic(err)
	}
	return cmd
}
