package julctl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/view"
)

const clearScreen = "\033[H\033[2J"

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var maxBlocks int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Continuously render the view while polling the ledger",
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

			state := a.coord.View()
			opts := view.RenderOptions{MaxBlocks: maxBlocks}
			for {
				changed := state.Changed()
				fmt.Fprint(cmd.OutOrStdout(), clearScreen)
				if err := view.Render(cmd.OutOrStdout(), state.Snapshot(), a.registry.Wallets(), opts); err != nil {
					return err
				}
				select {
				case <-ctx.Done():
					return nil
				case <-changed:
				}
				// Let a burst of updates settle into one frame.
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(100 * time.Millisecond):
				}
			}
		}),
	}
	cmd.Flags().IntVar(&maxBlocks, "blocks", 10, "number of most recent blocks shown; 0 shows all")
	return cmd
}
