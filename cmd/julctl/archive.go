package julctl

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/extractor"
	"github.com/sustena-platforms/julctl/internal/view"
)

func newArchiveCmd(v *viper.Viper) *cobra.Command {
	var follow bool
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Copy the chain into the PostgreSQL archive",
		Long: `Copy every block and transaction of the chain into the PostgreSQL archive,
filling gaps left by earlier runs. With --follow, keep polling the chain and
archive new blocks as they are forged.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v.Set("archive.enabled", true)
			if follow {
				kinds := v.GetStringSlice("sync.poll-kinds")
				if !slices.Contains(kinds, string(view.KindChain)) {
					v.Set("sync.poll-kinds", append(kinds, string(view.KindChain)))
				}
			}
			return nil
		},
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			out, err := a.openArchive(ctx)
			if err != nil {
				return err
			}
			if err := extractor.Backfill(ctx, a.ledger, out, a.cfg.Archive, true); err != nil {
				return fmt.Errorf("failed to archive chain: %w", err)
			}
			latest, err := out.GetLatestBlock(ctx)
			if err != nil {
				return err
			}
			if latest != nil {
				fmt.Fprintln(cmd.OutOrStdout(), success(fmt.Sprintf("Archive holds blocks up to %d", latest.Index)))
			}
			if !follow {
				return nil
			}

			if err := a.followChain(ctx); err != nil {
				return err
			}
			a.coord.Start(ctx)
			<-ctx.Done()
			return nil
		}),
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "keep archiving new blocks until interrupted")
	return cmd
}
