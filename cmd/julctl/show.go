package julctl

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/view"
)

// newShowCmd refreshes the resources behind sections and renders them. Zero
// sections means everything.
func newShowCmd(v *viper.Viper, use, short string, sections view.Section) *cobra.Command {
	var (
		asJSON    bool
		maxBlocks int
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			var refreshErr error
			if sections == 0 {
				refreshErr = a.coord.RefreshAll(ctx)
			} else {
				refreshErr = a.coord.RefreshMany(ctx, sectionKeys(sections)...)
			}

			snap := a.coord.View().Snapshot()
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(snap); err != nil {
					return err
				}
				return refreshErr
			}
			opts := view.RenderOptions{MaxBlocks: maxBlocks, Sections: sections}
			if err := view.Render(cmd.OutOrStdout(), snap, a.registry.Wallets(), opts); err != nil {
				return err
			}
			return refreshErr
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the view as JSON")
	cmd.Flags().IntVar(&maxBlocks, "blocks", 10, "number of most recent blocks shown; 0 shows all")
	return cmd
}

func sectionKeys(sections view.Section) []view.Key {
	var keys []view.Key
	if sections&view.SectionChain != 0 {
		keys = append(keys, view.Chain)
	}
	if sections&view.SectionMempool != 0 {
		keys = append(keys, view.Mempool, view.Chain)
	}
	if sections&view.SectionValidators != 0 {
		keys = append(keys, view.Validators)
	}
	if sections&view.SectionCommunityFund != 0 {
		keys = append(keys, view.CommunityFund)
	}
	return keys
}
