package julctl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/view"
)

func newWalletCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Manage the locally registered wallets",
	}
	cmd.AddCommand(
		newWalletCreateCmd(v),
		newWalletAddCmd(v),
		newWalletListCmd(v),
		newWalletBalanceCmd(v),
		newWalletAliasCmd(v),
	)
	return cmd
}

func newWalletCreateCmd(v *viper.Viper) *cobra.Command {
	var (
		fund      float64
		withFunds bool
		alias     string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a wallet on the ledger and register it",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			var (
				addr     string
				acquired models.Amount
				err      error
			)
			if fund > 0 || withFunds {
				addr, acquired, err = a.coord.CreateAndFund(ctx, fund)
			} else {
				addr, err = a.coord.CreateWallet(ctx)
			}
			if addr != "" {
				fmt.Fprintln(cmd.OutOrStdout(), success("Created wallet "+addr))
			}
			if err != nil {
				return err
			}
			if acquired > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Purchased %s\n", acquired)
			}
			if alias != "" {
				return a.registry.SetAlias(ctx, addr, alias)
			}
			return nil
		}),
	}
	cmd.Flags().Float64Var(&fund, "fund", 0, "purchase JUL for this many USD after creating the wallet")
	cmd.Flags().BoolVar(&withFunds, "with-funds", false, "purchase JUL for the configured fund-usd amount")
	cmd.Flags().StringVar(&alias, "alias", "", "alias of the new wallet")
	return cmd
}

func newWalletAddCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "add <address>",
		Short: "Register an existing wallet address",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			added, err := a.registry.Add(ctx, args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.OutOrStdout(), "Wallet %s is already registered\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), success("Registered wallet "+args[0]))
			return nil
		}),
	}
}

func newWalletListCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered wallets with their balances",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			keys := make([]view.Key, 0)
			for _, addr := range a.registry.List() {
				keys = append(keys, view.Balance(addr))
			}
			refreshErr := a.coord.RefreshMany(ctx, keys...)
			if err := view.Render(cmd.OutOrStdout(), a.coord.View().Snapshot(), a.registry.Wallets(), view.RenderOptions{Sections: view.SectionWallets}); err != nil {
				return err
			}
			return refreshErr
		}),
	}
}

func newWalletBalanceCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <wallet>",
		Short: "Show the balance of a wallet given by alias or address",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			addr := a.resolveWallet(args[0])
			if err := a.coord.Refresh(ctx, view.Balance(addr)); err != nil {
				return err
			}
			bal, _ := a.coord.View().Balance(addr)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", addr, bal)
			return nil
		}),
	}
}

func newWalletAliasCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "alias <address> [alias]",
		Short: "Set or, without alias, remove the alias of a wallet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			alias := ""
			if len(args) == 2 {
				alias = args[1]
			}
			return a.registry.SetAlias(ctx, a.resolveWallet(args[0]), alias)
		}),
	}
}
