package julctl

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sustena-platforms/julctl/internal/models"
)

func newSendCmd(v *viper.Viper) *cobra.Command {
	var fee string
	cmd := &cobra.Command{
		Use:   "send <from> <to> <amount>",
		Short: "Send JUL from a registered wallet",
		Long:  "Send JUL from a registered wallet. Amounts are decimal JUL, e.g. 1.25; wallets may be given by alias.",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			amount, err := models.ParseJUL("amount", args[2])
			if err != nil {
				return err
			}
			var feeAmount models.Amount
			if fee != "" {
				if feeAmount, err = models.ParseJUL("fee", fee); err != nil {
					return err
				}
			}
			tx, err := a.coord.SendTransaction(ctx, a.resolveWallet(args[0]), a.resolveWallet(args[1]), amount, feeAmount)
			if err != nil {
				return err
			}
			msg := fmt.Sprintf("Sent %s to %s", tx.Amount, tx.To)
			if tx.ID != "" {
				msg += " in transaction " + tx.ID
			}
			fmt.Fprintln(cmd.OutOrStdout(), success(msg))
			return nil
		}),
	}
	cmd.Flags().StringVar(&fee, "fee", "", "transaction fee in JUL")
	return cmd
}

func newStakeCmd(v *viper.Viper, lock bool) *cobra.Command {
	use, short, verb := "stake", "Stake JUL of a registered wallet", "Staked"
	if !lock {
		use, short, verb = "unstake", "Release staked JUL of a registered wallet", "Unstaked"
	}
	return &cobra.Command{
		Use:   use + " <wallet> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			amount, err := models.ParseJUL("amount", args[1])
			if err != nil {
				return err
			}
			action := a.coord.Stake
			if !lock {
				action = a.coord.Unstake
			}
			addr := a.resolveWallet(args[0])
			if err := action(ctx, addr, amount); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success(fmt.Sprintf("%s %s for %s", verb, amount, addr)))
			return nil
		}),
	}
}

func newPurchaseCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "purchase <wallet> <usd>",
		Short: "Purchase JUL for a registered wallet with a USD amount",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			usd, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return &models.ValidationError{Field: "usdAmount", Reason: "not a number: " + args[1]}
			}
			acquired, err := a.coord.Purchase(ctx, a.resolveWallet(args[0]), usd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success("Purchased "+acquired.String()))
			return nil
		}),
	}
}

func newForgeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "forge",
		Short: "Ask the ledger to forge a block from the mempool",
		Args:  cobra.NoArgs,
		RunE: withApp(v, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			if err := a.coord.ForgeBlock(ctx); err != nil {
				return err
			}
			chain := a.coord.View().Chain()
			if n := len(chain); n > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), success(fmt.Sprintf("Forged block %d with %d transactions", chain[n-1].Index, len(chain[n-1].Transactions))))
			}
			return nil
		}),
	}
}
