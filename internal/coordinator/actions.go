package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/view"
)

// Action names, as recorded in metrics and logs.
const (
	ActionCreateWallet    = "createWallet"
	ActionSendTransaction = "sendTransaction"
	ActionStake           = "stake"
	ActionUnstake         = "unstake"
	ActionPurchase        = "purchase"
	ActionForgeBlock      = "forgeBlock"
)

// CreateWallet creates a wallet on the ledger and registers its address.
func (c *Coordinator) CreateWallet(ctx context.Context) (string, error) {
	address, err := c.ledger.CreateWallet(ctx)
	if err != nil {
		return "", c.fail(ActionCreateWallet, err)
	}
	if _, err := c.wallets.Add(ctx, address); err != nil {
		return "", c.fail(ActionCreateWallet, fmt.Errorf("failed to register wallet %s: %w", address, err))
	}
	c.succeed(ActionCreateWallet, "address", address)
	return address, nil
}

// CreateAndFund creates a wallet and purchases tokens for it with usdAmount,
// or with the configured fund amount when usdAmount is zero. The wallet stays
// registered if the purchase fails.
func (c *Coordinator) CreateAndFund(ctx context.Context, usdAmount float64) (string, models.Amount, error) {
	if usdAmount == 0 {
		usdAmount = c.opts.FundUSD
	}
	if err := validateFiat(usdAmount); err != nil {
		return "", 0, c.fail(ActionCreateWallet, err)
	}
	address, err := c.CreateWallet(ctx)
	if err != nil {
		return "", 0, err
	}
	acquired, err := c.Purchase(ctx, address, usdAmount)
	if err != nil {
		return address, 0, err
	}
	return address, acquired, nil
}

// SendTransaction transfers amount plus fee from a known wallet, then
// refreshes the chain, the mempool and the sender's balance.
func (c *Coordinator) SendTransaction(ctx context.Context, from, to string, amount, fee models.Amount) (models.Transaction, error) {
	if err := c.validateWallet("from", from); err != nil {
		return models.Transaction{}, c.fail(ActionSendTransaction, err)
	}
	if strings.TrimSpace(to) == "" {
		return models.Transaction{}, c.fail(ActionSendTransaction, &models.ValidationError{Field: "to", Reason: "recipient is required"})
	}
	if err := validateAmount("amount", amount); err != nil {
		return models.Transaction{}, c.fail(ActionSendTransaction, err)
	}

	tx, err := c.ledger.SendTransaction(ctx, from, to, amount, fee)
	if err != nil {
		return models.Transaction{}, c.fail(ActionSendTransaction, err)
	}
	c.succeed(ActionSendTransaction, "from", from, "to", to, "amount", amount, "fee", fee, "id", tx.ID)
	c.refreshDependents(ctx, ActionSendTransaction, view.Chain, view.Mempool, view.Balance(from))
	return tx, nil
}

// Stake locks amount of a known wallet's balance, then refreshes its balance
// and the validator set.
func (c *Coordinator) Stake(ctx context.Context, address string, amount models.Amount) error {
	return c.stake(ctx, ActionStake, c.ledger.Stake, address, amount)
}

// Unstake releases amount of a known wallet's stake, then refreshes its
// balance and the validator set.
func (c *Coordinator) Unstake(ctx context.Context, address string, amount models.Amount) error {
	return c.stake(ctx, ActionUnstake, c.ledger.Unstake, address, amount)
}

func (c *Coordinator) stake(ctx context.Context, action string, call func(context.Context, string, models.Amount) error, address string, amount models.Amount) error {
	if err := c.validateWallet("address", address); err != nil {
		return c.fail(action, err)
	}
	if err := validateAmount("amount", amount); err != nil {
		return c.fail(action, err)
	}
	if err := call(ctx, address, amount); err != nil {
		return c.fail(action, err)
	}
	c.succeed(action, "address", address, "amount", amount)
	c.refreshDependents(ctx, action, view.Balance(address), view.Validators)
	return nil
}

// Purchase buys tokens for a known wallet with usdAmount, then refreshes its
// balance.
func (c *Coordinator) Purchase(ctx context.Context, address string, usdAmount float64) (models.Amount, error) {
	if err := c.validateWallet("address", address); err != nil {
		return 0, c.fail(ActionPurchase, err)
	}
	if err := validateFiat(usdAmount); err != nil {
		return 0, c.fail(ActionPurchase, err)
	}
	acquired, err := c.ledger.Purchase(ctx, address, usdAmount)
	if err != nil {
		return 0, c.fail(ActionPurchase, err)
	}
	c.succeed(ActionPurchase, "address", address, "usd", usdAmount, "acquired", acquired)
	c.refreshDependents(ctx, ActionPurchase, view.Balance(address))
	return acquired, nil
}

// ForgeBlock asks the ledger to forge a block, then refreshes the chain and
// the mempool.
func (c *Coordinator) ForgeBlock(ctx context.Context) error {
	if err := c.ledger.ForgeBlock(ctx); err != nil {
		return c.fail(ActionForgeBlock, err)
	}
	c.succeed(ActionForgeBlock)
	c.refreshDependents(ctx, ActionForgeBlock, view.Chain, view.Mempool)
	return nil
}

// refreshDependents runs the refreshes an action invalidated concurrently.
// Their failures are recorded in the view by the refresh itself.
func (c *Coordinator) refreshDependents(ctx context.Context, action string, keys ...view.Key) {
	if err := c.refreshKeys(ctx, keys, c.RefreshAfter); err != nil {
		slog.Warn("Dependent refresh failed", "action", action, "error", err)
	}
}

func (c *Coordinator) fail(action string, err error) error {
	c.metrics.Action(action, err)
	c.view.SetActionError(models.UserMessage(err))
	slog.Error("Action failed", "action", action, "error", err)
	return err
}

func (c *Coordinator) succeed(action string, args ...any) {
	c.metrics.Action(action, nil)
	c.view.ClearActionError()
	slog.Info("Action succeeded", append([]any{"action", action}, args...)...)
}

func (c *Coordinator) validateWallet(field, address string) error {
	if strings.TrimSpace(address) == "" {
		return &models.ValidationError{Field: field, Reason: "wallet address is required"}
	}
	if !c.wallets.IsKnown(address) {
		return &models.ValidationError{Field: field, Reason: "wallet " + address + " is not registered"}
	}
	return nil
}

func validateAmount(field string, amount models.Amount) error {
	if amount == 0 {
		return &models.ValidationError{Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

func validateFiat(usd float64) error {
	if math.IsNaN(usd) || math.IsInf(usd, 0) || usd <= 0 {
		return &models.ValidationError{Field: "usdAmount", Reason: "must be a finite amount greater than zero"}
	}
	return nil
}
