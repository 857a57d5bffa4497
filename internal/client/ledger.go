package client

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/sustena-platforms/julctl/internal/models"
)

// CreateWallet asks the ledger to create a wallet and returns its address.
func (c *LedgerClient) CreateWallet(ctx context.Context) (string, error) {
	const op = "createWallet"
	resp, err := c.do(ctx, request{op: op, method: http.MethodPost, path: "/createWallet"})
	if err != nil {
		return "", err
	}
	var w walletPayload
	if err := decode(op, resp.Body(), &w); err != nil {
		return "", err
	}
	address := strings.TrimSpace(w.Address)
	if address == "" {
		return "", malformed(op, "no address in response")
	}
	return address, nil
}

// GetBalance returns the balance of address in nano-units.
func (c *LedgerClient) GetBalance(ctx context.Context, address string) (models.Amount, error) {
	const op = "getBalance"
	resp, err := c.do(ctx, request{
		op:         op,
		method:     http.MethodGet,
		path:       "/getBalance/{address}",
		pathParams: map[string]string{"address": address},
	})
	if err != nil {
		return 0, err
	}
	var b balancePayload
	if err := decode(op, resp.Body(), &b); err != nil {
		return 0, err
	}
	if b.Balance == nil {
		return 0, malformed(op, "no balance in response")
	}
	return *b.Balance, nil
}

// GetChain returns the full chain, validated to be gapless from index 0.
func (c *LedgerClient) GetChain(ctx context.Context) ([]models.Block, error) {
	const op = "getChain"
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/blockchain"})
	if err != nil {
		return nil, err
	}
	var raw []blockPayload
	if err := decode(op, resp.Body(), &raw); err != nil {
		return nil, err
	}
	blocks := make([]models.Block, 0, len(raw))
	for _, bp := range raw {
		b, err := bp.toModel(op)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := models.ValidateChain(blocks); err != nil {
		return nil, &models.NetworkError{Op: op, Err: err}
	}
	return blocks, nil
}

// GetMempool returns the pending transactions. If the configured path is not
// found the alternate spelling is tried once and remembered on success.
func (c *LedgerClient) GetMempool(ctx context.Context) ([]models.Transaction, error) {
	const op = "getMempool"
	path := c.currentMempoolPath()
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path})
	var ne *models.NetworkError
	if errors.As(err, &ne) && ne.StatusCode == http.StatusNotFound {
		alt := alternateMempoolPath(path)
		resp, err = c.do(ctx, request{op: op, method: http.MethodGet, path: alt})
		if err == nil {
			c.setMempoolPath(alt)
		}
	}
	if err != nil {
		return nil, err
	}
	var raw []txPayload
	if err := decode(op, resp.Body(), &raw); err != nil {
		return nil, err
	}
	txs := make([]models.Transaction, 0, len(raw))
	for _, tp := range raw {
		tx, err := tp.toModel(op, models.TxPending)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetValidators returns the current validator set.
func (c *LedgerClient) GetValidators(ctx context.Context) ([]models.Validator, error) {
	const op = "getValidators"
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/validators"})
	if err != nil {
		return nil, err
	}
	raw, err := decodeValidators(op, resp.Body())
	if err != nil {
		return nil, err
	}
	out := make([]models.Validator, 0, len(raw))
	for _, vp := range raw {
		if vp.Address == "" || vp.Stake == nil {
			return nil, malformed(op, "validator without address or stake")
		}
		out = append(out, models.Validator{Address: vp.Address, Stake: *vp.Stake})
	}
	return out, nil
}

// GetCommunityFund returns the community fund balance.
func (c *LedgerClient) GetCommunityFund(ctx context.Context) (models.CommunityFund, error) {
	const op = "getCommunityFund"
	resp, err := c.do(ctx, request{op: op, method: http.MethodGet, path: "/getCommunityFund"})
	if err != nil {
		return models.CommunityFund{}, err
	}
	var b balancePayload
	if err := decode(op, resp.Body(), &b); err != nil {
		return models.CommunityFund{}, err
	}
	if b.Balance == nil {
		return models.CommunityFund{}, malformed(op, "no balance in response")
	}
	return models.CommunityFund{Balance: *b.Balance}, nil
}

// SendTransaction submits a transfer. The ledger answers with the pending
// transaction, or with a bare acknowledgement in which case the returned
// transaction carries no ID.
func (c *LedgerClient) SendTransaction(ctx context.Context, from, to string, amount, fee models.Amount) (models.Transaction, error) {
	const op = "sendTransaction"
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/sendTransaction",
		body:   sendTransactionRequest{From: from, To: to, Amount: amount, Fee: fee},
	})
	if err != nil {
		return models.Transaction{}, err
	}
	var tp txPayload
	if err := decode(op, resp.Body(), &tp); err != nil {
		return models.Transaction{}, err
	}
	if tp.ID == "" {
		var ack sendAck
		if err := decode(op, resp.Body(), &ack); err != nil || ack.Message == "" {
			return models.Transaction{}, malformed(op, "neither a transaction nor an acknowledgement")
		}
		return models.Transaction{From: from, To: to, Amount: amount, Fee: fee, Status: models.TxPending}, nil
	}
	return tp.toModel(op, models.TxPending)
}

// Stake locks amount of address's balance as validator stake.
func (c *LedgerClient) Stake(ctx context.Context, address string, amount models.Amount) error {
	_, err := c.do(ctx, request{
		op:     "stake",
		method: http.MethodPost,
		path:   "/stakeJUL",
		body:   stakeRequest{Address: address, Amount: amount},
	})
	return err
}

// Unstake releases amount of address's stake.
func (c *LedgerClient) Unstake(ctx context.Context, address string, amount models.Amount) error {
	_, err := c.do(ctx, request{
		op:     "unstake",
		method: http.MethodPost,
		path:   "/unstakeJUL",
		body:   stakeRequest{Address: address, Amount: amount},
	})
	return err
}

// Purchase buys tokens for address with a fiat amount in USD and returns the
// nano-units acquired.
func (c *LedgerClient) Purchase(ctx context.Context, address string, fiatAmount float64) (models.Amount, error) {
	const op = "purchase"
	if math.IsNaN(fiatAmount) || math.IsInf(fiatAmount, 0) {
		return 0, &models.ValidationError{Field: "usdAmount", Reason: "not a finite number"}
	}
	resp, err := c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/purchaseJUL",
		body:   purchaseRequest{Wallet: address, USDAmount: fiatAmount},
	})
	if err != nil {
		return 0, err
	}
	var p purchasePayload
	if err := decode(op, resp.Body(), &p); err != nil {
		return 0, err
	}
	if p.JULAmount == nil {
		return 0, malformed(op, "no julAmount in response")
	}
	return *p.JULAmount, nil
}

// ForgeBlock asks the ledger to forge a block from the mempool.
func (c *LedgerClient) ForgeBlock(ctx context.Context) error {
	_, err := c.do(ctx, request{op: "forgeBlock", method: http.MethodPost, path: "/forgeBlock"})
	return err
}
