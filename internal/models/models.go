package models

import "fmt"

// TxStatus is the inclusion state of a transaction.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
)

// Wallet represents a wallet known to this client.
type Wallet struct {
	Address string `json:"address"`
	Alias   string `json:"alias,omitempty"`
}

// Label returns the alias when set, otherwise the address.
func (w Wallet) Label() string {
	if w.Alias != "" {
		return w.Alias
	}
	return w.Address
}

// Block represents a blockchain block.
type Block struct {
	Index        uint64        `json:"index"`
	Hash         string        `json:"hash"`
	Timestamp    int64         `json:"timestamp"`
	Validator    string        `json:"validatorAddress"`
	Transactions []Transaction `json:"transactions"`
}

// Transaction represents a blockchain transaction.
type Transaction struct {
	ID     string   `json:"id"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Amount Amount   `json:"amount"`
	Fee    Amount   `json:"fee"`
	Status TxStatus `json:"status"`
}

// Validator is an address with tokens staked.
type Validator struct {
	Address string `json:"address"`
	Stake   Amount `json:"stake"`
}

// CommunityFund is the shared pool accumulating transaction fees.
type CommunityFund struct {
	Balance Amount `json:"balance"`
}

// ValidateChain checks that block indices start at 0 and increase by one.
func ValidateChain(blocks []Block) error {
	for i, b := range blocks {
		if b.Index != uint64(i) {
			return fmt.Errorf("block at position %d has index %d: %w", i, b.Index, ErrMalformedResponse)
		}
		if b.Hash == "" {
			return fmt.Errorf("block %d has no hash: %w", b.Index, ErrMalformedResponse)
		}
	}
	return nil
}

// ConfirmedIDs returns the IDs of every transaction included in blocks.
func ConfirmedIDs(blocks []Block) []string {
	var ids []string
	for _, b := range blocks {
		for _, tx := range b.Transactions {
			if tx.ID != "" {
				ids = append(ids, tx.ID)
			}
		}
	}
	return ids
}
