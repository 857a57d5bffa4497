package client

import (
	"bytes"
	"encoding/json"

	"github.com/sustena-platforms/julctl/internal/models"
)

// Wire schemas. Required fields are pointers so that a missing field is told
// apart from a zero value.

type txPayload struct {
	ID     string         `json:"id"`
	From   string         `json:"from"`
	To     string         `json:"to"`
	Amount *models.Amount `json:"amount"`
	Fee    models.Amount  `json:"fee"`
}

func (p txPayload) toModel(op string, status models.TxStatus) (models.Transaction, error) {
	switch {
	case p.ID == "":
		return models.Transaction{}, malformed(op, "transaction without id")
	case p.From == "" || p.To == "":
		return models.Transaction{}, malformed(op, "transaction %s without sender or recipient", p.ID)
	case p.Amount == nil:
		return models.Transaction{}, malformed(op, "transaction %s without amount", p.ID)
	}
	return models.Transaction{
		ID:     p.ID,
		From:   p.From,
		To:     p.To,
		Amount: *p.Amount,
		Fee:    p.Fee,
		Status: status,
	}, nil
}

type blockPayload struct {
	Index            *uint64     `json:"index"`
	Hash             string      `json:"hash"`
	Timestamp        int64       `json:"timestamp"`
	ValidatorAddress string      `json:"validatorAddress"`
	Validator        string      `json:"validator"`
	Transactions     []txPayload `json:"transactions"`
}

func (p blockPayload) toModel(op string) (models.Block, error) {
	if p.Index == nil {
		return models.Block{}, malformed(op, "block without index")
	}
	b := models.Block{
		Index:     *p.Index,
		Hash:      p.Hash,
		Timestamp: p.Timestamp,
		Validator: p.ValidatorAddress,
	}
	if b.Validator == "" {
		b.Validator = p.Validator
	}
	b.Transactions = make([]models.Transaction, 0, len(p.Transactions))
	for _, tp := range p.Transactions {
		tx, err := tp.toModel(op, models.TxConfirmed)
		if err != nil {
			return models.Block{}, err
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return b, nil
}

type validatorPayload struct {
	Address string         `json:"address"`
	Stake   *models.Amount `json:"stake"`
}

type balancePayload struct {
	Balance *models.Amount `json:"balance"`
}

type walletPayload struct {
	Address string `json:"address"`
}

type purchasePayload struct {
	JULAmount *models.Amount `json:"julAmount"`
}

// sendAck is the acknowledgement some ledgers return instead of the transaction.
type sendAck struct {
	Message string `json:"message"`
}

type sendTransactionRequest struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Amount models.Amount `json:"amount"`
	Fee    models.Amount `json:"fee,omitempty"`
}

type stakeRequest struct {
	Address string        `json:"address"`
	Amount  models.Amount `json:"amount"`
}

type purchaseRequest struct {
	Wallet    string  `json:"wallet"`
	USDAmount float64 `json:"usdAmount"`
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return malformed(op, "decode %s response: %v", op, err)
	}
	return nil
}

// decodeValidators accepts a bare array or a {"validators": [...]} envelope.
func decodeValidators(op string, body []byte) ([]validatorPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, malformed(op, "empty body")
	}
	switch trimmed[0] {
	case '[':
		var list []validatorPayload
		if err := decode(op, trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var env struct {
			Validators *[]validatorPayload `json:"validators"`
		}
		if err := decode(op, trimmed, &env); err != nil {
			return nil, err
		}
		if env.Validators == nil {
			return nil, malformed(op, "object without validators field")
		}
		return *env.Validators, nil
	default:
		return nil, malformed(op, "unexpected validators payload")
	}
}
