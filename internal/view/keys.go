package view

import "fmt"

// Kind names a refreshable read model.
type Kind string

const (
	KindChain         Kind = "chain"
	KindMempool       Kind = "mempool"
	KindValidators    Kind = "validators"
	KindCommunityFund Kind = "communityFund"
	KindBalance       Kind = "balance"
)

// Key identifies one refreshable resource. Address is set only for balances.
type Key struct {
	Kind    Kind
	Address string
}

var (
	Chain         = Key{Kind: KindChain}
	Mempool       = Key{Kind: KindMempool}
	Validators    = Key{Kind: KindValidators}
	CommunityFund = Key{Kind: KindCommunityFund}
)

// Balance is the key of address's balance.
func Balance(address string) Key {
	return Key{Kind: KindBalance, Address: address}
}

func (k Key) String() string {
	if k.Kind == KindBalance {
		return fmt.Sprintf("balance[%s]", k.Address)
	}
	return string(k.Kind)
}

// ParseKind maps a configured kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindChain, KindMempool, KindValidators, KindCommunityFund, KindBalance:
		return k, nil
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}
