package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sustena-platforms/julctl/internal/models"
)

const (
	walletsKey = "wallets"
	aliasesKey = "aliases"
)

// Options configures a Registry.
type Options struct {
	// Namespace prefixes every persisted key.
	Namespace string
	// Strict makes Add fail on a duplicate address instead of ignoring it.
	Strict bool
}

// Registry is the durable, ordered list of wallet addresses known to this client.
// It is safe for concurrent use.
type Registry struct {
	store     Store
	namespace string
	strict    bool

	mu        sync.RWMutex
	addresses []string
	known     map[string]struct{}
	aliases   map[string]string
}

// Open loads the registry persisted in store under opts.Namespace.
func Open(ctx context.Context, store Store, opts Options) (*Registry, error) {
	if opts.Namespace == "" {
		opts.Namespace = "julctl"
	}
	r := &Registry{
		store:     store,
		namespace: opts.Namespace,
		strict:    opts.Strict,
		known:     make(map[string]struct{}),
		aliases:   make(map[string]string),
	}

	raw, found, err := store.Load(ctx, r.key(walletsKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	if found {
		var addrs []string
		if err := json.Unmarshal(raw, &addrs); err != nil {
			return nil, fmt.Errorf("failed to decode persisted wallets: %w", err)
		}
		for _, a := range addrs {
			if _, dup := r.known[a]; dup || a == "" {
				slog.Warn("Skipping invalid persisted wallet entry", "address", a)
				continue
			}
			r.known[a] = struct{}{}
			r.addresses = append(r.addresses, a)
		}
	}

	raw, found, err = store.Load(ctx, r.key(aliasesKey))
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	if found {
		if err := json.Unmarshal(raw, &r.aliases); err != nil {
			return nil, fmt.Errorf("failed to decode persisted aliases: %w", err)
		}
	}

	slog.Debug("Wallet registry loaded", "namespace", r.namespace, "wallets", len(r.addresses))
	return r, nil
}

func (r *Registry) key(name string) string {
	return r.namespace + "/" + name
}

// Add appends address if absent and persists the updated list. It reports
// whether the address was added. An empty or padded address, or a duplicate
// when the registry is strict, is a ValidationError.
func (r *Registry) Add(ctx context.Context, address string) (bool, error) {
	if strings.TrimSpace(address) == "" {
		return false, &models.ValidationError{Field: "address", Reason: "address is required"}
	}
	if strings.TrimSpace(address) != address {
		return false, &models.ValidationError{Field: "address", Reason: "address must not have surrounding whitespace"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[address]; ok {
		if r.strict {
			return false, &models.ValidationError{Field: "address", Reason: "wallet " + address + " is already registered"}
		}
		return false, nil
	}

	next := append(append(make([]string, 0, len(r.addresses)+1), r.addresses...), address)
	if err := r.persist(ctx, walletsKey, next); err != nil {
		return false, err
	}
	r.addresses = next
	r.known[address] = struct{}{}
	slog.Info("Wallet registered", "address", address, "wallets", len(next))
	return true, nil
}

// SetAlias labels a known wallet. An empty alias removes the label. An alias
// is unique and never equal to a registered address.
func (r *Registry) SetAlias(ctx context.Context, address, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.known[address]; !ok {
		return &models.ValidationError{Field: "address", Reason: "wallet " + address + " is not registered"}
	}
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if _, ok := r.known[alias]; ok {
			return &models.ValidationError{Field: "alias", Reason: alias + " is a registered wallet address"}
		}
		for addr, a := range r.aliases {
			if a == alias && addr != address {
				return &models.ValidationError{Field: "alias", Reason: alias + " is already the alias of " + addr}
			}
		}
	}
	next := make(map[string]string, len(r.aliases)+1)
	for k, v := range r.aliases {
		next[k] = v
	}
	if alias == "" {
		delete(next, address)
	} else {
		next[address] = alias
	}
	if err := r.persist(ctx, aliasesKey, next); err != nil {
		return err
	}
	r.aliases = next
	return nil
}

func (r *Registry) persist(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := r.store.Save(ctx, r.key(name), raw); err != nil {
		return fmt.Errorf("failed to persist %s: %w", name, err)
	}
	return nil
}

// List returns the known addresses in insertion order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.addresses...)
}

// Wallets returns the known wallets with their aliases, in insertion order.
func (r *Registry) Wallets() []models.Wallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Wallet, len(r.addresses))
	for i, a := range r.addresses {
		out[i] = models.Wallet{Address: a, Alias: r.aliases[a]}
	}
	return out
}

// IsKnown reports whether address is registered.
func (r *Registry) IsKnown(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[address]
	return ok
}

// Resolve maps an alias or an address to a registered address. Addresses win
// over aliases; among aliases loaded from an older store the earliest
// registered wallet wins.
func (r *Registry) Resolve(nameOrAddress string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.known[nameOrAddress]; ok {
		return nameOrAddress, true
	}
	if nameOrAddress == "" {
		return "", false
	}
	for _, addr := range r.addresses {
		if r.aliases[addr] == nameOrAddress {
			return addr, true
		}
	}
	return "", false
}

// Close releases the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}
