// Package view holds the read-only projection of the latest accepted ledger
// snapshots consumed by the presentation layer.
package view

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/sustena-platforms/julctl/internal/models"
)

// Status is the loading state of a resource.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Resource is the latest accepted value of one read model with its status.
type Resource[T any] struct {
	Value     T         `json:"value"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Seq       uint64    `json:"seq"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *Resource[T]) accept(seq uint64, v T) bool {
	if seq <= r.Seq {
		return false
	}
	r.Value = v
	r.Seq = seq
	r.Status = StatusReady
	r.Error = ""
	r.UpdatedAt = time.Now()
	return true
}

func (r *Resource[T]) fail(msg string) {
	r.Status = StatusError
	r.Error = msg
}

func (r *Resource[T]) loading() {
	r.Status = StatusLoading
}

// Snapshot is a copy of the whole view.
type Snapshot struct {
	Chain         Resource[[]models.Block]           `json:"chain"`
	Mempool       Resource[[]models.Transaction]     `json:"mempool"`
	Validators    Resource[[]models.Validator]       `json:"validators"`
	CommunityFund Resource[models.CommunityFund]     `json:"communityFund"`
	Balances      map[string]Resource[models.Amount] `json:"balances"`
	LastError     string                             `json:"lastError,omitempty"`
	Version       uint64                             `json:"version"`
}

// State is safe for concurrent use. Only the coordinator writes to it.
type State struct {
	mu sync.RWMutex

	chain      Resource[[]models.Block]
	mempool    Resource[[]models.Transaction]
	validators Resource[[]models.Validator]
	fund       Resource[models.CommunityFund]
	balances   map[string]*Resource[models.Amount]

	// confirmed holds the IDs of transactions included in the displayed chain.
	confirmed mapset.Set
	lastError string
	version   uint64
	changed   chan struct{}
}

func New() *State {
	return &State{
		chain:      Resource[[]models.Block]{Status: StatusIdle},
		mempool:    Resource[[]models.Transaction]{Status: StatusIdle},
		validators: Resource[[]models.Validator]{Status: StatusIdle},
		fund:       Resource[models.CommunityFund]{Status: StatusIdle},
		balances:   make(map[string]*Resource[models.Amount]),
		confirmed:  mapset.NewThreadUnsafeSet(),
		changed:    make(chan struct{}),
	}
}

// Changed returns a channel closed on the next change of the view.
func (s *State) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// bump must be called with the write lock held.
func (s *State) bump() {
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *State) balance(address string) *Resource[models.Amount] {
	r, ok := s.balances[address]
	if !ok {
		r = &Resource[models.Amount]{Status: StatusIdle}
		s.balances[address] = r
	}
	return r
}

// SetLoading marks key as being refreshed.
func (s *State) SetLoading(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key.Kind {
	case KindChain:
		s.chain.loading()
	case KindMempool:
		s.mempool.loading()
	case KindValidators:
		s.validators.loading()
	case KindCommunityFund:
		s.fund.loading()
	case KindBalance:
		s.balance(key.Address).loading()
	}
	s.bump()
}

// SetFailed records a refresh failure for key. The last accepted value is kept.
func (s *State) SetFailed(key Key, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch key.Kind {
	case KindChain:
		s.chain.fail(msg)
	case KindMempool:
		s.mempool.fail(msg)
	case KindValidators:
		s.validators.fail(msg)
	case KindCommunityFund:
		s.fund.fail(msg)
	case KindBalance:
		s.balance(key.Address).fail(msg)
	}
	s.bump()
}

// AcceptChain replaces the displayed chain. A chain shorter than the displayed
// one, or an older sequence, is refused and the displayed chain kept.
func (s *State) AcceptChain(seq uint64, blocks []models.Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(blocks) < len(s.chain.Value) {
		slog.Warn("Refusing shorter chain", "displayed", len(s.chain.Value), "received", len(blocks), "seq", seq)
		if s.chain.Status == StatusLoading {
			s.chain.Status = StatusReady
		}
		return false
	}
	if !s.chain.accept(seq, blocks) {
		return false
	}
	confirmed := mapset.NewThreadUnsafeSet()
	for _, id := range models.ConfirmedIDs(blocks) {
		confirmed.Add(id)
	}
	s.confirmed = confirmed
	s.bump()
	return true
}

func (s *State) AcceptMempool(seq uint64, txs []models.Transaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mempool.accept(seq, txs) {
		return false
	}
	s.bump()
	return true
}

func (s *State) AcceptValidators(seq uint64, vs []models.Validator) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.validators.accept(seq, vs) {
		return false
	}
	s.bump()
	return true
}

func (s *State) AcceptCommunityFund(seq uint64, f models.CommunityFund) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fund.accept(seq, f) {
		return false
	}
	s.bump()
	return true
}

func (s *State) AcceptBalance(seq uint64, address string, amount models.Amount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.balance(address).accept(seq, amount) {
		return false
	}
	s.bump()
	return true
}

// SetActionError records the user-visible message of a failed action.
func (s *State) SetActionError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = msg
	s.bump()
}

// ClearActionError forgets the last action failure.
func (s *State) ClearActionError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastError == "" {
		return
	}
	s.lastError = ""
	s.bump()
}

// Chain returns the displayed chain.
func (s *State) Chain() []models.Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chain.Value)
}

// Mempool returns the pending transactions not already confirmed in the
// displayed chain.
func (s *State) Mempool() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingLocked()
}

func (s *State) pendingLocked() []models.Transaction {
	out := make([]models.Transaction, 0, len(s.mempool.Value))
	for _, tx := range s.mempool.Value {
		if tx.ID != "" && s.confirmed.Contains(tx.ID) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (s *State) Validators() []models.Validator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.validators.Value)
}

func (s *State) CommunityFund() models.CommunityFund {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fund.Value
}

// Balance returns the displayed balance of address; ok is false if none was
// ever accepted.
func (s *State) Balance(address string) (amount models.Amount, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, found := s.balances[address]
	if !found || r.Seq == 0 {
		return 0, false
	}
	return r.Value, true
}

// Status returns the status of key.
func (s *State) Status(key Key) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch key.Kind {
	case KindChain:
		return s.chain.Status
	case KindMempool:
		return s.mempool.Status
	case KindValidators:
		return s.validators.Status
	case KindCommunityFund:
		return s.fund.Status
	case KindBalance:
		if r, ok := s.balances[key.Address]; ok {
			return r.Status
		}
	}
	return StatusIdle
}

// LastError returns the message of the last failed action.
func (s *State) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Snapshot copies the whole view.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Chain:         s.chain,
		Mempool:       s.mempool,
		Validators:    s.validators,
		CommunityFund: s.fund,
		Balances:      make(map[string]Resource[models.Amount], len(s.balances)),
		LastError:     s.lastError,
		Version:       s.version,
	}
	snap.Chain.Value = slices.Clone(s.chain.Value)
	snap.Mempool.Value = s.pendingLocked()
	snap.Validators.Value = slices.Clone(s.validators.Value)
	for addr, r := range s.balances {
		snap.Balances[addr] = *r
	}
	return snap
}
