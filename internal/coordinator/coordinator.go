// Package coordinator schedules ledger refreshes and user actions and is the
// only writer of the view.
//
// Every refreshable resource has its own sequence counter and at most one
// ledger call in flight. A plain Refresh joins the call in flight for a key.
// RefreshAfter, used for the dependents of an action, must observe state newer
// than the action, so while a call is in flight it queues a single follow-up
// call that every later RefreshAfter joins. The follow-up starts when the
// current call ends. A result is accepted only when its sequence number is
// newer than the last accepted one.
package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sustena-platforms/julctl/internal/metrics"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/view"
)

// ErrClosed is returned by refreshes requested after Close.
var ErrClosed = errors.New("coordinator closed")

const DefaultPollInterval = 5 * time.Second

// Ledger is the remote API used by the coordinator.
type Ledger interface {
	CreateWallet(ctx context.Context) (string, error)
	GetBalance(ctx context.Context, address string) (models.Amount, error)
	GetChain(ctx context.Context) ([]models.Block, error)
	GetMempool(ctx context.Context) ([]models.Transaction, error)
	GetValidators(ctx context.Context) ([]models.Validator, error)
	GetCommunityFund(ctx context.Context) (models.CommunityFund, error)
	SendTransaction(ctx context.Context, from, to string, amount, fee models.Amount) (models.Transaction, error)
	Stake(ctx context.Context, address string, amount models.Amount) error
	Unstake(ctx context.Context, address string, amount models.Amount) error
	Purchase(ctx context.Context, address string, fiatAmount float64) (models.Amount, error)
	ForgeBlock(ctx context.Context) error
}

// Wallets is the registry of locally known wallet addresses.
type Wallets interface {
	Add(ctx context.Context, address string) (bool, error)
	IsKnown(address string) bool
	List() []string
}

// Options configures a Coordinator.
type Options struct {
	// PollInterval is the period of the background refresh; DefaultPollInterval if zero.
	PollInterval time.Duration
	// PollKinds are refreshed on every tick in addition to the mempool.
	// KindBalance polls every known wallet.
	PollKinds []view.Kind
	// FundUSD is the fiat amount CreateAndFund purchases when none is given.
	FundUSD float64
	Metrics *metrics.Metrics
}

type flight struct {
	seq  uint64
	ctx  context.Context
	done chan struct{}
	err  error
}

// tracker is the freshness bookkeeping of one resource key. next is only set
// while current is.
type tracker struct {
	nextSeq     uint64
	acceptedSeq uint64
	current     *flight
	next        *flight
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	ledger  Ledger
	wallets Wallets
	view    *view.State
	metrics *metrics.Metrics
	opts    Options

	mu       sync.Mutex
	trackers map[view.Key]*tracker
	hooks    []ChainHook
	closed   bool
	cancel   context.CancelFunc
	loopDone chan struct{}
}

func New(ledger Ledger, wallets Wallets, state *view.State, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	return &Coordinator{
		ledger:   ledger,
		wallets:  wallets,
		view:     state,
		metrics:  opts.Metrics,
		opts:     opts,
		trackers: make(map[view.Key]*tracker),
	}
}

// View returns the state written by the coordinator.
func (c *Coordinator) View() *view.State { return c.view }

// ChainHook receives a chain accepted into the view with its sequence number.
// Calls are made in increasing seq order.
type ChainHook func(seq uint64, blocks []models.Block)

// OnChainAccepted registers fn to be called with every chain accepted into the
// view. fn runs on the refreshing goroutine and must not block.
func (c *Coordinator) OnChainAccepted(fn ChainHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

func (c *Coordinator) trackerLocked(key view.Key) *tracker {
	t, ok := c.trackers[key]
	if !ok {
		t = &tracker{}
		c.trackers[key] = t
	}
	return t
}

// Refresh fetches key, joining the call already in flight for it if any, and
// waits for the outcome.
func (c *Coordinator) Refresh(ctx context.Context, key view.Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if f := c.trackerLocked(key).current; f != nil {
		c.mu.Unlock()
		c.metrics.RefreshRequested(string(key.Kind), metrics.Coalesced)
		slog.Debug("Joining in-flight refresh", "resource", key, "seq", f.seq)
		return wait(ctx, f)
	}
	f := c.issueLocked(ctx, key)
	c.mu.Unlock()
	return wait(ctx, f)
}

// RefreshAfter waits for a call for key issued after it was invoked. With a
// call in flight it joins the queued follow-up call, creating it if needed.
func (c *Coordinator) RefreshAfter(ctx context.Context, key view.Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	var f *flight
	t := c.trackerLocked(key)
	switch {
	case t.current == nil:
		f = c.issueLocked(ctx, key)
	case t.next != nil:
		f = t.next
		c.metrics.RefreshRequested(string(key.Kind), metrics.Coalesced)
	default:
		t.nextSeq++
		f = newFlight(ctx, t.nextSeq)
		t.next = f
		c.metrics.RefreshRequested(string(key.Kind), metrics.Queued)
		slog.Debug("Queued follow-up refresh", "resource", key, "seq", f.seq, "behind", t.current.seq)
	}
	c.mu.Unlock()
	return wait(ctx, f)
}

// RefreshAll refreshes every resource and the balance of every known wallet
// concurrently and returns the first failure.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	keys := []view.Key{view.Chain, view.Mempool, view.Validators, view.CommunityFund}
	for _, addr := range c.wallets.List() {
		keys = append(keys, view.Balance(addr))
	}
	return c.RefreshMany(ctx, keys...)
}

// RefreshMany refreshes keys concurrently and returns the first failure.
func (c *Coordinator) RefreshMany(ctx context.Context, keys ...view.Key) error {
	return c.refreshKeys(ctx, keys, c.Refresh)
}

func (c *Coordinator) refreshKeys(ctx context.Context, keys []view.Key, refresh func(context.Context, view.Key) error) error {
	var g errgroup.Group
	for _, key := range keys {
		g.Go(func() error {
			return refresh(ctx, key)
		})
	}
	return g.Wait()
}

// newFlight returns a call running on a context detached from ctx's
// cancellation so that teardown never aborts it halfway.
func newFlight(ctx context.Context, seq uint64) *flight {
	return &flight{seq: seq, ctx: context.WithoutCancel(ctx), done: make(chan struct{})}
}

// issueLocked starts a new network call for key, which must have none in flight.
func (c *Coordinator) issueLocked(ctx context.Context, key view.Key) *flight {
	t := c.trackerLocked(key)
	t.nextSeq++
	f := newFlight(ctx, t.nextSeq)
	c.startLocked(key, t, f)
	return f
}

func (c *Coordinator) startLocked(key view.Key, t *tracker, f *flight) {
	t.current = f
	c.metrics.RefreshRequested(string(key.Kind), metrics.Issued)
	c.metrics.InFlight(string(key.Kind), 1)
	c.view.SetLoading(key)
	go c.run(key, f)
}

func wait(ctx context.Context, f *flight) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) run(key view.Key, f *flight) {
	defer close(f.done)
	defer c.finish(key, f)

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	var apply func(uint64, []ChainHook) bool
	err := ErrClosed
	if !closed {
		apply, err = c.fetch(f.ctx, key)
	}
	f.err = err

	c.mu.Lock()
	t := c.trackers[key]
	newest := f.seq == t.nextSeq
	closed = c.closed
	fresh := err == nil && !closed && f.seq > t.acceptedSeq
	if fresh {
		t.acceptedSeq = f.seq
	}
	hooks := c.hooks
	c.mu.Unlock()

	resource := string(key.Kind)
	switch {
	case err != nil:
		c.metrics.RefreshResult(resource, metrics.Failed)
		slog.Warn("Refresh failed", "resource", key, "seq", f.seq, "error", err)
		if newest && !closed {
			c.view.SetFailed(key, models.UserMessage(err))
		}
	case !fresh:
		c.metrics.RefreshResult(resource, metrics.Discarded)
		slog.Debug("Discarding stale refresh result", "resource", key, "seq", f.seq, "closed", closed)
	case !apply(f.seq, hooks):
		c.metrics.RefreshResult(resource, metrics.Discarded)
	default:
		c.metrics.RefreshResult(resource, metrics.Accepted)
	}
}

// finish retires f, whose result has been applied, and starts the follow-up
// call queued behind it. After Close the follow-up fails with ErrClosed.
func (c *Coordinator) finish(key view.Key, f *flight) {
	c.metrics.InFlight(string(key.Kind), -1)

	c.mu.Lock()
	t := c.trackers[key]
	if t.current == f {
		t.current = nil
	}
	next := t.next
	t.next = nil
	if next != nil && !c.closed {
		c.startLocked(key, t, next)
		next = nil
	}
	c.mu.Unlock()

	if next != nil {
		next.err = ErrClosed
		close(next.done)
	}
}

// fetch performs the network call for key and returns the function applying
// its result to the view.
func (c *Coordinator) fetch(ctx context.Context, key view.Key) (func(seq uint64, hooks []ChainHook) bool, error) {
	switch key.Kind {
	case view.KindChain:
		blocks, err := c.ledger.GetChain(ctx)
		if err != nil {
			return nil, err
		}
		return func(seq uint64, hooks []ChainHook) bool {
			if !c.view.AcceptChain(seq, blocks) {
				return false
			}
			for _, fn := range hooks {
				fn(seq, blocks)
			}
			return true
		}, nil
	case view.KindMempool:
		txs, err := c.ledger.GetMempool(ctx)
		if err != nil {
			return nil, err
		}
		return func(seq uint64, _ []ChainHook) bool { return c.view.AcceptMempool(seq, txs) }, nil
	case view.KindValidators:
		vs, err := c.ledger.GetValidators(ctx)
		if err != nil {
			return nil, err
		}
		return func(seq uint64, _ []ChainHook) bool { return c.view.AcceptValidators(seq, vs) }, nil
	case view.KindCommunityFund:
		fund, err := c.ledger.GetCommunityFund(ctx)
		if err != nil {
			return nil, err
		}
		return func(seq uint64, _ []ChainHook) bool { return c.view.AcceptCommunityFund(seq, fund) }, nil
	case view.KindBalance:
		bal, err := c.ledger.GetBalance(ctx, key.Address)
		if err != nil {
			return nil, err
		}
		return func(seq uint64, _ []ChainHook) bool { return c.view.AcceptBalance(seq, key.Address, bal) }, nil
	}
	return nil, &models.ValidationError{Field: "resource", Reason: "unknown resource " + key.String()}
}

// Start launches the periodic refresh. It is a no-op if already started or
// closed.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.cancel != nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.loopDone = make(chan struct{})
	slog.Info("Starting periodic refresh", "interval", c.opts.PollInterval, "kinds", c.opts.PollKinds)
	go c.poll(ctx, c.loopDone)
}

func (c *Coordinator) poll(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.refreshKeys(ctx, c.pollKeys(), c.Refresh); err != nil && ctx.Err() == nil {
				slog.Debug("Periodic refresh incomplete", "error", err)
			}
		}
	}
}

func (c *Coordinator) pollKeys() []view.Key {
	keys := []view.Key{view.Mempool}
	for _, kind := range c.opts.PollKinds {
		switch kind {
		case view.KindMempool:
		case view.KindBalance:
			for _, addr := range c.wallets.List() {
				keys = append(keys, view.Balance(addr))
			}
		default:
			keys = append(keys, view.Key{Kind: kind})
		}
	}
	return keys
}

// Close stops the periodic refresh and waits for it to exit. Calls still in
// flight complete on their own; their results are discarded and queued
// follow-up calls are never issued.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done := c.cancel, c.loopDone
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	slog.Debug("Coordinator closed")
	return nil
}
