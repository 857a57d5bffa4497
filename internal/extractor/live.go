package extractor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sustena-platforms/julctl/internal/config"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/output"
)

// Follower archives every chain accepted into the view. Only the most recent
// chain is kept while a write is in progress, since it contains the older ones.
type Follower struct {
	outputHandler output.OutputHandler
	cfg           config.ArchiveConfig
	updates       chan []models.Block

	mu      sync.Mutex
	lastSeq uint64
}

func NewFollower(outputHandler output.OutputHandler, cfg config.ArchiveConfig) *Follower {
	return &Follower{
		outputHandler: outputHandler,
		cfg:           cfg,
		updates:       make(chan []models.Block, 1),
	}
}

// OnChain queues blocks for archiving without blocking. It is meant to be
// registered with the coordinator's OnChainAccepted. A chain with a sequence
// number not above the last one seen is ignored.
func (f *Follower) OnChain(seq uint64, blocks []models.Block) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq <= f.lastSeq {
		slog.Debug("Ignoring out-of-order chain", "seq", seq, "last", f.lastSeq)
		return
	}
	f.lastSeq = seq

	for {
		select {
		case f.updates <- blocks:
			return
		default:
		}
		// Drop the pending chain in favour of the newer one.
		select {
		case <-f.updates:
		default:
		}
	}
}

// Run archives queued chains until ctx is cancelled. A failed write is logged
// and retried with the next accepted chain.
func (f *Follower) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case blocks := <-f.updates:
			if err := archiveBlocks(ctx, blocks, f.outputHandler, f.cfg, false); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to archive chain", "length", len(blocks), "error", err)
			}
		}
	}
}
