package utils

import (
	"context"

	"github.com/sustena-platforms/julctl/internal/models"
)

// ChainReader fetches the full chain.
type ChainReader interface {
	GetChain(ctx context.Context) ([]models.Block, error)
}

// GetChainWithRetry fetches the chain, retrying network failures.
func GetChainWithRetry(ctx context.Context, r ChainReader, maxRetries uint) ([]models.Block, error) {
	return WithRetry(ctx, "getChain", maxRetries, r.GetChain)
}

// LatestBlockIndex returns the index of the chain tip; ok is false for an empty chain.
func LatestBlockIndex(blocks []models.Block) (index uint64, ok bool) {
	if len(blocks) == 0 {
		return 0, false
	}
	return blocks[len(blocks)-1].Index, true
}
