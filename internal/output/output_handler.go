package output

import (
	"context"

	"github.com/sustena-platforms/julctl/internal/models"
)

type OutputHandler interface {
	// WriteBlockWithTransactions writes a block and the transactions it confirms.
	// Writing a block that is already stored is a no-op.
	WriteBlockWithTransactions(ctx context.Context, block *models.Block) error

	// GetLatestBlock returns the block with the highest index, or nil if none is stored.
	GetLatestBlock(ctx context.Context) (*models.Block, error)

	// GetEarliestBlock returns the block with the lowest index, or nil if none is stored.
	GetEarliestBlock(ctx context.Context) (*models.Block, error)

	// GetMissingBlockIds returns the indices absent between genesis and the latest stored block.
	GetMissingBlockIds(ctx context.Context) ([]uint64, error)

	// Close closes the output handler.
	Close() error
}
