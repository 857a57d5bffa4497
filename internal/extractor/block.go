// Package extractor copies the ledger chain into an output.OutputHandler.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sustena-platforms/julctl/internal/config"
	"github.com/sustena-platforms/julctl/internal/models"
	"github.com/sustena-platforms/julctl/internal/output"
	"github.com/sustena-platforms/julctl/internal/utils"
)

// Backfill fetches the chain and archives every block the output lacks,
// including gaps below the latest stored block.
func Backfill(ctx context.Context, chain utils.ChainReader, outputHandler output.OutputHandler, cfg config.ArchiveConfig, showProgress bool) error {
	blocks, err := utils.GetChainWithRetry(ctx, chain, cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("failed to get chain: %w", err)
	}
	return archiveBlocks(ctx, blocks, outputHandler, cfg, showProgress)
}

// archiveBlocks writes the blocks missing from the output: first the gaps
// below the latest stored block, then everything above it.
func archiveBlocks(ctx context.Context, blocks []models.Block, outputHandler output.OutputHandler, cfg config.ArchiveConfig, showProgress bool) error {
	tip, ok := utils.LatestBlockIndex(blocks)
	if !ok {
		slog.Debug("Chain is empty, nothing to archive")
		return nil
	}

	if err := processMissingBlocks(ctx, blocks, outputHandler); err != nil {
		return err
	}

	start := uint64(0)
	latest, err := outputHandler.GetLatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get latest archived block: %w", err)
	}
	if latest != nil {
		start = latest.Index + 1
	}
	if start > tip {
		return nil
	}

	if start == tip {
		slog.Info("Archiving block", "index", start)
	} else {
		slog.Info("Archiving blocks", "range", fmt.Sprintf("[%d, %d]", start, tip))
	}

	var bar *progressbar.ProgressBar
	if showProgress && start != tip {
		bar = progressbar.NewOptions64(
			int64(tip-start+1),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Archiving blocks..."),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	if err := processBlocks(ctx, blocks[start:], outputHandler, cfg, bar); err != nil {
		return fmt.Errorf("failed to archive blocks: %w", err)
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}
	return nil
}

// processMissingBlocks writes the blocks the output reports as missing.
func processMissingBlocks(ctx context.Context, blocks []models.Block, outputHandler output.OutputHandler) error {
	missingBlockIds, err := outputHandler.GetMissingBlockIds(ctx)
	if err != nil {
		return fmt.Errorf("failed to get missing block IDs: %w", err)
	}
	if len(missingBlockIds) == 0 {
		return nil
	}

	slog.Warn("Missing blocks detected", "count", len(missingBlockIds))
	for _, id := range missingBlockIds {
		if id >= uint64(len(blocks)) {
			slog.Warn("Missing block is beyond the fetched chain", "index", id, "length", len(blocks))
			continue
		}
		if err := outputHandler.WriteBlockWithTransactions(ctx, &blocks[id]); err != nil {
			return fmt.Errorf("failed to archive missing block %d: %w", id, err)
		}
	}
	return nil
}

// processBlocks writes blocks in parallel, at most cfg.MaxConcurrency at a time.
func processBlocks(ctx context.Context, blocks []models.Block, outputHandler output.OutputHandler, cfg config.ArchiveConfig, bar *progressbar.ProgressBar) error {
	concurrency := cfg.MaxConcurrency
	if concurrency == 0 {
		concurrency = 1
	}
	eg, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	for i := range blocks {
		if gctx.Err() != nil {
			slog.Info("Archiving cancelled")
			break
		}
		block := &blocks[i]
		sem <- struct{}{}

		eg.Go(func() error {
			defer func() { <-sem }()

			if err := outputHandler.WriteBlockWithTransactions(gctx, block); err != nil {
				if !errors.Is(err, context.Canceled) {
					slog.Error("Block archiving error", "index", block.Index, "error", err)
				}
				return fmt.Errorf("failed to archive block %d: %w", block.Index, err)
			}

			if bar != nil {
				if err := bar.Add(1); err != nil {
					slog.Warn("Failed to update progress bar", "error", err)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
