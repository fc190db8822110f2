package app

import (
	"context"
	"time"

	blockchainDomain "github.com/fd1az/dexprice/business/blockchain/domain"
	"github.com/fd1az/dexprice/internal/apperror"
	"github.com/fd1az/dexprice/internal/logger"
)

// BlockSource delivers new blocks.
type BlockSource interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	LatestBlock(ctx context.Context) (*blockchainDomain.Block, error)
}

// Watcher refreshes prices on every new block and forwards snapshots to the
// reporter. Blocks are handled one at a time.
type Watcher struct {
	blocks    BlockSource
	refresher *Refresher
	reporter  Reporter
	logger    logger.LoggerInterface
	done      chan struct{}
}

// NewWatcher creates a new Watcher.
func NewWatcher(blocks BlockSource, refresher *Refresher, reporter Reporter, log logger.LoggerInterface) *Watcher {
	return &Watcher{
		blocks:    blocks,
		refresher: refresher,
		reporter:  reporter,
		logger:    log,
		done:      make(chan struct{}),
	}
}

// Start runs an initial refresh and then follows new blocks until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "starting price watcher")

	if err := w.reporter.Start(ctx); err != nil {
		return err
	}

	// Subscribing connects the node clients the head lookup needs; blocks
	// arriving meanwhile wait in the feed.
	blocks, err := w.blocks.SubscribeBlocks(ctx)
	if err != nil {
		return err
	}

	// Price the current head before the first new block arrives.
	var number uint64
	timestamp := time.Now()
	if head, err := w.blocks.LatestBlock(ctx); err != nil {
		w.logger.Warn(ctx, "chain head unavailable, pricing latest state", "error", err)
	} else {
		number, timestamp = head.Number, head.Timestamp
	}

	if snapshot, err := w.refresher.Refresh(ctx, number, timestamp); err != nil {
		w.logger.Warn(ctx, "initial refresh failed", "error", err)
	} else {
		w.reporter.UpdatePrices(snapshot)
	}

	go w.run(ctx, blocks)

	return nil
}

// Done is closed once the block loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "watcher stopping", "reason", ctx.Err())
			return
		case block, ok := <-blocks:
			if !ok {
				w.logger.Info(ctx, "block feed closed")
				return
			}
			if block != nil {
				w.onNewBlock(ctx, block)
			}
		}
	}
}

func (w *Watcher) onNewBlock(ctx context.Context, block *blockchainDomain.Block) {
	w.logger.Debug(ctx, "processing block", "number", block.Number, "hash", block.Hash.Hex())

	start := time.Now()
	snapshot, err := w.refresher.Refresh(ctx, block.Number, block.Timestamp)
	if err != nil {
		w.logger.Error(ctx, "refresh failed", "block", block.Number, "code", apperror.GetCode(err), "error", err)
		// Only dependency failures mark the pool feed down.
		if apperror.IsUnavailable(err) {
			w.reporter.UpdateConnectionStatus("pools", false, time.Since(start))
		}
		return
	}

	w.reporter.UpdateConnectionStatus("pools", true, time.Since(start))
	w.reporter.UpdatePrices(snapshot)
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	w.logger.Info(context.Background(), "stopping price watcher")
	return w.reporter.Stop()
}
