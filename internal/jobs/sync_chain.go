package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solshare/pipeline/internal/domain"
	"github.com/solshare/pipeline/pkg/logger"
)

// SyncChainProcessor reconciles on-chain state with the store.
// Only transactions are written; profile and post syncs are logged.
type SyncChainProcessor struct {
	store    PostStore
	timeouts Timeouts
	logger   *slog.Logger
}

// NewSyncChainProcessor creates the sync-chain processor.
func NewSyncChainProcessor(store PostStore, opts ...ProcessorOption) *SyncChainProcessor {
	o := newProcessorOptions(QueueSyncChain, opts)
	return &SyncChainProcessor{
		store:    store,
		timeouts: o.timeouts,
		logger:   o.logger,
	}
}

// Process confirms transactions in the store. Profile and post syncs are
// only logged.
func (p *SyncChainProcessor) Process(ctx context.Context, job SyncChainPayload) Result {
	switch job.Type {
	case SyncTransaction:
		if job.Signature == "" {
			return Skipped("transaction sync requires signature")
		}
		return p.confirmTransaction(ctx, job.Signature)

	case SyncProfile:
		if job.Wallet == "" {
			return Skipped("profile sync requires wallet")
		}
		p.logger.InfoContext(ctx, "syncing profile from chain", logger.Wallet(job.Wallet))
		return Applied()

	case SyncPost:
		if job.PostID == "" {
			return Skipped("post sync requires postId")
		}
		p.logger.InfoContext(ctx, "syncing post from chain", logger.PostID(job.PostID))
		return Applied()

	default:
		return Skipped(fmt.Sprintf("unknown sync type %q", job.Type))
	}
}

// TODO: verify the signature against the chain before confirming.
func (p *SyncChainProcessor) confirmTransaction(ctx context.Context, signature string) Result {
	err := call(ctx, p.timeouts.Store, func(ctx context.Context) error {
		return p.store.UpdateTransactionStatus(ctx, signature, domain.TransactionConfirmed)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return Skipped("transaction not found")
	}
	if err != nil {
		return Transient(fmt.Errorf("confirm transaction %s: %w", signature, err))
	}

	p.logger.InfoContext(ctx, "transaction confirmed", slog.String("signature", signature))
	return Applied()
}
