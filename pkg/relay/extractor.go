package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Receipt polling bounds. The origin chains produce blocks well inside
// this budget; exhaustion means the transaction is stuck or dropped and
// the user is pointed at an explorer.
const (
	ReceiptPollInterval = time.Second
	ReceiptPollAttempts = 10
)

// DestinationWatcher opens the destination-side subscription for a
// freshly created origin event, and the origin-side outcome
// subscription for rollback-eligible ones. Implemented by
// listener.Coordinator.
type DestinationWatcher interface {
	Watch(ctx context.Context, origin types.OriginEvent) error
	WatchOrigin(ctx context.Context, origin types.OriginEvent) error
}

// Journal persists origin events for idempotent resume. Implemented by
// db.Adapter; nil-able for journal-less runs.
type Journal interface {
	SaveTransfer(entry types.LifecycleEntry) error
	UpdateStatus(sn uint64, status types.TransferStatus) error
}

// Extractor drives each submitted origin transaction through
// AWAITING_RECEIPT -> RECEIPT_FOUND -> (EVENT_FOUND | EVENT_ABSENT),
// creating the tracked transfer on a CallMessageSent match.
type Extractor struct {
	chains  Registry
	store   *store.Store
	journal Journal
	watcher DestinationWatcher

	// Receipt poll policy, defaulted from the package constants.
	PollInterval time.Duration
	MaxAttempts  uint
}

func NewExtractor(chains Registry, lifecycle *store.Store, journal Journal, watcher DestinationWatcher) *Extractor {
	return &Extractor{
		chains:       chains,
		store:        lifecycle,
		journal:      journal,
		watcher:      watcher,
		PollInterval: ReceiptPollInterval,
		MaxAttempts:  ReceiptPollAttempts,
	}
}

// WatchAsync runs WaitForOrigin in its own task. Errors are routed to
// the intent's completion callback; the store is never touched on
// failure.
func (x *Extractor) WatchAsync(ctx context.Context, intent *types.TransactionIntent, txHash string) {
	go func() {
		if _, err := x.WaitForOrigin(ctx, intent, txHash); err != nil {
			log.Error().Err(err).
				Str("chain", intent.OriginChain.String()).
				Str("txHash", txHash).
				Msg("[Extractor] [WatchAsync] origin watch failed")
			if intent.OnComplete != nil {
				intent.OnComplete(types.StatusFailed)
			}
		}
	}()
}

// WaitForOrigin polls for the receipt of txHash with a bounded constant
// backoff, scans it for the message-sent event and records the origin
// event in the store. Exhaustion of the budget yields ErrReceiptTimeout
// and no store write; a successful receipt without the event is
// ErrProtocolMismatch.
func (x *Extractor) WaitForOrigin(ctx context.Context, intent *types.TransactionIntent, txHash string) (*types.OriginEvent, error) {
	client, err := x.chains.Get(intent.OriginChain)
	if err != nil {
		return nil, err
	}

	operation := func() (*types.Receipt, error) {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		return receipt, nil
	}
	receipt, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(x.PollInterval)),
		backoff.WithMaxTries(x.MaxAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debug().Err(err).Dur("backoff", d).
				Str("txHash", txHash).
				Msg("[Extractor] [WaitForOrigin] receipt not yet available")
		}))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.ReceiptTimeouts.WithLabelValues(intent.OriginChain.String()).Inc()
		return nil, fmt.Errorf("%w: %s", types.ErrReceiptTimeout, txHash)
	}

	if !receipt.Success {
		return nil, fmt.Errorf("%w: origin transaction %s reverted", types.ErrSubmission, txHash)
	}
	var sent *types.ChainEvent
	for i := range receipt.Events {
		if receipt.Events[i].Kind == types.EventCallMessageSent {
			sent = &receipt.Events[i]
			break
		}
	}
	if sent == nil {
		// The transaction succeeded but emitted no cross-chain message.
		// Surfaced, not hidden: this is a bug condition.
		log.Error().Str("chain", intent.OriginChain.String()).
			Str("txHash", txHash).
			Msg("[Extractor] [WaitForOrigin] receipt carries no CallMessageSent log")
		return nil, fmt.Errorf("%w: tx %s", types.ErrProtocolMismatch, txHash)
	}

	destClient, err := x.chains.Get(intent.DestinationChain)
	if err != nil {
		return nil, err
	}
	origin := types.OriginEvent{
		Sn:                sent.Sn,
		OriginChain:       intent.OriginChain,
		DestinationChain:  intent.DestinationChain,
		TxHash:            txHash,
		RollbackEligible:  intent.NeedsRollback,
		AutoExecute:       destClient.AutoExecute(),
		CreatedAt:         time.Now().UTC(),
		DescriptionAction: intent.Type.String(),
		DescriptionAmount: intent.InputAmount.String(),
	}
	if err := x.store.CreatePending(origin); err != nil {
		return nil, fmt.Errorf("failed to create pending transfer: %w", err)
	}
	if intent.OnComplete != nil {
		x.store.RegisterOnComplete(origin.Sn, intent.OnComplete)
	}
	metrics.TransfersCreated.WithLabelValues(origin.OriginChain.String(), origin.DestinationChain.String()).Inc()
	if x.journal != nil {
		if err := x.journal.SaveTransfer(types.LifecycleEntry{Sn: origin.Sn, Origin: origin, Status: types.StatusPending}); err != nil {
			log.Warn().Err(err).Uint64("sn", origin.Sn).Msg("[Extractor] [WaitForOrigin] failed to journal transfer")
		}
	}
	if x.watcher != nil {
		if err := x.watcher.Watch(ctx, origin); err != nil {
			log.Error().Err(err).Uint64("sn", origin.Sn).Msg("[Extractor] [WaitForOrigin] failed to open destination watch")
		}
		if origin.RollbackEligible {
			if err := x.watcher.WatchOrigin(ctx, origin); err != nil {
				log.Error().Err(err).Uint64("sn", origin.Sn).Msg("[Extractor] [WaitForOrigin] failed to open origin watch")
			}
		}
	}
	return &origin, nil
}
