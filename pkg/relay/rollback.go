package relay

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// RollbackExecutor submits the compensating rollback transaction on the
// origin chain. Revert is always manual: it spends the user's gas, and
// repeated automatic attempts would be economically wasteful.
type RollbackExecutor struct {
	chains  Registry
	store   *store.Store
	journal Journal
}

func NewRollbackExecutor(chains Registry, lifecycle *store.Store, journal Journal) *RollbackExecutor {
	return &RollbackExecutor{chains: chains, store: lifecycle, journal: journal}
}

// Revert executes the origin chain's rollback for a rollbackReady
// transfer. Success returns the funds and marks the entry success;
// failure is fatal and requires manual support intervention.
func (r *RollbackExecutor) Revert(ctx context.Context, sn uint64) error {
	entry, err := r.store.Get(sn)
	if err != nil {
		return err
	}
	if entry.Status != types.StatusRollbackReady {
		return fmt.Errorf("transfer %d is not rollback-ready (status %s)", sn, entry.Status)
	}
	client, err := r.chains.Get(entry.Origin.OriginChain)
	if err != nil {
		return err
	}

	txHash, err := client.ExecuteRollback(ctx, sn)
	if err != nil {
		return fmt.Errorf("%w: sn %d: %v", types.ErrRollbackFailed, sn, err)
	}
	log.Info().Uint64("sn", sn).
		Str("txHash", txHash).
		Str("chain", entry.Origin.OriginChain.String()).
		Msg("[RollbackExecutor] [Revert] rollback submitted")

	receipt, err := backoff.Retry(ctx, func() (*types.Receipt, error) {
		return client.TransactionReceipt(ctx, txHash)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(ReceiptPollInterval)),
		backoff.WithMaxTries(ReceiptPollAttempts))
	if err != nil {
		return fmt.Errorf("%w: rollback receipt for sn %d not found", types.ErrRollbackFailed, sn)
	}
	if !receipt.Success {
		r.markFailed(sn)
		return fmt.Errorf("%w: rollback transaction %s reverted", types.ErrRollbackFailed, txHash)
	}

	if err := r.store.MarkSuccess(sn); err != nil {
		return err
	}
	metrics.TransfersCompleted.WithLabelValues("rolled_back").Inc()
	if r.journal != nil {
		if err := r.journal.UpdateStatus(sn, types.StatusSuccess); err != nil {
			log.Warn().Err(err).Uint64("sn", sn).Msg("[RollbackExecutor] [Revert] journal update failed")
		}
	}
	return nil
}

func (r *RollbackExecutor) markFailed(sn uint64) {
	if err := r.store.MarkFailed(sn); err != nil {
		log.Warn().Err(err).Uint64("sn", sn).Msg("[RollbackExecutor] [markFailed]")
		return
	}
	if r.journal != nil {
		if err := r.journal.UpdateStatus(sn, types.StatusFailed); err != nil {
			log.Warn().Err(err).Uint64("sn", sn).Msg("[RollbackExecutor] [markFailed] journal update failed")
		}
	}
}
