package relay

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/events"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// DestinationExecutor drives destination-side execution of executable
// transfers: automatically where the chain policy allows it, otherwise
// through the manual Confirm action.
type DestinationExecutor struct {
	chains  Registry
	store   *store.Store
	journal Journal
	bus     *events.EventBus
}

func NewDestinationExecutor(chains Registry, lifecycle *store.Store, journal Journal, bus *events.EventBus) *DestinationExecutor {
	return &DestinationExecutor{chains: chains, store: lifecycle, journal: journal, bus: bus}
}

// Start subscribes to executable notifications for every configured
// chain and auto-executes where the destination event asks for it.
func (e *DestinationExecutor) Start(ctx context.Context) {
	for id := range e.chains {
		receiver := e.bus.Subscribe(id)
		go func(chain types.ChainID) {
			for envelope := range receiver {
				if envelope.EventType != events.EVENT_TRANSFER_EXECUTABLE {
					continue
				}
				entry, err := e.store.Get(envelope.Sn)
				if err != nil || entry.Destination == nil {
					continue
				}
				if !entry.Destination.AutoExecute {
					log.Info().Uint64("sn", envelope.Sn).
						Str("chain", chain.String()).
						Msg("[DestinationExecutor] [Start] awaiting manual confirm")
					continue
				}
				if err := e.execute(ctx, entry); err != nil {
					log.Error().Err(err).Uint64("sn", envelope.Sn).
						Msg("[DestinationExecutor] [Start] auto execution failed")
				}
			}
		}(id)
	}
}

// Confirm is the user-facing action for transfers whose destination
// chain does not auto-execute.
func (e *DestinationExecutor) Confirm(ctx context.Context, sn uint64) error {
	entry, err := e.store.Get(sn)
	if err != nil {
		return err
	}
	if entry.Status != types.StatusExecutable || entry.Destination == nil {
		return fmt.Errorf("transfer %d is not executable (status %s)", sn, entry.Status)
	}
	return e.execute(ctx, entry)
}

func (e *DestinationExecutor) execute(ctx context.Context, entry types.LifecycleEntry) error {
	client, err := e.chains.Get(entry.Destination.DestinationChain)
	if err != nil {
		return err
	}
	txHash, err := client.ExecuteCall(ctx, entry.Destination.ReqID, entry.Destination.Payload)
	if err != nil {
		return fmt.Errorf("executeCall failed for sn %d: %w", entry.Sn, err)
	}
	log.Info().Uint64("sn", entry.Sn).
		Str("txHash", txHash).
		Str("chain", entry.Destination.DestinationChain.String()).
		Msg("[DestinationExecutor] [execute] destination execution submitted")

	receipt, err := backoff.Retry(ctx, func() (*types.Receipt, error) {
		return client.TransactionReceipt(ctx, txHash)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(ReceiptPollInterval)),
		backoff.WithMaxTries(ReceiptPollAttempts))
	if err != nil {
		return fmt.Errorf("%w: %s", types.ErrReceiptTimeout, txHash)
	}
	return e.settle(entry, receipt)
}

// settle maps the CallExecuted result code onto the lifecycle status:
// success, rollbackReady when the origin message carries a rollback, or
// terminal failed.
func (e *DestinationExecutor) settle(entry types.LifecycleEntry, receipt *types.Receipt) error {
	code := types.CodeFailure
	found := false
	for _, event := range receipt.Events {
		if event.Kind == types.EventCallExecuted && event.ReqID == entry.Destination.ReqID {
			code = event.Code
			found = true
			break
		}
	}
	if receipt.Success && found && code == types.CodeSuccess {
		e.updateStatus(entry.Sn, types.StatusSuccess)
		return nil
	}
	if entry.Origin.RollbackEligible {
		e.updateStatus(entry.Sn, types.StatusFailed)
		e.updateStatus(entry.Sn, types.StatusRollbackReady)
		return fmt.Errorf("%w: sn %d, rollback available", types.ErrDestinationExecutionFailed, entry.Sn)
	}
	e.updateStatus(entry.Sn, types.StatusFailed)
	return fmt.Errorf("%w: sn %d, no rollback message, contact support", types.ErrDestinationExecutionFailed, entry.Sn)
}

func (e *DestinationExecutor) updateStatus(sn uint64, status types.TransferStatus) {
	var err error
	switch status {
	case types.StatusSuccess:
		err = e.store.MarkSuccess(sn)
	case types.StatusFailed:
		err = e.store.MarkFailed(sn)
	case types.StatusRollbackReady:
		err = e.store.MarkRollbackReady(sn)
	}
	if err != nil {
		log.Warn().Err(err).Uint64("sn", sn).Msg("[DestinationExecutor] [updateStatus]")
		return
	}
	metrics.TransfersCompleted.WithLabelValues(status.String()).Inc()
	if e.journal != nil {
		if err := e.journal.UpdateStatus(sn, status); err != nil {
			log.Warn().Err(err).Uint64("sn", sn).Msg("[DestinationExecutor] [updateStatus] journal update failed")
		}
	}
}
