package relay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Gate checks and raises a spender allowance ahead of submission. The
// approval state is always derived from a live allowance query, never
// cached: concurrent approvals may change it under us.
type Gate struct {
	chains Registry

	// Receipt poll policy, defaulted from the package constants.
	PollInterval time.Duration
	MaxAttempts  uint
}

func NewGate(chains Registry) *Gate {
	return &Gate{
		chains:       chains,
		PollInterval: ReceiptPollInterval,
		MaxAttempts:  ReceiptPollAttempts,
	}
}

// Check derives the current approval state for (token, spender, owner).
func (g *Gate) Check(ctx context.Context, chain types.ChainID, token, owner, spender string, required *big.Int) (types.ApprovalState, error) {
	client, err := g.chains.Get(chain)
	if err != nil {
		return types.NotApproved, err
	}
	allowance, err := client.Allowance(ctx, token, owner, spender)
	if err != nil {
		return types.NotApproved, fmt.Errorf("failed to query allowance: %w", err)
	}
	if allowance.Cmp(required) >= 0 {
		return types.Approved, nil
	}
	return types.NotApproved, nil
}

// Approve submits an allowance increase, polls for its receipt with a
// bounded constant backoff, then re-derives the state from a fresh
// allowance query. The approval transaction itself still has to be
// mined: its receipt is not available on the first query. A rejection,
// an exhausted receipt poll or a reverted transaction leaves the state
// at NotApproved and is surfaced to the caller.
func (g *Gate) Approve(ctx context.Context, chain types.ChainID, token, owner, spender string, required *big.Int) (types.ApprovalState, error) {
	state, err := g.Check(ctx, chain, token, owner, spender, required)
	if err != nil || state == types.Approved {
		return state, err
	}
	client, err := g.chains.Get(chain)
	if err != nil {
		return types.NotApproved, err
	}

	txHash, err := client.Approve(ctx, token, spender, required)
	if err != nil {
		return types.NotApproved, fmt.Errorf("approve transaction failed: %w", err)
	}
	log.Info().Str("chain", chain.String()).
		Str("token", token).
		Str("txHash", txHash).
		Msg("[Gate] [Approve] allowance increase submitted")

	operation := func() (*types.Receipt, error) {
		return client.TransactionReceipt(ctx, txHash)
	}
	receipt, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.PollInterval)),
		backoff.WithMaxTries(g.MaxAttempts),
		backoff.WithNotify(func(err error, d time.Duration) {
			log.Debug().Err(err).Dur("backoff", d).
				Str("txHash", txHash).
				Msg("[Gate] [Approve] receipt not yet available")
		}))
	if err != nil {
		return types.NotApproved, fmt.Errorf("approve receipt not found for %s: %w", txHash, err)
	}
	if !receipt.Success {
		return types.NotApproved, fmt.Errorf("approve transaction %s reverted", txHash)
	}
	return g.Check(ctx, chain, token, owner, spender, required)
}
