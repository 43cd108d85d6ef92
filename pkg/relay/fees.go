package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Estimator answers the two pre-flight questions: what does the
// cross-chain message cost, and can the account pay for gas on each
// chain it touches.
type Estimator struct {
	chains Registry
}

func NewEstimator(chains Registry) *Estimator {
	return &Estimator{chains: chains}
}

// MessageFee queries the messaging contract fee for the (from, to) pair.
func (e *Estimator) MessageFee(ctx context.Context, from, to types.ChainID, needsRollback bool) (*big.Int, error) {
	client, err := e.chains.Get(from)
	if err != nil {
		return nil, err
	}
	fee, err := client.MessageFee(ctx, to, needsRollback)
	if err != nil {
		return nil, fmt.Errorf("failed to query message fee %s -> %s: %w", from, to, err)
	}
	return fee, nil
}

// CheckNativeBalance verifies the account holds at least need native
// units on chain. The shortfall is carried in the error.
func (e *Estimator) CheckNativeBalance(ctx context.Context, chain types.ChainID, account string, need *big.Int) error {
	client, err := e.chains.Get(chain)
	if err != nil {
		return err
	}
	balance, err := client.NativeBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to query native balance on %s: %w", chain, err)
	}
	if balance.Cmp(need) < 0 {
		shortfall := new(big.Int).Sub(need, balance)
		return fmt.Errorf("%w: short %s on %s", types.ErrInsufficientGas, shortfall.String(), chain)
	}
	return nil
}
