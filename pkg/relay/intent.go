package relay

import (
	"fmt"
	"math/big"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// IntentParams is the user-facing input for one transfer.
type IntentParams struct {
	OriginChain       types.ChainID
	DestinationChain  types.ChainID
	Account           string
	Recipient         string
	InputToken        string
	OutputToken       string
	InputAmount       *big.Int
	Fee               *big.Int
	SlippageTolerance uint
	Data              []byte
	OnComplete        func(status types.TransferStatus)
}

// BuildIntent validates params and freezes them into an immutable
// TransactionIntent. Classification: same origin and destination chain
// is a same-chain swap; cross-chain with the same asset is a bridge;
// anything else is a cross-chain swap.
func BuildIntent(params IntentParams) (*types.TransactionIntent, error) {
	if params.OriginChain == "" || params.DestinationChain == "" {
		return nil, fmt.Errorf("origin and destination chain are required")
	}
	if params.Account == "" {
		return nil, fmt.Errorf("account is required")
	}
	if params.Recipient == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	if params.InputAmount == nil || params.InputAmount.Sign() <= 0 {
		return nil, fmt.Errorf("input amount must be positive")
	}
	if params.SlippageTolerance > 10000 {
		return nil, fmt.Errorf("slippage tolerance %d exceeds 10000 bps", params.SlippageTolerance)
	}

	txType := classify(params)
	fee := params.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}
	intent := &types.TransactionIntent{
		Type:              txType,
		OriginChain:       params.OriginChain,
		DestinationChain:  params.DestinationChain,
		Account:           params.Account,
		Recipient:         params.Recipient,
		InputToken:        params.InputToken,
		InputAmount:       new(big.Int).Set(params.InputAmount),
		Fee:               new(big.Int).Set(fee),
		SlippageTolerance: params.SlippageTolerance,
		NeedsRollback:     txType != types.SameChainSwap,
		Data:              append([]byte(nil), params.Data...),
		OnComplete:        params.OnComplete,
	}
	return intent, nil
}

func classify(params IntentParams) types.TransactionType {
	if params.OriginChain == params.DestinationChain {
		return types.SameChainSwap
	}
	if params.OutputToken == "" || params.OutputToken == params.InputToken {
		return types.Bridge
	}
	return types.CrossChainSwap
}

// CreditedAmount is the amount delivered on the destination chain: the
// input amount minus the messaging fee, deducted exactly once.
func CreditedAmount(intent *types.TransactionIntent) *big.Int {
	return new(big.Int).Sub(intent.InputAmount, intent.Fee)
}
