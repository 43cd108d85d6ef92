package relay

import (
	"context"
	"fmt"
	"math/big"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// ChainClient is the uniform surface the relay needs from one chain.
// The messaging contract behind it is consumed as an opaque RPC; the
// concrete implementations live in pkg/clients.
type ChainClient interface {
	ID() types.ChainID
	// AutoExecute reports the chain policy for destination execution.
	AutoExecute() bool

	MessageFee(ctx context.Context, to types.ChainID, needsRollback bool) (*big.Int, error)
	NativeBalance(ctx context.Context, account string) (*big.Int, error)

	Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error)
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)

	SendCallMessage(ctx context.Context, intent *types.TransactionIntent) (string, error)
	ExecuteCall(ctx context.Context, reqID uint64, data []byte) (string, error)
	ExecuteRollback(ctx context.Context, sn uint64) (string, error)

	TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)

	// Subscribe opens a live subscription for one event kind and pushes
	// decoded events onto sink until cancelled via the returned func.
	Subscribe(ctx context.Context, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error)
}

// Registry holds the configured chain clients keyed by chain id.
type Registry map[types.ChainID]ChainClient

func (r Registry) Get(id types.ChainID) (ChainClient, error) {
	client, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("no client configured for chain %s", id)
	}
	return client, nil
}
