package relay

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// fakeChain is an in-memory ChainClient covering both chain roles in
// the relay tests. Receipts are keyed by tx hash and can be staged
// before or after submission.
type fakeChain struct {
	id          types.ChainID
	autoExecute bool

	mu          sync.Mutex
	fee         *big.Int
	balance     *big.Int
	allowances  map[string]*big.Int
	receipts    map[string]*types.Receipt
	nextSn      uint64
	txCounter   int
	sendErr     error
	approveErr  error
	executeErr  error
	rollbackErr error
	noReceipt   bool
	omitEvent   bool

	// receipt queries fail this many times before resolving, modelling
	// a transaction that is still waiting to be mined
	receiptFailures int

	executedCalls  []uint64
	rolledBack     []uint64
	approvedAmount *big.Int

	sink chan<- types.ChainEvent
}

func newFakeChain(id types.ChainID, autoExecute bool) *fakeChain {
	return &fakeChain{
		id:          id,
		autoExecute: autoExecute,
		fee:         big.NewInt(10),
		balance:     big.NewInt(1_000_000),
		allowances:  make(map[string]*big.Int),
		receipts:    make(map[string]*types.Receipt),
		nextSn:      42,
	}
}

func (f *fakeChain) ID() types.ChainID { return f.id }
func (f *fakeChain) AutoExecute() bool { return f.autoExecute }

func (f *fakeChain) MessageFee(ctx context.Context, to types.ChainID, needsRollback bool) (*big.Int, error) {
	return new(big.Int).Set(f.fee), nil
}

func (f *fakeChain) NativeBalance(ctx context.Context, account string) (*big.Int, error) {
	return new(big.Int).Set(f.balance), nil
}

func allowanceKey(token, owner, spender string) string {
	return token + "|" + owner + "|" + spender
}

func (f *fakeChain) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	allowance, ok := f.allowances[allowanceKey(token, owner, spender)]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(allowance), nil
}

func (f *fakeChain) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.approveErr != nil {
		return "", f.approveErr
	}
	f.approvedAmount = new(big.Int).Set(amount)
	hash := f.newTxHash()
	f.allowances[allowanceKey(token, "owner", spender)] = new(big.Int).Set(amount)
	f.receipts[hash] = &types.Receipt{TxHash: hash, Success: true}
	return hash, nil
}

func (f *fakeChain) SendCallMessage(ctx context.Context, intent *types.TransactionIntent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	hash := f.newTxHash()
	if f.noReceipt {
		return hash, nil
	}
	receipt := &types.Receipt{TxHash: hash, Success: true}
	if !f.omitEvent {
		receipt.Events = []types.ChainEvent{{
			Chain:  f.id,
			Kind:   types.EventCallMessageSent,
			Sn:     f.nextSn,
			From:   intent.Account,
			To:     intent.Recipient,
			TxHash: hash,
		}}
	}
	f.receipts[hash] = receipt
	f.nextSn++
	return hash, nil
}

func (f *fakeChain) ExecuteCall(ctx context.Context, reqID uint64, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executeErr != nil {
		return "", f.executeErr
	}
	f.executedCalls = append(f.executedCalls, reqID)
	hash := f.newTxHash()
	if _, staged := f.receipts[hash]; !staged {
		f.receipts[hash] = &types.Receipt{
			TxHash:  hash,
			Success: true,
			Events: []types.ChainEvent{{
				Chain: f.id,
				Kind:  types.EventCallExecuted,
				ReqID: reqID,
				Code:  types.CodeSuccess,
			}},
		}
	}
	return hash, nil
}

func (f *fakeChain) ExecuteRollback(ctx context.Context, sn uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rollbackErr != nil {
		return "", f.rollbackErr
	}
	f.rolledBack = append(f.rolledBack, sn)
	hash := f.newTxHash()
	if _, staged := f.receipts[hash]; !staged {
		f.receipts[hash] = &types.Receipt{TxHash: hash, Success: true}
	}
	return hash, nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptFailures > 0 {
		f.receiptFailures--
		return nil, fmt.Errorf("receipt %s not found", txHash)
	}
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, fmt.Errorf("receipt %s not found", txHash)
	}
	return receipt, nil
}

func (f *fakeChain) Subscribe(ctx context.Context, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error) {
	f.mu.Lock()
	f.sink = sink
	f.mu.Unlock()
	return func() {}, nil
}

func (f *fakeChain) deliver(event types.ChainEvent) {
	// the subscription may still be opening on another goroutine
	for {
		f.mu.Lock()
		sink := f.sink
		f.mu.Unlock()
		if sink != nil {
			sink <- event
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// stageReceipt overrides the receipt the next transaction will get.
func (f *fakeChain) stageNextReceipt(receipt *types.Receipt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hash := fmt.Sprintf("0x%s-tx-%d", f.id, f.txCounter+1)
	receipt.TxHash = hash
	f.receipts[hash] = receipt
}

func (f *fakeChain) newTxHash() string {
	f.txCounter++
	return fmt.Sprintf("0x%s-tx-%d", f.id, f.txCounter)
}
