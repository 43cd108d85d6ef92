package solver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
)

// DismissDelay is how long a filled order stays visible before its UI
// auto-dismisses. Observational convenience, not a correctness bound.
const DismissDelay = 5 * time.Second

const statusPollInterval = 2 * time.Second

// ErrOrderReverted marks a definitive on-chain revert of the order
// transaction: the flow moves to Failure instead of back to None.
var ErrOrderReverted = errors.New("order transaction reverted on-chain")

// Signer signs and submits the on-chain order transaction. Wallet
// rejections and RPC failures are recoverable; ErrOrderReverted is not.
type Signer interface {
	SignAndSubmit(ctx context.Context, intentHash string) (string, error)
}

// Flow drives one intent-order swap through
// None -> SigningAndCreating -> Executing -> (Filled | Failure).
type Flow struct {
	client *Client
	signer Signer

	mu    sync.Mutex
	state SwapState
	order *IntentOrder

	// OnDismiss fires after a filled order's dismiss delay.
	OnDismiss func(order IntentOrder)
	// dismissAfter overrides DismissDelay in tests.
	dismissAfter time.Duration
	pollInterval time.Duration
}

func NewFlow(client *Client, signer Signer) *Flow {
	return &Flow{
		client:       client,
		signer:       signer,
		state:        SwapNone,
		dismissAfter: DismissDelay,
		pollInterval: statusPollInterval,
	}
}

func (f *Flow) State() SwapState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Order() *IntentOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.order == nil {
		return nil
	}
	order := *f.order
	return &order
}

// Execute runs the whole flow synchronously and returns the terminal
// state. A wallet rejection or recoverable submission error returns the
// flow to None with no partial state persisted.
func (f *Flow) Execute(ctx context.Context, req OrderRequest) (SwapState, error) {
	f.setState(SwapSigningAndCreating)

	intentHash, err := f.client.CreateOrder(ctx, req)
	if err != nil {
		f.reset()
		return SwapNone, err
	}
	txHash, err := f.signer.SignAndSubmit(ctx, intentHash)
	if err != nil {
		if errors.Is(err, ErrOrderReverted) {
			f.fail(intentHash, req)
			return SwapFailure, err
		}
		f.reset()
		return SwapNone, err
	}

	taskID, err := f.client.PostExecution(ctx, txHash, req.QuoteUUID)
	if err != nil {
		f.reset()
		return SwapNone, err
	}
	f.mu.Lock()
	f.state = SwapExecuting
	f.order = &IntentOrder{
		OrderID:    uuid.NewString(),
		IntentHash: intentHash,
		QuoteID:    req.QuoteUUID,
		Status:     OrderPending,
		TaskID:     taskID,
	}
	f.mu.Unlock()
	log.Info().Str("intentHash", intentHash).
		Str("taskId", taskID).
		Msg("[Flow] [Execute] order accepted, awaiting fill")

	return f.awaitFill(ctx, taskID)
}

// awaitFill polls the solver status until it is terminal. The poll
// itself never gives up; the enclosing context bounds it.
func (f *Flow) awaitFill(ctx context.Context, taskID string) (SwapState, error) {
	status, err := backoff.Retry(ctx, func() (OrderStatus, error) {
		status, err := f.client.Status(ctx, taskID)
		if err != nil {
			return OrderPending, err
		}
		if status == OrderPending {
			return OrderPending, fmt.Errorf("order %s still pending", taskID)
		}
		return status, nil
	}, backoff.WithBackOff(backoff.NewConstantBackOff(f.pollInterval)))
	if err != nil {
		// only context cancellation escapes the poll
		f.reset()
		return SwapNone, err
	}

	f.mu.Lock()
	f.order.Status = status
	var order IntentOrder
	if status == OrderSuccess {
		f.state = SwapFilled
	} else {
		f.state = SwapFailure
	}
	order = *f.order
	state := f.state
	f.mu.Unlock()

	metrics.SolverOrders.WithLabelValues(status.String()).Inc()
	if state == SwapFilled {
		f.scheduleDismiss(order)
		return SwapFilled, nil
	}
	return SwapFailure, fmt.Errorf("order %s failed to fill", taskID)
}

func (f *Flow) scheduleDismiss(order IntentOrder) {
	go func() {
		time.Sleep(f.dismissAfter)
		f.mu.Lock()
		if f.state == SwapFilled {
			f.state = SwapNone
			f.order = nil
		}
		f.mu.Unlock()
		if f.OnDismiss != nil {
			f.OnDismiss(order)
		}
	}()
}

func (f *Flow) setState(state SwapState) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func (f *Flow) reset() {
	f.mu.Lock()
	f.state = SwapNone
	f.order = nil
	f.mu.Unlock()
}

func (f *Flow) fail(intentHash string, req OrderRequest) {
	f.mu.Lock()
	f.state = SwapFailure
	f.order = &IntentOrder{
		OrderID:    uuid.NewString(),
		IntentHash: intentHash,
		QuoteID:    req.QuoteUUID,
		Status:     OrderFailure,
	}
	f.mu.Unlock()
	metrics.SolverOrders.WithLabelValues(OrderFailure.String()).Inc()
}
