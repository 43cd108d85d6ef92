package types

import (
	"errors"
	"fmt"
)

// Error taxonomy for the relay. Recoverable errors (ErrUserRejected,
// ErrSubmission) are caught at the component boundary and re-offered as
// a retryable action; ErrProtocolMismatch and ErrRollbackFailed are
// terminal and never retried implicitly.
var (
	// ErrUserRejected is returned when the wallet refuses to sign.
	// Retrying the same action is safe.
	ErrUserRejected = errors.New("transaction rejected by user")

	// ErrSubmission wraps RPC/node failures while broadcasting. Retryable.
	ErrSubmission = errors.New("transaction submission failed")

	// ErrReceiptTimeout is returned when the receipt-poll retry budget is
	// exhausted. The transfer is never entered into the store; the user
	// should check an explorer.
	ErrReceiptTimeout = errors.New("transaction receipt not found within retry budget, please check explorer")

	// ErrProtocolMismatch marks a successful transaction whose receipt
	// carries no CallMessageSent log. This is a defect condition.
	ErrProtocolMismatch = errors.New("transaction succeeded but emitted no cross-chain message")

	// ErrDestinationExecutionFailed is reported when destination execution
	// reverts and no rollback message is available.
	ErrDestinationExecutionFailed = errors.New("destination execution failed")

	// ErrRollbackFailed is fatal and requires manual support intervention.
	ErrRollbackFailed = errors.New("rollback execution failed, contact support")

	// ErrInvalidTransition is reported by the store when a status edge is
	// not in the allowed set. The entry is left unchanged.
	ErrInvalidTransition = errors.New("invalid lifecycle status transition")

	// ErrSubscriptionActive marks an attempt to open a second live
	// subscription for the same (chain, event kind) pair.
	ErrSubscriptionActive = errors.New("subscription already active for key")

	// ErrInsufficientGas is returned by the gas check when the native
	// balance cannot cover the estimated cost.
	ErrInsufficientGas = errors.New("insufficient native balance for gas")

	// ErrNotFound is returned by store lookups for unknown sn values.
	ErrNotFound = errors.New("transfer not found")
)

// TransitionError carries the rejected edge for logging and assertions.
type TransitionError struct {
	Sn   uint64
	From TransferStatus
	To   TransferStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle status transition for sn %d: %s -> %s", e.Sn, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
