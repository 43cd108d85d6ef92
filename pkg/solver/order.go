package solver

import (
	"math/big"
)

// OrderStatus is the solver-reported status of one intent order.
type OrderStatus int

const (
	OrderPending OrderStatus = iota
	OrderSuccess
	OrderFailure
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderSuccess:
		return "success"
	case OrderFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// SwapState is the closed state set of the intent-order flow. Adding a
// new state is a compile-time-checked change everywhere it is matched.
type SwapState int

const (
	SwapNone SwapState = iota
	SwapSigningAndCreating
	SwapExecuting
	SwapFilled
	SwapFailure
)

func (s SwapState) String() string {
	switch s {
	case SwapNone:
		return "none"
	case SwapSigningAndCreating:
		return "signing_and_creating"
	case SwapExecuting:
		return "executing"
	case SwapFilled:
		return "filled"
	case SwapFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// IntentOrder is created on successful order submission. Its status is
// driven by the solver's status callback, not by chain events.
type IntentOrder struct {
	OrderID    string
	IntentHash string
	QuoteID    string
	FromAmount *big.Int
	ToAmount   *big.Int
	Status     OrderStatus
	TaskID     string
}

// OrderRequest is the payload of the solver's order-creation endpoint.
type OrderRequest struct {
	QuoteUUID   string `json:"quote_uuid"`
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	FromChain   string `json:"fromChain"`
	ToChain     string `json:"toChain"`
	Token       string `json:"token"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	ToAmount    string `json:"toAmount"`
}
