package types

import (
	"math/big"
	"time"
)

// ChainID identifies a network in the form "<kind>|<network id>",
// for example "evm|1", "icon|0x1".
type ChainID string

func (c ChainID) String() string {
	return string(c)
}

type TransactionType int

const (
	SameChainSwap TransactionType = iota
	Bridge
	CrossChainSwap
)

func (t TransactionType) String() string {
	switch t {
	case SameChainSwap:
		return "same_chain_swap"
	case Bridge:
		return "bridge"
	case CrossChainSwap:
		return "cross_chain_swap"
	default:
		return "unknown"
	}
}

type TransferStatus int

const (
	StatusPending TransferStatus = iota
	StatusExecutable
	StatusSuccess
	StatusFailed
	StatusRollbackReady
)

func (s TransferStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecutable:
		return "executable"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusRollbackReady:
		return "rollbackReady"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the edge s -> next is allowed.
// Entries move monotonically forward; everything else is rejected.
func (s TransferStatus) CanTransition(next TransferStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusExecutable
	case StatusExecutable:
		return next == StatusSuccess || next == StatusFailed
	case StatusFailed:
		return next == StatusRollbackReady
	case StatusRollbackReady:
		return next == StatusSuccess || next == StatusFailed
	default:
		return false
	}
}

type ApprovalState int

const (
	NotApproved ApprovalState = iota
	ApprovalPending
	Approved
)

func (s ApprovalState) String() string {
	switch s {
	case NotApproved:
		return "not_approved"
	case ApprovalPending:
		return "pending"
	case Approved:
		return "approved"
	default:
		return "unknown"
	}
}

// TransactionIntent is the immutable description of one user transfer.
// Build it through relay.BuildIntent; once submitted it is never mutated.
type TransactionIntent struct {
	Type              TransactionType
	OriginChain       ChainID
	DestinationChain  ChainID
	Account           string
	Recipient         string
	InputToken        string
	InputAmount       *big.Int
	Fee               *big.Int
	SlippageTolerance uint
	NeedsRollback     bool
	Data              []byte
	OnComplete        func(status TransferStatus)
}

// OriginEvent records a CallMessageSent observed in an origin receipt.
// Immutable after creation; lifecycle status lives in the store entry.
type OriginEvent struct {
	Sn                uint64
	OriginChain       ChainID
	DestinationChain  ChainID
	TxHash            string
	RollbackEligible  bool
	AutoExecute       bool
	CreatedAt         time.Time
	DescriptionAction string
	DescriptionAmount string
}

// DestinationEvent records the matching CallMessage on the destination
// chain. At most one exists per sn; the store enforces this.
type DestinationEvent struct {
	Sn               uint64
	ReqID            uint64
	Payload          []byte
	DestinationChain ChainID
	AutoExecute      bool
}

// LifecycleEntry is the merged view of one tracked transfer. It is owned
// by the store; components read copies and mutate only through the
// store's API.
type LifecycleEntry struct {
	Sn          uint64
	Origin      OriginEvent
	Destination *DestinationEvent
	Status      TransferStatus
}
