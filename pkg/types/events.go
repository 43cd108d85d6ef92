package types

// EventKind names the cross-chain messaging events recognized by the
// extractor and listener. The strings are the bit-exact signatures
// matched against log topics on both chain families.
type EventKind string

const (
	EventCallMessageSent EventKind = "CallMessageSent(Address,str,int)"
	EventCallMessage     EventKind = "CallMessage(str,str,int,int,bytes)"
	EventCallExecuted    EventKind = "CallExecuted(int,int,str)"
	EventResponseMessage EventKind = "ResponseMessage(int,int,str)"
	EventRollbackMessage EventKind = "RollbackMessage(int)"
)

// Execution result codes embedded in CallExecuted and ResponseMessage.
const (
	CodeFailure = 0
	CodeSuccess = 1
)

// ChainEvent is the uniform decoded form of one chain log, produced by
// the chain clients from their heterogeneous transports.
type ChainEvent struct {
	Chain  ChainID
	Kind   EventKind
	Sn     uint64
	ReqID  uint64
	Code   int
	From   string
	To     string
	Data   []byte
	TxHash string
}

// Receipt is the chain-agnostic transaction receipt. Events holds the
// recognized messaging events decoded from the receipt logs; logs that
// are not messaging events are dropped by the client.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Success     bool
	Events      []ChainEvent
}

// SubscriptionKey identifies one live listener subscription. At most
// one subscription per key may be active at any time.
type SubscriptionKey struct {
	Chain ChainID
	Kind  EventKind
}
