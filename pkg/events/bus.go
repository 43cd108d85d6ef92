package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// EventEnvelope carries one lifecycle notification across the bus.
type EventEnvelope struct {
	EventType        string
	DestinationChain types.ChainID
	Sn               uint64
	Data             interface{}
}

type Channels []chan *EventEnvelope

// EventBus fans lifecycle notifications out to subscribers keyed by
// destination chain. Subscribers receive on buffered channels; the bus
// is injected as a dependency, never accessed as ambient global state.
type EventBus struct {
	mu       sync.RWMutex
	channels map[types.ChainID]Channels
	bufSize  int
	closed   bool
}

func NewEventBus(bufSize int) *EventBus {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &EventBus{
		channels: make(map[types.ChainID]Channels),
		bufSize:  bufSize,
	}
}

// Subscribe returns a channel receiving all envelopes whose destination
// chain matches. The channel is closed by Close.
func (eb *EventBus) Subscribe(destinationChain types.ChainID) <-chan *EventEnvelope {
	receiver := make(chan *EventEnvelope, eb.bufSize)
	eb.mu.Lock()
	eb.channels[destinationChain] = append(eb.channels[destinationChain], receiver)
	eb.mu.Unlock()
	return receiver
}

// BroadcastEvent delivers the envelope to every subscriber of its
// destination chain. A full subscriber buffer drops the envelope rather
// than blocking a store mutation.
func (eb *EventBus) BroadcastEvent(event *EventEnvelope) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	if eb.closed {
		return
	}
	for _, channel := range eb.channels[event.DestinationChain] {
		select {
		case channel <- event:
		default:
			log.Warn().Str("eventType", event.EventType).
				Uint64("sn", event.Sn).
				Str("destinationChain", event.DestinationChain.String()).
				Msg("[EventBus] [BroadcastEvent] subscriber buffer full, notification dropped")
		}
	}
}

// Close closes all subscriber channels.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	for _, channels := range eb.channels {
		for _, channel := range channels {
			close(channel)
		}
	}
}
