package listener

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Subscriber is the transport surface the coordinator needs from a
// chain client: open one subscription for one event kind and push
// decoded events onto the sink until cancelled.
type Subscriber interface {
	ID() types.ChainID
	Subscribe(ctx context.Context, kind types.EventKind, sink chan<- types.ChainEvent) (func(), error)
}

type subscription struct {
	cancel  func()
	waiting map[uint64]struct{}
}

// Coordinator converts heterogeneous per-chain transports into a single
// stream of decoded chain events and drives the lifecycle store from a
// dedicated task. It owns all live subscriptions, at most one per
// (chain, event kind) key; transports never touch the store directly.
type Coordinator struct {
	mu     sync.Mutex
	chains map[types.ChainID]Subscriber
	store  *store.Store
	subs   map[types.SubscriptionKey]*subscription
	events chan types.ChainEvent
	done   chan struct{}
}

func NewCoordinator(chains map[types.ChainID]Subscriber, lifecycle *store.Store) *Coordinator {
	return &Coordinator{
		chains: chains,
		store:  lifecycle,
		subs:   make(map[types.SubscriptionKey]*subscription),
		events: make(chan types.ChainEvent, 64),
		done:   make(chan struct{}),
	}
}

// Watch registers interest in the CallMessage matching origin.Sn on the
// destination chain. The (chain, kind) subscription is opened on first
// use and shared by all pending sn values waiting on that key.
func (c *Coordinator) Watch(ctx context.Context, origin types.OriginEvent) error {
	key := types.SubscriptionKey{Chain: origin.DestinationChain, Kind: types.EventCallMessage}
	return c.watch(ctx, key, origin.Sn)
}

// WatchOrigin registers interest in the origin-side outcome events for
// a rollback-eligible transfer: ResponseMessage carries the remote
// execution result, RollbackMessage the readiness of the compensating
// call.
func (c *Coordinator) WatchOrigin(ctx context.Context, origin types.OriginEvent) error {
	for _, kind := range []types.EventKind{types.EventResponseMessage, types.EventRollbackMessage} {
		key := types.SubscriptionKey{Chain: origin.OriginChain, Kind: kind}
		if err := c.watch(ctx, key, origin.Sn); err != nil {
			return err
		}
	}
	return nil
}

// watch joins the subscription for key, opening it first when absent.
// Registration happens under the same lock as the open: a concurrent
// match releasing the key's last waiter cannot slip in between and
// leave the sn unregistered.
func (c *Coordinator) watch(ctx context.Context, key types.SubscriptionKey, sn uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[key]
	if !ok {
		opened, err := c.openLocked(ctx, key)
		if err != nil {
			return err
		}
		sub = opened
	} else {
		log.Debug().Uint64("sn", sn).
			Str("chain", key.Chain.String()).
			Msg("[Coordinator] [watch] joined active subscription")
	}
	sub.waiting[sn] = struct{}{}
	return nil
}

// OpenSubscription opens the transport subscription for key. Opening a
// key that is already live is a programming error.
func (c *Coordinator) OpenSubscription(ctx context.Context, key types.SubscriptionKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[key]; ok {
		return types.ErrSubscriptionActive
	}
	_, err := c.openLocked(ctx, key)
	return err
}

func (c *Coordinator) openLocked(ctx context.Context, key types.SubscriptionKey) (*subscription, error) {
	client, ok := c.chains[key.Chain]
	if !ok {
		return nil, types.ErrNotFound
	}
	cancel, err := client.Subscribe(ctx, key.Kind, c.events)
	if err != nil {
		return nil, err
	}
	sub := &subscription{cancel: cancel, waiting: make(map[uint64]struct{})}
	c.subs[key] = sub
	metrics.ActiveSubscriptions.Set(float64(len(c.subs)))
	log.Info().Str("chain", key.Chain.String()).
		Str("eventKind", string(key.Kind)).
		Msg("[Coordinator] [OpenSubscription] subscription opened")
	return sub, nil
}

// Cancel closes the subscription for key and deregisters it. It has no
// side effects on the store: dismissal only stops local tracking.
func (c *Coordinator) Cancel(key types.SubscriptionKey) {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if ok {
		delete(c.subs, key)
	}
	metrics.ActiveSubscriptions.Set(float64(len(c.subs)))
	c.mu.Unlock()
	if ok {
		sub.cancel()
		log.Info().Str("chain", key.Chain.String()).
			Str("eventKind", string(key.Kind)).
			Msg("[Coordinator] [Cancel] subscription closed")
	}
}

// Dismiss abandons local tracking of sn on chain across every event
// kind watched for it. Each subscription is closed once no other
// pending sn waits on it.
func (c *Coordinator) Dismiss(chain types.ChainID, sn uint64) {
	c.mu.Lock()
	keys := make([]types.SubscriptionKey, 0, len(c.subs))
	for key := range c.subs {
		if key.Chain == chain {
			keys = append(keys, key)
		}
	}
	c.mu.Unlock()
	for _, key := range keys {
		c.release(key, sn)
	}
}

func (c *Coordinator) release(key types.SubscriptionKey, sn uint64) {
	c.mu.Lock()
	sub, ok := c.subs[key]
	var empty bool
	if ok {
		delete(sub.waiting, sn)
		empty = len(sub.waiting) == 0
	}
	c.mu.Unlock()
	if ok && empty {
		c.Cancel(key)
	}
}

// Run is the coordinator task: it consumes decoded events from every
// live transport and is the only path mutating the store from the
// listener side. It exits when ctx is cancelled or Stop is called.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case event := <-c.events:
			c.handleEvent(event)
		}
	}
}

func (c *Coordinator) handleEvent(event types.ChainEvent) {
	switch event.Kind {
	case types.EventCallMessage:
		c.handleArrival(event)
	case types.EventResponseMessage:
		c.handleResponse(event)
	case types.EventRollbackMessage:
		c.handleRollback(event)
	default:
		log.Debug().Str("eventKind", string(event.Kind)).
			Str("chain", event.Chain.String()).
			Msg("[Coordinator] [handleEvent] ignoring unrouted event")
	}
}

func (c *Coordinator) handleArrival(event types.ChainEvent) {
	entry, err := c.store.Get(event.Sn)
	if err != nil {
		// Not every event on the network belongs to this user.
		log.Debug().Uint64("sn", event.Sn).
			Str("chain", event.Chain.String()).
			Msg("[Coordinator] [handleArrival] sn not tracked, discarding")
		return
	}
	if entry.Destination != nil || entry.Status != types.StatusPending {
		metrics.DuplicateEventsDropped.WithLabelValues(event.Chain.String()).Inc()
		log.Info().Uint64("sn", event.Sn).Msg("[Coordinator] [handleArrival] duplicate delivery discarded")
		return
	}

	dest := types.DestinationEvent{
		Sn:               event.Sn,
		ReqID:            event.ReqID,
		Payload:          event.Data,
		DestinationChain: event.Chain,
		AutoExecute:      entry.Origin.AutoExecute,
	}
	if err := c.store.AttachDestination(event.Sn, dest); err != nil {
		log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleArrival] attach failed")
		return
	}
	// The transport is single-shot per expected event: release it once
	// its last awaited sn has matched.
	c.Dismiss(event.Chain, event.Sn)
}

// handleResponse settles a transfer from the origin side. The source
// contract reports the remote execution result before any receipt the
// relayer itself may hold, so a success here closes an executable
// transfer and a failure parks it until the rollback becomes available.
func (c *Coordinator) handleResponse(event types.ChainEvent) {
	entry, err := c.store.Get(event.Sn)
	if err != nil {
		log.Debug().Uint64("sn", event.Sn).
			Str("chain", event.Chain.String()).
			Msg("[Coordinator] [handleResponse] sn not tracked, discarding")
		return
	}
	if entry.Status != types.StatusExecutable {
		metrics.DuplicateEventsDropped.WithLabelValues(event.Chain.String()).Inc()
		log.Debug().Uint64("sn", event.Sn).
			Str("status", entry.Status.String()).
			Msg("[Coordinator] [handleResponse] out-of-order response discarded")
		return
	}
	if event.Code == types.CodeSuccess {
		if err := c.store.MarkSuccess(event.Sn); err != nil {
			log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleResponse] settle failed")
			return
		}
		c.Dismiss(entry.Origin.OriginChain, event.Sn)
		return
	}
	if err := c.store.MarkFailed(event.Sn); err != nil {
		log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleResponse] settle failed")
		return
	}
	// keep the RollbackMessage watch: readiness of the compensating
	// call arrives as its own event
	c.release(types.SubscriptionKey{Chain: entry.Origin.OriginChain, Kind: types.EventResponseMessage}, event.Sn)
}

// handleRollback marks a rollback-eligible transfer ready to revert on
// the origin contract's own notification, covering executions that
// failed outside this relayer's receipt path.
func (c *Coordinator) handleRollback(event types.ChainEvent) {
	entry, err := c.store.Get(event.Sn)
	if err != nil {
		log.Debug().Uint64("sn", event.Sn).
			Str("chain", event.Chain.String()).
			Msg("[Coordinator] [handleRollback] sn not tracked, discarding")
		return
	}
	if !entry.Origin.RollbackEligible {
		log.Debug().Uint64("sn", event.Sn).Msg("[Coordinator] [handleRollback] transfer not rollback eligible, discarding")
		return
	}
	switch entry.Status {
	case types.StatusExecutable:
		if err := c.store.MarkFailed(event.Sn); err != nil {
			log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleRollback] mark failed rejected")
			return
		}
		if err := c.store.MarkRollbackReady(event.Sn); err != nil {
			log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleRollback] mark ready rejected")
			return
		}
	case types.StatusFailed:
		if err := c.store.MarkRollbackReady(event.Sn); err != nil {
			log.Warn().Err(err).Uint64("sn", event.Sn).Msg("[Coordinator] [handleRollback] mark ready rejected")
			return
		}
	default:
		metrics.DuplicateEventsDropped.WithLabelValues(event.Chain.String()).Inc()
		log.Debug().Uint64("sn", event.Sn).
			Str("status", entry.Status.String()).
			Msg("[Coordinator] [handleRollback] out-of-order rollback notification discarded")
		return
	}
	// the revert now runs through the rollback executor; the origin
	// watches for this sn are done
	c.Dismiss(entry.Origin.OriginChain, event.Sn)
}

// Stop cancels every live subscription and halts the coordinator task.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[types.SubscriptionKey]*subscription)
	c.mu.Unlock()
	for key, sub := range subs {
		sub.cancel()
		log.Debug().Str("chain", key.Chain.String()).
			Str("eventKind", string(key.Kind)).
			Msg("[Coordinator] [Stop] subscription closed")
	}
	metrics.ActiveSubscriptions.Set(0)
	close(c.done)
}
