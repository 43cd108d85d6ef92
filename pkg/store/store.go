package store

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// StatusChange is pushed to the registered observer after every applied
// mutation. The entry is a copy; observers never see live store state.
type StatusChange struct {
	Sn    uint64
	Prev  types.TransferStatus
	Entry types.LifecycleEntry
}

// Terminal reports whether the change left the entry in a state with no
// further transitions: success, or a failure with no rollback left to
// run. A failure on a rollback-eligible transfer is not terminal until
// the rollback itself has settled.
func (c StatusChange) Terminal() bool {
	switch c.Entry.Status {
	case types.StatusSuccess:
		return true
	case types.StatusFailed:
		return !c.Entry.Origin.RollbackEligible || c.Prev == types.StatusRollbackReady
	default:
		return false
	}
}

// Store is the transaction lifecycle store: a process-wide table of
// tracked transfers keyed by sn. It performs no I/O; persistence and
// transports live elsewhere and speak to it only through this API.
//
// All operations are safe for concurrent callers. Status transitions
// are validated against the allowed edge set; an invalid transition is
// reported and leaves the entry unchanged.
type Store struct {
	mu       sync.Mutex
	entries  map[uint64]*types.LifecycleEntry
	complete map[uint64]func(types.TransferStatus)
	onChange func(StatusChange)
}

func NewStore() *Store {
	return &Store{
		entries:  make(map[uint64]*types.LifecycleEntry),
		complete: make(map[uint64]func(types.TransferStatus)),
	}
}

// SetOnChange registers the single change observer. It must be set
// before the store is shared; the callback runs outside the store lock.
func (s *Store) SetOnChange(fn func(StatusChange)) {
	s.onChange = fn
}

// RegisterOnComplete installs a one-shot callback invoked with the
// terminal status of sn, once no further transitions remain. It
// replaces any earlier callback registered for the same sn and runs
// outside the store lock.
func (s *Store) RegisterOnComplete(sn uint64, fn func(types.TransferStatus)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.complete[sn] = fn
	s.mu.Unlock()
}

// CreatePending enters a new tracked transfer. Re-creating an sn that is
// already tracked is an idempotent no-op so a dismissed flow can resume
// tracking without duplicating state.
func (s *Store) CreatePending(origin types.OriginEvent) error {
	s.mu.Lock()
	if _, ok := s.entries[origin.Sn]; ok {
		s.mu.Unlock()
		log.Debug().Uint64("sn", origin.Sn).Msg("[Store] [CreatePending] sn already tracked, resuming")
		return nil
	}
	entry := &types.LifecycleEntry{
		Sn:     origin.Sn,
		Origin: origin,
		Status: types.StatusPending,
	}
	s.entries[origin.Sn] = entry
	change := StatusChange{Sn: origin.Sn, Prev: types.StatusPending, Entry: *entry}
	s.mu.Unlock()

	log.Info().Uint64("sn", origin.Sn).
		Str("originChain", origin.OriginChain.String()).
		Str("destinationChain", origin.DestinationChain.String()).
		Msg("[Store] [CreatePending] tracking new transfer")
	s.notify(change)
	return nil
}

// AttachDestination records the matching destination event and moves the
// entry to executable. A second attach for the same sn is a logged
// no-op, not an error: duplicate websocket delivery is expected.
func (s *Store) AttachDestination(sn uint64, dest types.DestinationEvent) error {
	s.mu.Lock()
	entry, ok := s.entries[sn]
	if !ok {
		s.mu.Unlock()
		return types.ErrNotFound
	}
	if entry.Destination != nil {
		s.mu.Unlock()
		log.Info().Uint64("sn", sn).Msg("[Store] [AttachDestination] duplicate destination event discarded")
		return nil
	}
	if !entry.Status.CanTransition(types.StatusExecutable) {
		err := &types.TransitionError{Sn: sn, From: entry.Status, To: types.StatusExecutable}
		s.mu.Unlock()
		log.Warn().Err(err).Msg("[Store] [AttachDestination] rejected")
		return err
	}
	prev := entry.Status
	d := dest
	entry.Destination = &d
	entry.Status = types.StatusExecutable
	change := StatusChange{Sn: sn, Prev: prev, Entry: *entry}
	s.mu.Unlock()

	log.Info().Uint64("sn", sn).Uint64("reqId", dest.ReqID).
		Str("destinationChain", dest.DestinationChain.String()).
		Msg("[Store] [AttachDestination] transfer executable")
	s.notify(change)
	return nil
}

func (s *Store) MarkSuccess(sn uint64) error {
	return s.transition(sn, types.StatusSuccess)
}

func (s *Store) MarkFailed(sn uint64) error {
	return s.transition(sn, types.StatusFailed)
}

func (s *Store) MarkRollbackReady(sn uint64) error {
	return s.transition(sn, types.StatusRollbackReady)
}

// Remove drops a tracked transfer. Only explicit user dismissal calls
// this; the store itself never garbage-collects an entry.
func (s *Store) Remove(sn uint64) {
	s.mu.Lock()
	delete(s.entries, sn)
	delete(s.complete, sn)
	s.mu.Unlock()
}

// Get returns a copy of the entry for sn.
func (s *Store) Get(sn uint64) (types.LifecycleEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[sn]
	if !ok {
		return types.LifecycleEntry{}, types.ErrNotFound
	}
	return *entry, nil
}

// List returns copies of all tracked entries ordered by sn.
func (s *Store) List() []types.LifecycleEntry {
	s.mu.Lock()
	entries := make([]types.LifecycleEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, *entry)
	}
	s.mu.Unlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Sn < entries[j].Sn })
	return entries
}

// Resume re-seeds the store from journaled entries on startup. Existing
// entries win over journaled ones.
func (s *Store) Resume(entries []types.LifecycleEntry) {
	s.mu.Lock()
	for _, entry := range entries {
		if _, ok := s.entries[entry.Sn]; ok {
			continue
		}
		e := entry
		s.entries[entry.Sn] = &e
	}
	s.mu.Unlock()
	log.Info().Int("count", len(entries)).Msg("[Store] [Resume] re-seeded tracked transfers")
}

func (s *Store) transition(sn uint64, next types.TransferStatus) error {
	s.mu.Lock()
	entry, ok := s.entries[sn]
	if !ok {
		s.mu.Unlock()
		return types.ErrNotFound
	}
	if !entry.Status.CanTransition(next) {
		err := &types.TransitionError{Sn: sn, From: entry.Status, To: next}
		s.mu.Unlock()
		log.Warn().Err(err).Msg("[Store] [transition] rejected")
		return err
	}
	prev := entry.Status
	entry.Status = next
	change := StatusChange{Sn: sn, Prev: prev, Entry: *entry}
	var done func(types.TransferStatus)
	if change.Terminal() {
		done = s.complete[sn]
		delete(s.complete, sn)
	}
	s.mu.Unlock()

	log.Info().Uint64("sn", sn).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("[Store] [transition] status updated")
	s.notify(change)
	if done != nil {
		done(change.Entry.Status)
	}
	return nil
}

func (s *Store) notify(change StatusChange) {
	if s.onChange != nil {
		s.onChange(change)
	}
}
