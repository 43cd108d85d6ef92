package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

func originEvent(sn uint64) types.OriginEvent {
	return types.OriginEvent{
		Sn:               sn,
		OriginChain:      "icon|0x1",
		DestinationChain: "evm|1",
		TxHash:           "0xabc",
		RollbackEligible: true,
		CreatedAt:        time.Now(),
	}
}

func destEvent(sn uint64) types.DestinationEvent {
	return types.DestinationEvent{
		Sn:               sn,
		ReqID:            7,
		Payload:          []byte{0x01, 0x02},
		DestinationChain: "evm|1",
	}
}

func TestHappyPathTransitions(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(42)))

	entry, err := s.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, entry.Status)

	require.NoError(t, s.AttachDestination(42, destEvent(42)))
	entry, err = s.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecutable, entry.Status)
	require.NotNil(t, entry.Destination)

	require.NoError(t, s.MarkSuccess(42))
	entry, err = s.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, entry.Status)
}

func TestRollbackPath(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(1)))
	require.NoError(t, s.AttachDestination(1, destEvent(1)))
	require.NoError(t, s.MarkFailed(1))
	require.NoError(t, s.MarkRollbackReady(1))
	require.NoError(t, s.MarkSuccess(1))

	entry, err := s.Get(1)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, entry.Status)
}

func TestInvalidTransitionsLeaveStateUnchanged(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(5)))

	// pending -> success/failed/rollbackReady are not edges
	require.ErrorIs(t, s.MarkSuccess(5), types.ErrInvalidTransition)
	require.ErrorIs(t, s.MarkFailed(5), types.ErrInvalidTransition)
	require.ErrorIs(t, s.MarkRollbackReady(5), types.ErrInvalidTransition)

	entry, err := s.Get(5)
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, entry.Status)

	// terminal success accepts nothing
	require.NoError(t, s.AttachDestination(5, destEvent(5)))
	require.NoError(t, s.MarkSuccess(5))
	require.ErrorIs(t, s.MarkFailed(5), types.ErrInvalidTransition)
	require.ErrorIs(t, s.MarkRollbackReady(5), types.ErrInvalidTransition)

	var terr *types.TransitionError
	err = s.MarkFailed(5)
	require.ErrorAs(t, err, &terr)
	require.Equal(t, types.StatusSuccess, terr.From)
}

func TestDuplicateDestinationDiscarded(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(42)))
	require.NoError(t, s.AttachDestination(42, destEvent(42)))

	dup := destEvent(42)
	dup.ReqID = 99
	require.NoError(t, s.AttachDestination(42, dup))

	entry, err := s.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecutable, entry.Status)
	require.Equal(t, uint64(7), entry.Destination.ReqID)
}

func TestAttachUnknownSn(t *testing.T) {
	s := NewStore()
	require.ErrorIs(t, s.AttachDestination(999, destEvent(999)), types.ErrNotFound)
}

func TestCreatePendingIdempotentResume(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(3)))
	require.NoError(t, s.AttachDestination(3, destEvent(3)))

	// re-opening the flow must not reset tracking
	require.NoError(t, s.CreatePending(originEvent(3)))
	entry, err := s.Get(3)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecutable, entry.Status)
}

func TestResumeSkipsTracked(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(1)))
	require.NoError(t, s.AttachDestination(1, destEvent(1)))

	s.Resume([]types.LifecycleEntry{
		{Sn: 1, Origin: originEvent(1), Status: types.StatusPending},
		{Sn: 2, Origin: originEvent(2), Status: types.StatusRollbackReady},
	})

	entry, err := s.Get(1)
	require.NoError(t, err)
	require.Equal(t, types.StatusExecutable, entry.Status)

	entry, err = s.Get(2)
	require.NoError(t, err)
	require.Equal(t, types.StatusRollbackReady, entry.Status)
}

func TestOnChangeNotifications(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var changes []StatusChange
	s.SetOnChange(func(c StatusChange) {
		mu.Lock()
		changes = append(changes, c)
		mu.Unlock()
	})

	require.NoError(t, s.CreatePending(originEvent(8)))
	require.NoError(t, s.AttachDestination(8, destEvent(8)))
	require.NoError(t, s.MarkSuccess(8))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	require.Equal(t, types.StatusExecutable, changes[1].Entry.Status)
	require.Equal(t, types.StatusPending, changes[1].Prev)
	require.Equal(t, types.StatusSuccess, changes[2].Entry.Status)
}

func TestConcurrentMutationsSingleWinner(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(10)))
	require.NoError(t, s.AttachDestination(10, destEvent(10)))

	// listener callback and manual confirm racing on the same sn: exactly
	// one terminal transition may win.
	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = s.MarkSuccess(10) }()
	go func() { defer wg.Done(); results[1] = s.MarkFailed(10) }()
	wg.Wait()

	if results[0] == nil {
		require.ErrorIs(t, results[1], types.ErrInvalidTransition)
	} else {
		require.NoError(t, results[1])
		require.ErrorIs(t, results[0], types.ErrInvalidTransition)
	}
}

func TestListOrdered(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(3)))
	require.NoError(t, s.CreatePending(originEvent(1)))
	require.NoError(t, s.CreatePending(originEvent(2)))

	entries := s.List()
	require.Len(t, entries, 3)
	require.Equal(t, uint64(1), entries[0].Sn)
	require.Equal(t, uint64(3), entries[2].Sn)

	s.Remove(2)
	require.Len(t, s.List(), 2)
}

func TestOnCompleteFiresOnSuccess(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(42)))

	var got []types.TransferStatus
	s.RegisterOnComplete(42, func(status types.TransferStatus) {
		got = append(got, status)
	})

	require.NoError(t, s.AttachDestination(42, destEvent(42)))
	require.Empty(t, got)

	require.NoError(t, s.MarkSuccess(42))
	require.Equal(t, []types.TransferStatus{types.StatusSuccess}, got)
}

func TestOnCompleteDefersUntilRollbackSettles(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(1)))

	var got []types.TransferStatus
	s.RegisterOnComplete(1, func(status types.TransferStatus) {
		got = append(got, status)
	})

	require.NoError(t, s.AttachDestination(1, destEvent(1)))
	// a rollback-eligible failure is not the end of the transfer
	require.NoError(t, s.MarkFailed(1))
	require.Empty(t, got)
	require.NoError(t, s.MarkRollbackReady(1))
	require.Empty(t, got)

	require.NoError(t, s.MarkSuccess(1))
	require.Equal(t, []types.TransferStatus{types.StatusSuccess}, got)
}

func TestOnCompleteFiresOnRollbackFailure(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.CreatePending(originEvent(2)))

	var got []types.TransferStatus
	s.RegisterOnComplete(2, func(status types.TransferStatus) {
		got = append(got, status)
	})

	require.NoError(t, s.AttachDestination(2, destEvent(2)))
	require.NoError(t, s.MarkFailed(2))
	require.NoError(t, s.MarkRollbackReady(2))
	require.NoError(t, s.MarkFailed(2))
	require.Equal(t, []types.TransferStatus{types.StatusFailed}, got)
}

func TestOnCompleteFiresOnIneligibleFailure(t *testing.T) {
	s := NewStore()
	origin := originEvent(3)
	origin.RollbackEligible = false
	require.NoError(t, s.CreatePending(origin))

	var got []types.TransferStatus
	s.RegisterOnComplete(3, func(status types.TransferStatus) {
		got = append(got, status)
	})

	require.NoError(t, s.AttachDestination(3, destEvent(3)))
	require.NoError(t, s.MarkFailed(3))
	require.Equal(t, []types.TransferStatus{types.StatusFailed}, got)
}
