package relayer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/balanced-network-interface-sub005/config"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/events"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	service, err := NewService(&config.Config{
		API:          config.APIConfig{Addr: "127.0.0.1:0"},
		EventBusSize: 8,
	})
	require.NoError(t, err)
	return service
}

func TestStatusEventType(t *testing.T) {
	assert.Equal(t, events.EVENT_TRANSFER_PENDING, statusEventType(types.StatusPending))
	assert.Equal(t, events.EVENT_TRANSFER_EXECUTABLE, statusEventType(types.StatusExecutable))
	assert.Equal(t, events.EVENT_TRANSFER_SUCCESS, statusEventType(types.StatusSuccess))
	assert.Equal(t, events.EVENT_TRANSFER_FAILED, statusEventType(types.StatusFailed))
	assert.Equal(t, events.EVENT_TRANSFER_ROLLBACK_READY, statusEventType(types.StatusRollbackReady))
}

func TestLifecycleChangesReachTheBus(t *testing.T) {
	service := newTestService(t)
	destChain := types.ChainID("evm|0x1")
	received := service.EventBus.Subscribe(destChain)

	require.NoError(t, service.Lifecycle.CreatePending(types.OriginEvent{
		Sn:               1,
		OriginChain:      "icon|0x1",
		DestinationChain: destChain,
		TxHash:           "0xtx",
	}))
	require.NoError(t, service.Lifecycle.AttachDestination(1, types.DestinationEvent{
		Sn:               1,
		ReqID:            9,
		DestinationChain: destChain,
	}))

	var eventTypes []string
	for len(eventTypes) < 2 {
		select {
		case envelope := <-received:
			eventTypes = append(eventTypes, envelope.EventType)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for bus notifications")
		}
	}
	assert.Equal(t, []string{events.EVENT_TRANSFER_PENDING, events.EVENT_TRANSFER_EXECUTABLE}, eventTypes)
}

func TestSolverFlowRequiresEndpoint(t *testing.T) {
	service := newTestService(t)
	_, err := service.NewSolverFlow(nil)
	assert.Error(t, err)

	withSolver, err := NewService(&config.Config{
		Solver:       config.SolverConfig{Endpoint: "https://solver.example.com"},
		EventBusSize: 8,
	})
	require.NoError(t, err)
	flow, err := withSolver.NewSolverFlow(nil)
	require.NoError(t, err)
	assert.NotNil(t, flow)
}

func TestStartStop(t *testing.T) {
	service := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, service.Start(ctx))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	service.Stop(shutdownCtx)
}
