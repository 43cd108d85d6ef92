package relayer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/balancednetwork/balanced-network-interface-sub005/config"
	"github.com/balancednetwork/balanced-network-interface-sub005/internal/api"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/clients/evm"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/clients/icon"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/db"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/events"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/listener"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/relay"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/solver"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Service wires the chain clients, the transfer registry and the
// executors into one process.
type Service struct {
	DbAdapter   *db.Adapter
	EventBus    *events.EventBus
	Lifecycle   *store.Store
	Chains      relay.Registry
	Coordinator *listener.Coordinator
	Estimator   *relay.Estimator
	Gate        *relay.Gate
	Extractor   *relay.Extractor
	Submitter   *relay.Submitter
	Executor    *relay.DestinationExecutor
	Rollback    *relay.RollbackExecutor
	Api         *api.Server

	solverClient *solver.Client
	apiAddr      string
	group        *errgroup.Group
}

func NewService(cfg *config.Config) (*Service, error) {
	chains := relay.Registry{}
	subscribers := map[types.ChainID]listener.Subscriber{}
	for i := range cfg.EvmNetworks {
		client, err := evm.NewEvmClient(&cfg.EvmNetworks[i])
		if err != nil {
			return nil, fmt.Errorf("failed to create evm client: %w", err)
		}
		chains[client.ID()] = client
		subscribers[client.ID()] = client
	}
	for i := range cfg.IconNetworks {
		client, err := icon.NewIconClient(&cfg.IconNetworks[i])
		if err != nil {
			return nil, fmt.Errorf("failed to create icon client: %w", err)
		}
		chains[client.ID()] = client
		subscribers[client.ID()] = client
	}

	var dbAdapter *db.Adapter
	var journal relay.Journal
	if cfg.Database.URL != "" {
		adapter, err := db.NewAdapter(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create database adapter: %w", err)
		}
		dbAdapter = adapter
		journal = adapter
	}

	lifecycle := store.NewStore()
	eventBus := events.NewEventBus(cfg.EventBusSize)
	coordinator := listener.NewCoordinator(subscribers, lifecycle)
	lifecycle.SetOnChange(func(change store.StatusChange) {
		eventBus.BroadcastEvent(&events.EventEnvelope{
			EventType:        statusEventType(change.Entry.Status),
			DestinationChain: change.Entry.Origin.DestinationChain,
			Sn:               change.Sn,
		})
		// a settled transfer no longer needs its origin-side watches
		if change.Terminal() {
			coordinator.Dismiss(change.Entry.Origin.OriginChain, change.Sn)
		}
	})
	extractor := relay.NewExtractor(chains, lifecycle, journal, coordinator)
	executor := relay.NewDestinationExecutor(chains, lifecycle, journal, eventBus)
	rollback := relay.NewRollbackExecutor(chains, lifecycle, journal)

	var solverClient *solver.Client
	if cfg.Solver.Endpoint != "" {
		solverClient = solver.NewClient(cfg.Solver.Endpoint)
	}

	apiAddr := cfg.API.Addr
	if apiAddr == "" {
		apiAddr = ":8080"
	}

	return &Service{
		DbAdapter:    dbAdapter,
		EventBus:     eventBus,
		Lifecycle:    lifecycle,
		Chains:       chains,
		Coordinator:  coordinator,
		Estimator:    relay.NewEstimator(chains),
		Gate:         relay.NewGate(chains),
		Extractor:    extractor,
		Submitter:    relay.NewSubmitter(chains, extractor),
		Executor:     executor,
		Rollback:     rollback,
		Api:          api.NewServer(lifecycle, executor, rollback),
		solverClient: solverClient,
		apiAddr:      apiAddr,
	}, nil
}

// Start resumes journaled transfers, then brings up the coordinator,
// the destination executor and the http server.
func (s *Service) Start(ctx context.Context) error {
	if s.DbAdapter != nil {
		if err := s.resume(ctx); err != nil {
			return fmt.Errorf("failed to resume journaled transfers: %w", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	s.group = group
	group.Go(func() error {
		s.Coordinator.Run(ctx)
		return nil
	})
	s.Executor.Start(ctx)
	group.Go(func() error {
		return s.Api.Start(s.apiAddr)
	})
	log.Info().Int("chains", len(s.Chains)).Msg("[Relayer] [Start] service started")
	return nil
}

// resume reloads open transfers from the journal. Pending entries get
// their destination subscription re-opened; executable entries marked
// auto-execute are re-driven through the executor.
func (s *Service) resume(ctx context.Context) error {
	entries, err := s.DbAdapter.LoadOpen()
	if err != nil {
		return err
	}
	s.Lifecycle.Resume(entries)
	for _, entry := range entries {
		switch entry.Status {
		case types.StatusPending:
			if err := s.Coordinator.Watch(ctx, entry.Origin); err != nil {
				log.Warn().Err(err).Uint64("sn", entry.Sn).
					Msg("[Relayer] [resume] cannot re-watch pending transfer")
			}
		case types.StatusExecutable:
			if entry.Destination != nil && entry.Destination.AutoExecute {
				sn := entry.Sn
				go func() {
					if err := s.Executor.Confirm(ctx, sn); err != nil {
						log.Warn().Err(err).Uint64("sn", sn).
							Msg("[Relayer] [resume] cannot re-drive executable transfer")
					}
				}()
			}
		}
	}
	log.Info().Int("count", len(entries)).Msg("[Relayer] [resume] resumed journaled transfers")
	return nil
}

// NewSolverFlow builds an intent-order flow against the configured
// solver endpoint.
func (s *Service) NewSolverFlow(signer solver.Signer) (*solver.Flow, error) {
	if s.solverClient == nil {
		return nil, fmt.Errorf("solver endpoint is not configured")
	}
	return solver.NewFlow(s.solverClient, signer), nil
}

func (s *Service) Stop(ctx context.Context) {
	log.Info().Msg("[Relayer] [Stop] shutting down")
	if err := s.Api.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("[Relayer] [Stop] http server shutdown failed")
	}
	s.Coordinator.Stop()
	s.EventBus.Close()
	if s.group != nil {
		if err := s.group.Wait(); err != nil {
			log.Warn().Err(err).Msg("[Relayer] [Stop] shutdown finished with error")
		}
	}
}

func statusEventType(status types.TransferStatus) string {
	switch status {
	case types.StatusExecutable:
		return events.EVENT_TRANSFER_EXECUTABLE
	case types.StatusSuccess:
		return events.EVENT_TRANSFER_SUCCESS
	case types.StatusFailed:
		return events.EVENT_TRANSFER_FAILED
	case types.StatusRollbackReady:
		return events.EVENT_TRANSFER_ROLLBACK_READY
	default:
		return events.EVENT_TRANSFER_PENDING
	}
}
