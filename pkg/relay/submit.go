package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/metrics"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

// Submitter signs and sends the origin-chain transaction of an intent.
// It returns the transaction hash as soon as the wallet accepts;
// confirmation is the extractor's job.
type Submitter struct {
	chains    Registry
	extractor *Extractor
}

func NewSubmitter(chains Registry, extractor *Extractor) *Submitter {
	return &Submitter{chains: chains, extractor: extractor}
}

// Submit sends exactly one transaction and registers a pending watch
// for it with the origin extractor. The watch runs in its own task; the
// caller observes the outcome through the lifecycle store.
func (s *Submitter) Submit(ctx context.Context, intent *types.TransactionIntent) (string, error) {
	client, err := s.chains.Get(intent.OriginChain)
	if err != nil {
		return "", err
	}
	txHash, err := client.SendCallMessage(ctx, intent)
	if err != nil {
		if errors.Is(err, types.ErrUserRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", types.ErrSubmission, err)
	}
	log.Info().Str("chain", intent.OriginChain.String()).
		Str("txHash", txHash).
		Str("type", intent.Type.String()).
		Msg("[Submitter] [Submit] origin transaction accepted")
	metrics.TransfersSubmitted.WithLabelValues(intent.OriginChain.String()).Inc()

	s.extractor.WatchAsync(ctx, intent, txHash)
	return txHash, nil
}
