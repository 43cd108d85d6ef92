package relay

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/store"
	"github.com/balancednetwork/balanced-network-interface-sub005/pkg/types"
)

const (
	originChain = types.ChainID("icon|0x1")
	destChain   = types.ChainID("evm|1")
)

func bridgeParams() IntentParams {
	return IntentParams{
		OriginChain:      originChain,
		DestinationChain: destChain,
		Account:          "hx1111",
		Recipient:        "0x2222",
		InputToken:       "cx_balanced_token",
		InputAmount:      big.NewInt(100),
		Fee:              big.NewInt(10),
	}
}

func TestBuildIntentClassification(t *testing.T) {
	params := bridgeParams()
	intent, err := BuildIntent(params)
	require.NoError(t, err)
	require.Equal(t, types.Bridge, intent.Type)
	require.True(t, intent.NeedsRollback)

	params.OutputToken = "0x_other_token"
	intent, err = BuildIntent(params)
	require.NoError(t, err)
	require.Equal(t, types.CrossChainSwap, intent.Type)

	params.DestinationChain = originChain
	intent, err = BuildIntent(params)
	require.NoError(t, err)
	require.Equal(t, types.SameChainSwap, intent.Type)
	require.False(t, intent.NeedsRollback)
}

func TestBuildIntentValidation(t *testing.T) {
	params := bridgeParams()
	params.InputAmount = big.NewInt(0)
	_, err := BuildIntent(params)
	require.Error(t, err)

	params = bridgeParams()
	params.Recipient = ""
	_, err = BuildIntent(params)
	require.Error(t, err)

	params = bridgeParams()
	params.SlippageTolerance = 20000
	_, err = BuildIntent(params)
	require.Error(t, err)
}

func TestBuildIntentImmutable(t *testing.T) {
	params := bridgeParams()
	intent, err := BuildIntent(params)
	require.NoError(t, err)

	params.InputAmount.SetInt64(999)
	require.Equal(t, int64(100), intent.InputAmount.Int64())
}

func TestCreditedAmountDeductsFeeOnce(t *testing.T) {
	intent, err := BuildIntent(bridgeParams())
	require.NoError(t, err)
	require.Equal(t, int64(90), CreditedAmount(intent).Int64())
	// calling again must not deduct twice
	require.Equal(t, int64(90), CreditedAmount(intent).Int64())
}

func TestEstimator(t *testing.T) {
	origin := newFakeChain(originChain, false)
	chains := Registry{originChain: origin}
	estimator := NewEstimator(chains)

	fee, err := estimator.MessageFee(context.Background(), originChain, destChain, true)
	require.NoError(t, err)
	require.Equal(t, int64(10), fee.Int64())

	require.NoError(t, estimator.CheckNativeBalance(context.Background(), originChain, "hx1111", big.NewInt(500)))
	err = estimator.CheckNativeBalance(context.Background(), originChain, "hx1111", big.NewInt(2_000_000))
	require.ErrorIs(t, err, types.ErrInsufficientGas)
}

func TestGateApprovedWithoutSideEffect(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.allowances[allowanceKey("token", "owner", "spender")] = big.NewInt(500)
	gate := NewGate(Registry{originChain: origin})

	state, err := gate.Check(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, types.Approved, state)
	require.Nil(t, origin.approvedAmount)
}

func TestGateApproveRaisesAndRederives(t *testing.T) {
	origin := newFakeChain(originChain, false)
	gate := NewGate(Registry{originChain: origin})

	state, err := gate.Check(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, types.NotApproved, state)

	state, err = gate.Approve(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, types.Approved, state)
	require.Equal(t, int64(100), origin.approvedAmount.Int64())
}

func TestGateApprovePollsForDelayedReceipt(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.receiptFailures = 2
	gate := NewGate(Registry{originChain: origin})
	gate.PollInterval = time.Millisecond

	state, err := gate.Approve(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.NoError(t, err)
	require.Equal(t, types.Approved, state)
	require.Equal(t, int64(100), origin.approvedAmount.Int64())
}

func TestGateReceiptExhaustionLeavesNotApproved(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.receiptFailures = 100
	gate := NewGate(Registry{originChain: origin})
	gate.PollInterval = time.Millisecond
	gate.MaxAttempts = 3

	state, err := gate.Approve(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.Error(t, err)
	require.Equal(t, types.NotApproved, state)
}

func TestGateRejectionLeavesNotApproved(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.approveErr = types.ErrUserRejected
	gate := NewGate(Registry{originChain: origin})

	state, err := gate.Approve(context.Background(), originChain, "token", "owner", "spender", big.NewInt(100))
	require.Error(t, err)
	require.Equal(t, types.NotApproved, state)
}

func newExtractorFixture(origin, dest *fakeChain, watcher DestinationWatcher) (*Extractor, *store.Store) {
	lifecycle := store.NewStore()
	chains := Registry{origin.id: origin, dest.id: dest}
	extractor := NewExtractor(chains, lifecycle, nil, watcher)
	extractor.PollInterval = time.Millisecond
	extractor.MaxAttempts = 3
	return extractor, lifecycle
}

type recordingWatcher struct {
	origins       []types.OriginEvent
	originWatches []types.OriginEvent
}

func (w *recordingWatcher) Watch(ctx context.Context, origin types.OriginEvent) error {
	w.origins = append(w.origins, origin)
	return nil
}

func (w *recordingWatcher) WatchOrigin(ctx context.Context, origin types.OriginEvent) error {
	w.originWatches = append(w.originWatches, origin)
	return nil
}

func TestExtractorCreatesPendingTransfer(t *testing.T) {
	origin := newFakeChain(originChain, false)
	dest := newFakeChain(destChain, true)
	watcher := &recordingWatcher{}
	extractor, lifecycle := newExtractorFixture(origin, dest, watcher)

	intent, err := BuildIntent(bridgeParams())
	require.NoError(t, err)
	txHash, err := origin.SendCallMessage(context.Background(), intent)
	require.NoError(t, err)

	event, err := extractor.WaitForOrigin(context.Background(), intent, txHash)
	require.NoError(t, err)
	require.Equal(t, uint64(42), event.Sn)
	require.True(t, event.AutoExecute) // destination chain policy
	require.True(t, event.RollbackEligible)

	entry, err := lifecycle.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, entry.Status)
	require.Len(t, watcher.origins, 1)
	// rollback-eligible transfers also watch their origin-side outcome
	require.Len(t, watcher.originWatches, 1)
}

func TestExtractorReceiptTimeout(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.noReceipt = true
	dest := newFakeChain(destChain, true)
	extractor, lifecycle := newExtractorFixture(origin, dest, &recordingWatcher{})

	intent, err := BuildIntent(bridgeParams())
	require.NoError(t, err)
	txHash, err := origin.SendCallMessage(context.Background(), intent)
	require.NoError(t, err)

	_, err = extractor.WaitForOrigin(context.Background(), intent, txHash)
	require.ErrorIs(t, err, types.ErrReceiptTimeout)
	// never entered into the store
	require.Empty(t, lifecycle.List())
}

func TestExtractorProtocolMismatch(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.omitEvent = true
	dest := newFakeChain(destChain, true)
	extractor, lifecycle := newExtractorFixture(origin, dest, &recordingWatcher{})

	intent, err := BuildIntent(bridgeParams())
	require.NoError(t, err)
	txHash, err := origin.SendCallMessage(context.Background(), intent)
	require.NoError(t, err)

	_, err = extractor.WaitForOrigin(context.Background(), intent, txHash)
	require.ErrorIs(t, err, types.ErrProtocolMismatch)
	require.Empty(t, lifecycle.List())
}

func TestSubmitterDistinguishesRejectionFromSubmissionError(t *testing.T) {
	origin := newFakeChain(originChain, false)
	dest := newFakeChain(destChain, true)
	extractor, _ := newExtractorFixture(origin, dest, &recordingWatcher{})
	submitter := NewSubmitter(Registry{originChain: origin, destChain: dest}, extractor)

	intent, err := BuildIntent(bridgeParams())
	require.NoError(t, err)

	origin.sendErr = types.ErrUserRejected
	_, err = submitter.Submit(context.Background(), intent)
	require.ErrorIs(t, err, types.ErrUserRejected)

	origin.sendErr = context.DeadlineExceeded
	_, err = submitter.Submit(context.Background(), intent)
	require.ErrorIs(t, err, types.ErrSubmission)
}

func executableEntry(t *testing.T, lifecycle *store.Store, sn uint64, rollbackEligible, autoExecute bool) types.LifecycleEntry {
	t.Helper()
	require.NoError(t, lifecycle.CreatePending(types.OriginEvent{
		Sn:               sn,
		OriginChain:      originChain,
		DestinationChain: destChain,
		RollbackEligible: rollbackEligible,
		AutoExecute:      autoExecute,
		CreatedAt:        time.Now(),
	}))
	require.NoError(t, lifecycle.AttachDestination(sn, types.DestinationEvent{
		Sn:               sn,
		ReqID:            7,
		Payload:          []byte{0x01},
		DestinationChain: destChain,
		AutoExecute:      autoExecute,
	}))
	entry, err := lifecycle.Get(sn)
	require.NoError(t, err)
	return entry
}

func TestConfirmExecutesAndMarksSuccess(t *testing.T) {
	dest := newFakeChain(destChain, false)
	lifecycle := store.NewStore()
	executor := NewDestinationExecutor(Registry{destChain: dest}, lifecycle, nil, nil)
	executableEntry(t, lifecycle, 42, true, false)

	require.NoError(t, executor.Confirm(context.Background(), 42))
	entry, err := lifecycle.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, entry.Status)
	require.Equal(t, []uint64{7}, dest.executedCalls)

	// not executable anymore
	require.Error(t, executor.Confirm(context.Background(), 42))
}

func TestConfirmRevertBecomesRollbackReady(t *testing.T) {
	dest := newFakeChain(destChain, false)
	dest.stageNextReceipt(&types.Receipt{
		Success: true,
		Events:  []types.ChainEvent{{Chain: destChain, Kind: types.EventCallExecuted, ReqID: 7, Code: types.CodeFailure}},
	})
	lifecycle := store.NewStore()
	executor := NewDestinationExecutor(Registry{destChain: dest}, lifecycle, nil, nil)
	executableEntry(t, lifecycle, 42, true, false)

	err := executor.Confirm(context.Background(), 42)
	require.ErrorIs(t, err, types.ErrDestinationExecutionFailed)
	entry, err := lifecycle.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusRollbackReady, entry.Status)
}

func TestConfirmRevertWithoutRollbackIsTerminal(t *testing.T) {
	dest := newFakeChain(destChain, false)
	dest.stageNextReceipt(&types.Receipt{Success: false})
	lifecycle := store.NewStore()
	executor := NewDestinationExecutor(Registry{destChain: dest}, lifecycle, nil, nil)
	executableEntry(t, lifecycle, 42, false, false)

	err := executor.Confirm(context.Background(), 42)
	require.ErrorIs(t, err, types.ErrDestinationExecutionFailed)
	entry, err := lifecycle.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusFailed, entry.Status)
}

func TestRevertReturnsFunds(t *testing.T) {
	origin := newFakeChain(originChain, false)
	dest := newFakeChain(destChain, false)
	dest.stageNextReceipt(&types.Receipt{
		Success: true,
		Events:  []types.ChainEvent{{Chain: destChain, Kind: types.EventCallExecuted, ReqID: 7, Code: types.CodeFailure}},
	})
	lifecycle := store.NewStore()
	chains := Registry{originChain: origin, destChain: dest}
	executor := NewDestinationExecutor(chains, lifecycle, nil, nil)
	rollback := NewRollbackExecutor(chains, lifecycle, nil)
	executableEntry(t, lifecycle, 42, true, false)

	require.Error(t, executor.Confirm(context.Background(), 42))
	require.NoError(t, rollback.Revert(context.Background(), 42))

	entry, err := lifecycle.Get(42)
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, entry.Status)
	require.Equal(t, []uint64{42}, origin.rolledBack)
}

func TestRevertRequiresRollbackReady(t *testing.T) {
	origin := newFakeChain(originChain, false)
	lifecycle := store.NewStore()
	rollback := NewRollbackExecutor(Registry{originChain: origin}, lifecycle, nil)
	executableEntry(t, lifecycle, 42, true, false)

	require.Error(t, rollback.Revert(context.Background(), 42))
	require.Empty(t, origin.rolledBack)
}

func TestRevertFailureIsFatal(t *testing.T) {
	origin := newFakeChain(originChain, false)
	origin.stageNextReceipt(&types.Receipt{Success: false})
	dest := newFakeChain(destChain, false)
	dest.stageNextReceipt(&types.Receipt{Success: false})
	lifecycle := store.NewStore()
	chains := Registry{originChain: origin, destChain: dest}
	executor := NewDestinationExecutor(chains, lifecycle, nil, nil)
	rollback := NewRollbackExecutor(chains, lifecycle, nil)
	executableEntry(t, lifecycle, 42, true, false)

	require.Error(t, executor.Confirm(context.Background(), 42))
	err := rollback.Revert(context.Background(), 42)
	require.ErrorIs(t, err, types.ErrRollbackFailed)

	entry, err2 := lifecycle.Get(42)
	require.NoError(t, err2)
	require.Equal(t, types.StatusFailed, entry.Status)
}
