package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/store"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

const (
	algoSender   = "ALGOSENDER"
	algoReceiver = "ALGORECEIVER"
	evmSender    = "0xAaAa000000000000000000000000000000000001"
	evmReceiver  = "0xBbBb000000000000000000000000000000000002"
)

type submission struct {
	bridgeID string
	receiver string
	amount   decimal.Decimal
	sigs     []types.VerifierSignature
}

// fakeAdapter records submissions and answers with synthetic transaction
// ids. Address validation rejects anything containing "bad".
type fakeAdapter struct {
	mu      sync.Mutex
	chainID types.ChainID

	lockErr    error
	burnErr    error
	mintErr    error
	releaseErr error

	mints    []submission
	releases []submission

	status    types.Status
	statusErr error

	seq int
}

func (a *fakeAdapter) Chain() types.ChainID { return a.chainID }

func (a *fakeAdapter) CanonicalAddress(addr string) (string, error) {
	if addr == "" || addr == "bad-address" {
		return "", &types.ValidationError{Field: "address", Reason: "malformed for " + string(a.chainID)}
	}
	return addr, nil
}

func (a *fakeAdapter) EscrowAccount() string { return "ESCROW-" + string(a.chainID) }
func (a *fakeAdapter) AssetID() string       { return "asset-" + string(a.chainID) }

func (a *fakeAdapter) nextID(prefix string) string {
	a.seq++
	return fmt.Sprintf("%s-%s-%d", prefix, a.chainID, a.seq)
}

func (a *fakeAdapter) Lock(_ context.Context, sender, receiver string, amount decimal.Decimal, _ chain.LockOptions) (*chain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lockErr != nil {
		return nil, a.lockErr
	}
	return &chain.Result{Success: true, TransactionID: a.nextID("lock"), BridgeID: a.nextID("bridge"), Status: types.StatusLocked}, nil
}

func (a *fakeAdapter) Burn(_ context.Context, sender, receiver string, amount decimal.Decimal, _ chain.BurnOptions) (*chain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.burnErr != nil {
		return nil, a.burnErr
	}
	return &chain.Result{Success: true, TransactionID: a.nextID("burn"), BridgeID: a.nextID("bridge"), Status: types.StatusBurned}, nil
}

func (a *fakeAdapter) Mint(_ context.Context, bridgeID, receiver string, amount decimal.Decimal, _ string, sigs []types.VerifierSignature, _ chain.MintOptions) (*chain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mintErr != nil {
		return nil, a.mintErr
	}
	a.mints = append(a.mints, submission{bridgeID: bridgeID, receiver: receiver, amount: amount, sigs: sigs})
	return &chain.Result{Success: true, TransactionID: a.nextID("mint"), BridgeID: bridgeID, Status: types.StatusMinted}, nil
}

func (a *fakeAdapter) Release(_ context.Context, bridgeID, receiver string, amount decimal.Decimal, _ chain.ReleaseOptions) (*chain.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.releaseErr != nil {
		return nil, a.releaseErr
	}
	a.releases = append(a.releases, submission{bridgeID: bridgeID, receiver: receiver, amount: amount})
	return &chain.Result{Success: true, TransactionID: a.nextID("release"), BridgeID: bridgeID, Status: types.StatusReleased}, nil
}

func (a *fakeAdapter) StatusOf(context.Context, string) (types.Status, error) {
	return a.status, a.statusErr
}

func (a *fakeAdapter) TransferProof(context.Context, string) (*chain.TransferProof, error) {
	return nil, errors.New("not used")
}

func (a *fakeAdapter) mintCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.mints)
}

func (a *fakeAdapter) releaseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.releases)
}

type fakeVerifier struct {
	mu     sync.Mutex
	result types.VerificationResult
	calls  int
}

func (v *fakeVerifier) Verify(_ context.Context, _ *types.BridgeTransaction) types.VerificationResult {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	return v.result
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

func quorumResult() types.VerificationResult {
	return types.VerificationResult{
		IsValid: true,
		Signatures: []types.VerifierSignature{
			{Verifier: "v1", Signature: "0xsig1"},
			{Verifier: "v2", Signature: "0xsig2"},
			{Verifier: "v3", Signature: "0xsig3"},
		},
		Timestamp: time.Now(),
	}
}

type fixture struct {
	orch     *Orchestrator
	store    *store.Memory
	bus      *events.Bus
	algorand *fakeAdapter
	evm      *fakeAdapter
	verifier *fakeVerifier
}

func newFixture(t *testing.T, verifier *fakeVerifier) *fixture {
	t.Helper()
	cfg := &config.Configuration{
		MinVerifierSignatures: 3,
		TimeoutMs:             config.DefaultTimeoutMs,
		VerifierTimeoutMs:     config.DefaultVerifierTimeoutMs,
	}
	st := store.NewMemory()
	bus := events.NewBus()
	algorand := &fakeAdapter{chainID: types.ChainAlgorand}
	evm := &fakeAdapter{chainID: types.ChainEVM}
	adapters := map[types.ChainID]chain.Adapter{
		types.ChainAlgorand: algorand,
		types.ChainEVM:      evm,
	}
	orch := New(cfg, st, bus, verifier, adapters)
	t.Cleanup(orch.Close)
	return &fixture{orch: orch, store: st, bus: bus, algorand: algorand, evm: evm, verifier: verifier}
}

func waitForStatus(t *testing.T, f *fixture, id string, want types.Status) *types.BridgeTransaction {
	t.Helper()
	var tx *types.BridgeTransaction
	require.Eventually(t, func() bool {
		var err error
		tx, err = f.store.Get(id)
		return err == nil && tx != nil && tx.Status == want
	}, 5*time.Second, 10*time.Millisecond, "transaction %s never reached %s", id, want)
	return tx
}

type eventRecorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *eventRecorder) record(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *eventRecorder) ofType(eventType events.Type) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, ev := range r.evs {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func validMetadata() *types.CarbonCreditMetadata {
	return &types.CarbonCreditMetadata{
		ProjectID:             "VCS-1529",
		VintageYear:           2022,
		CertificationStandard: "Verra",
		CreditType:            "removal",
		SerialNumber:          "1529-2022-0001",
		IssuanceDate:          time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestBridgeToTargetChainMints(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	rec := &eventRecorder{}
	f.bus.On(events.TypeAny, rec.record)

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.BridgeID)

	tx := waitForStatus(t, f, res.BridgeID, types.StatusMinted)
	require.Equal(t, types.ChainAlgorand, tx.SourceChain)
	require.Equal(t, types.ChainEVM, tx.TargetChain)
	require.NotEmpty(t, tx.TargetTransactionID)
	require.Equal(t, "VCS-1529", tx.Metadata.ProjectID)

	require.Equal(t, 1, f.evm.mintCount())
	mint := f.evm.mints[0]
	require.Equal(t, res.BridgeID, mint.bridgeID)
	require.Equal(t, evmReceiver, mint.receiver)
	require.True(t, decimal.RequireFromString("100").Equal(mint.amount), "scale conversion must not change the value")
	require.Len(t, mint.sigs, 3)

	require.Len(t, rec.ofType(events.TypeLock), 1)
	require.Len(t, rec.ofType(events.TypeVerification), 1)
	mints := rec.ofType(events.TypeMint)
	require.Len(t, mints, 1)
	details, ok := mints[0].Details.(events.MintDetails)
	require.True(t, ok)
	require.Equal(t, tx.TargetTransactionID, details.TargetTransactionID)
	require.Len(t, details.Signatures, 3)
}

func TestBridgeToAlgorandReleases(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	rec := &eventRecorder{}
	f.bus.On(events.TypeAny, rec.record)

	res, err := f.orch.BridgeToAlgorand(context.Background(), evmSender, algoReceiver,
		decimal.RequireFromString("25.5"), chain.BurnOptions{})
	require.NoError(t, err)

	tx := waitForStatus(t, f, res.BridgeID, types.StatusReleased)
	require.Equal(t, types.ChainEVM, tx.SourceChain)
	require.Equal(t, types.ChainAlgorand, tx.TargetChain)
	require.Nil(t, tx.Metadata)

	require.Equal(t, 1, f.algorand.releaseCount())
	release := f.algorand.releases[0]
	require.Equal(t, algoReceiver, release.receiver)
	require.True(t, decimal.RequireFromString("25.5").Equal(release.amount))

	require.Len(t, rec.ofType(events.TypeBurn), 1)
	require.Len(t, rec.ofType(events.TypeRelease), 1)
	require.Equal(t, 0, f.evm.mintCount())
}

func TestQuorumFailureMarksFailedWithoutMint(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{
		IsValid:    false,
		Signatures: []types.VerifierSignature{{Verifier: "v1", Signature: "0xsig1"}},
		Err:        errors.New("quorum not reached: 1 of 3 required signatures"),
	}}
	f := newFixture(t, verifier)

	rec := &eventRecorder{}
	f.bus.On(events.TypeError, rec.record)

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("10"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)

	tx := waitForStatus(t, f, res.BridgeID, types.StatusFailed)
	require.Contains(t, tx.Message, "quorum not reached")
	require.Equal(t, 0, f.evm.mintCount(), "no wrapped tokens without a valid verification")
	require.Equal(t, 0, f.algorand.releaseCount())

	errs := rec.ofType(events.TypeError)
	require.Len(t, errs, 1)
	details, ok := errs[0].Details.(events.ErrorDetails)
	require.True(t, ok)
	require.Equal(t, "verification", details.Stage)
}

func TestLockedTimeoutCompensatesToSender(t *testing.T) {
	// the verifier reports expiry, so the mirror leg never runs and the
	// record stays locked until the timeout event arrives
	verifier := &fakeVerifier{result: types.VerificationResult{
		IsValid: false,
		Err:     &types.TimeoutError{ID: "whatever", ElapsedMs: 100000},
	}}
	f := newFixture(t, verifier)

	rec := &eventRecorder{}
	f.bus.On(events.TypeRelease, rec.record)

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return verifier.callCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	tx, err := f.store.Get(res.BridgeID)
	require.NoError(t, err)
	require.Equal(t, types.StatusLocked, tx.Status)

	f.bus.Emit(events.Event{Type: events.TypeTimeout, Transaction: tx, Details: events.TimeoutDetails{ElapsedMs: 100000}})

	failed := waitForStatus(t, f, res.BridgeID, types.StatusFailed)
	require.Contains(t, failed.Message, "returned to sender")

	require.Equal(t, 1, f.algorand.releaseCount())
	comp := f.algorand.releases[0]
	require.Equal(t, algoSender, comp.receiver, "compensation pays the original sender")
	require.True(t, decimal.RequireFromString("100").Equal(comp.amount), "compensation carries no fee")
	require.Equal(t, 0, f.evm.mintCount())

	releases := rec.ofType(events.TypeRelease)
	require.Len(t, releases, 1)
	details, ok := releases[0].Details.(events.ReleaseDetails)
	require.True(t, ok)
	require.True(t, details.Compensation)
}

func TestBurnedTimeoutRemintsToSender(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{
		IsValid: false,
		Err:     &types.TimeoutError{ID: "whatever", ElapsedMs: 100000},
	}}
	f := newFixture(t, verifier)

	res, err := f.orch.BridgeToAlgorand(context.Background(), evmSender, algoReceiver,
		decimal.RequireFromString("40"), chain.BurnOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return verifier.callCount() >= 1 }, 5*time.Second, 10*time.Millisecond)
	tx, err := f.store.Get(res.BridgeID)
	require.NoError(t, err)
	require.Equal(t, types.StatusBurned, tx.Status)

	f.bus.Emit(events.Event{Type: events.TypeTimeout, Transaction: tx, Details: events.TimeoutDetails{ElapsedMs: 100000}})

	failed := waitForStatus(t, f, res.BridgeID, types.StatusFailed)
	require.Contains(t, failed.Message, "re-minted to sender")

	require.Equal(t, 1, f.evm.mintCount())
	comp := f.evm.mints[0]
	require.Equal(t, evmSender, comp.receiver)
	require.Equal(t, 0, f.algorand.releaseCount())
}

func TestTimeoutOnTerminalTransactionIsIgnored(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)
	tx := waitForStatus(t, f, res.BridgeID, types.StatusMinted)

	f.bus.Emit(events.Event{Type: events.TypeTimeout, Transaction: tx, Details: events.TimeoutDetails{ElapsedMs: 1}})

	again, err := f.store.Get(res.BridgeID)
	require.NoError(t, err)
	require.Equal(t, types.StatusMinted, again.Status, "terminal states are frozen")
	require.Equal(t, 0, f.algorand.releaseCount())
}

func TestDuplicateLockEventMintsOnce(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)
	tx := waitForStatus(t, f, res.BridgeID, types.StatusMinted)

	// duplicate delivery of the same origin observation
	f.bus.Emit(events.Event{
		Type:        events.TypeLock,
		Transaction: tx,
		Details:     events.LockDetails{SourceTransactionID: tx.SourceTransactionID},
	})

	require.Never(t, func() bool { return f.evm.mintCount() > 1 }, 300*time.Millisecond, 25*time.Millisecond,
		"a duplicate event must not double mint")

	all, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestDuplicateLockEventWithoutSourceRefMintsOnce(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)
	tx := waitForStatus(t, f, res.BridgeID, types.StatusMinted)

	// a re-delivered snapshot may lack or differ in the origin reference,
	// so dedup by source transaction id alone cannot catch it
	for _, sourceRef := range []string{"", "other-origin-tx"} {
		dup := tx.Clone()
		dup.SourceTransactionID = sourceRef
		f.bus.Emit(events.Event{
			Type:        events.TypeLock,
			Transaction: dup,
			Details:     events.LockDetails{SourceTransactionID: sourceRef},
		})
	}

	require.Never(t, func() bool { return f.evm.mintCount() > 1 }, 300*time.Millisecond, 25*time.Millisecond,
		"a replayed observation must never reset a terminal record")

	again, err := f.store.Get(res.BridgeID)
	require.NoError(t, err)
	require.Equal(t, types.StatusMinted, again.Status)
	require.Equal(t, tx.SourceTransactionID, again.SourceTransactionID)

	all, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestMintFailureMarksFailed(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})
	f.evm.mintErr = errors.New("execution reverted")

	rec := &eventRecorder{}
	f.bus.On(events.TypeError, rec.record)

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)

	tx := waitForStatus(t, f, res.BridgeID, types.StatusFailed)
	require.Contains(t, tx.Message, "execution reverted")

	errs := rec.ofType(events.TypeError)
	require.Len(t, errs, 1)
	details, ok := errs[0].Details.(events.ErrorDetails)
	require.True(t, ok)
	require.Equal(t, "mirror", details.Stage)
}

func TestValidationRejections(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})
	ctx := context.Background()
	amount := decimal.RequireFromString("10")

	_, err := f.orch.BridgeToTargetChain(ctx, "", evmReceiver, amount, nil, chain.LockOptions{})
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "sender", vErr.Field)

	_, err = f.orch.BridgeToTargetChain(ctx, algoSender, "", amount, nil, chain.LockOptions{})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "receiver", vErr.Field)

	_, err = f.orch.BridgeToTargetChain(ctx, "bad-address", evmReceiver, amount, nil, chain.LockOptions{})
	require.Error(t, err)

	_, err = f.orch.BridgeToTargetChain(ctx, algoSender, evmReceiver, decimal.RequireFromString("-1"), nil, chain.LockOptions{})
	require.Error(t, err)

	// finer than Algorand's six decimals cannot round trip
	_, err = f.orch.BridgeToTargetChain(ctx, algoSender, evmReceiver, decimal.RequireFromString("0.0000001"), nil, chain.LockOptions{})
	require.Error(t, err)

	incomplete := validMetadata()
	incomplete.ProjectID = ""
	_, err = f.orch.BridgeToTargetChain(ctx, algoSender, evmReceiver, amount, incomplete, chain.LockOptions{})
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "metadata", vErr.Field)

	badYear := validMetadata()
	badYear.VintageYear = 1901
	_, err = f.orch.BridgeToTargetChain(ctx, algoSender, evmReceiver, amount, badYear, chain.LockOptions{})
	require.Error(t, err)

	require.Equal(t, 0, f.evm.mintCount())
	require.Equal(t, 0, f.algorand.releaseCount())
	all, listErr := f.store.List()
	require.NoError(t, listErr)
	require.Empty(t, all, "rejected submissions leave no ledger record")
}

func TestLockSubmissionErrorSurfaces(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})
	f.algorand.lockErr = errors.New("overspend")

	_, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("10"), validMetadata(), chain.LockOptions{})
	var subErr *types.ChainSubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, types.ChainAlgorand, subErr.Chain)
	require.Equal(t, "lock", subErr.Op)
}

func TestFeeDeductedFromMintedAmount(t *testing.T) {
	verifier := &fakeVerifier{result: quorumResult()}
	cfg := &config.Configuration{
		MinVerifierSignatures: 3,
		TimeoutMs:             config.DefaultTimeoutMs,
		VerifierTimeoutMs:     config.DefaultVerifierTimeoutMs,
		FeePercentage:         1,
	}
	st := store.NewMemory()
	bus := events.NewBus()
	algorand := &fakeAdapter{chainID: types.ChainAlgorand}
	evm := &fakeAdapter{chainID: types.ChainEVM}
	orch := New(cfg, st, bus, verifier, map[types.ChainID]chain.Adapter{
		types.ChainAlgorand: algorand,
		types.ChainEVM:      evm,
	})
	t.Cleanup(orch.Close)

	res, err := orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return evm.mintCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.True(t, decimal.RequireFromString("99").Equal(evm.mints[0].amount),
		"one percent bridge fee comes out of the minted amount")

	tx, err := st.Get(res.BridgeID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("100").Equal(tx.Amount), "the ledger keeps the gross amount")
}

func TestGetTransactionStatusFallsBackToChains(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})
	ctx := context.Background()

	f.algorand.status = types.StatusReleased
	status, err := f.orch.GetTransactionStatus(ctx, "unknown-id")
	require.NoError(t, err)
	require.Equal(t, types.StatusReleased, status)

	// a failed answer from the origin chain defers to the target chain
	f.algorand.status = types.StatusFailed
	f.evm.status = types.StatusMinted
	status, err = f.orch.GetTransactionStatus(ctx, "unknown-id")
	require.NoError(t, err)
	require.Equal(t, types.StatusMinted, status)

	// both lookups erroring is a hard miss
	f.algorand.statusErr = errors.New("node down")
	f.evm.statusErr = errors.New("node down")
	_, err = f.orch.GetTransactionStatus(ctx, "unknown-id")
	require.Error(t, err)
}

func TestGetTransactionStatusPrefersLedger(t *testing.T) {
	f := newFixture(t, &fakeVerifier{result: quorumResult()})

	res, err := f.orch.BridgeToTargetChain(context.Background(), algoSender, evmReceiver,
		decimal.RequireFromString("100"), validMetadata(), chain.LockOptions{})
	require.NoError(t, err)
	waitForStatus(t, f, res.BridgeID, types.StatusMinted)

	f.algorand.status = types.StatusFailed
	status, err := f.orch.GetTransactionStatus(context.Background(), res.BridgeID)
	require.NoError(t, err)
	require.Equal(t, types.StatusMinted, status)
}
