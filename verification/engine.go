// Package verification proves that a claimed transfer occurred on its
// origin chain and collects a quorum of independent attestations before
// the mirrored operation is authorized.
package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// ClockSkewTolerance bounds how far into the future a transaction
// timestamp may sit before it is treated as malformed rather than fresh.
const ClockSkewTolerance = 5 * time.Minute

type Engine struct {
	cfg      *config.Configuration
	adapters map[types.ChainID]chain.Adapter
	bus      *events.Bus
	client   *http.Client
}

func NewEngine(cfg *config.Configuration, adapters map[types.ChainID]chain.Adapter, bus *events.Bus) *Engine {
	return &Engine{
		cfg:      cfg,
		adapters: adapters,
		bus:      bus,
		client:   &http.Client{},
	}
}

// IsTimedOut reports whether a transaction created at ts has exceeded the
// configured window. Timestamps more than ClockSkewTolerance in the future
// are never timed out.
func IsTimedOut(ts time.Time, timeoutMs int64, now time.Time) bool {
	if ts.After(now.Add(ClockSkewTolerance)) {
		return false
	}
	return now.Sub(ts) > time.Duration(timeoutMs)*time.Millisecond
}

// Verify runs the two independent checks gating a mint or release: the
// on-chain proof check and the quorum attestation. It never mutates the
// transaction; the orchestrator applies the result.
func (e *Engine) Verify(ctx context.Context, tx *types.BridgeTransaction) types.VerificationResult {
	now := time.Now()
	if IsTimedOut(tx.Timestamp, e.cfg.TimeoutMs, now) {
		elapsed := now.Sub(tx.Timestamp).Milliseconds()
		log.Warn().Str("id", tx.ID).Int64("elapsedMs", elapsed).
			Msg("[Engine] [Verify] transaction exceeded verification window")
		e.bus.Emit(events.Event{
			Type:        events.TypeTimeout,
			Transaction: tx.Clone(),
			Details:     events.TimeoutDetails{ElapsedMs: elapsed},
		})
		return types.VerificationResult{
			IsValid:   false,
			Timestamp: now,
			Err:       &types.TimeoutError{ID: tx.ID, ElapsedMs: elapsed},
		}
	}

	if err := e.checkProof(ctx, tx); err != nil {
		log.Warn().Str("id", tx.ID).Err(err).Msg("[Engine] [Verify] proof check failed")
		return types.VerificationResult{IsValid: false, Timestamp: time.Now(), Err: err}
	}

	sigs := e.collectSignatures(ctx, tx)
	valid := len(sigs) >= e.cfg.MinVerifierSignatures
	if !valid {
		log.Warn().Str("id", tx.ID).Int("accepted", len(sigs)).
			Int("required", e.cfg.MinVerifierSignatures).
			Msg("[Engine] [Verify] quorum not reached")
		return types.VerificationResult{
			IsValid:    false,
			Signatures: sigs,
			Timestamp:  time.Now(),
			Err:        fmt.Errorf("quorum not reached: %d of %d required signatures", len(sigs), e.cfg.MinVerifierSignatures),
		}
	}

	log.Info().Str("id", tx.ID).Int("signatures", len(sigs)).Msg("[Engine] [Verify] quorum reached")
	return types.VerificationResult{IsValid: true, Signatures: sigs, Timestamp: time.Now()}
}

// checkProof confirms the referenced origin transaction against the
// transaction's own claim. Any mismatch is a hard failure, not retried.
func (e *Engine) checkProof(ctx context.Context, tx *types.BridgeTransaction) error {
	adapter, ok := e.adapters[tx.SourceChain]
	if !ok {
		return fmt.Errorf("no adapter for origin chain %s", tx.SourceChain)
	}
	if tx.SourceTransactionID == "" {
		return fmt.Errorf("transaction %s carries no origin transaction reference", tx.ID)
	}

	proof, err := adapter.TransferProof(ctx, tx.SourceTransactionID)
	if err != nil {
		return fmt.Errorf("proof lookup for %s: %w", tx.SourceTransactionID, err)
	}
	if !proof.Confirmed {
		return fmt.Errorf("origin transaction %s is not confirmed", tx.SourceTransactionID)
	}

	expectedKind := chain.KindContractCall
	if tx.SourceChain == types.ChainAlgorand {
		expectedKind = chain.KindAssetTransfer
	}
	if proof.Kind != expectedKind {
		return fmt.Errorf("origin transaction %s has kind %s, expected %s", tx.SourceTransactionID, proof.Kind, expectedKind)
	}
	if proof.AssetID != adapter.AssetID() {
		return fmt.Errorf("origin transaction %s moved asset %s, expected %s", tx.SourceTransactionID, proof.AssetID, adapter.AssetID())
	}
	if proof.Counterparty != adapter.EscrowAccount() {
		return fmt.Errorf("origin transaction %s counterparty %s is not the escrow account", tx.SourceTransactionID, proof.Counterparty)
	}

	expected := types.BaseUnits(tx.Amount, config.ChainDecimals[tx.SourceChain])
	if proof.BaseAmount == nil || proof.BaseAmount.Cmp(expected) != 0 {
		return fmt.Errorf("origin transaction %s amount %v does not match expected %v base units", tx.SourceTransactionID, proof.BaseAmount, expected)
	}

	// correlation data is optional on-chain; when present it must match
	// exactly
	if proof.NoteReceiver != "" && proof.NoteReceiver != tx.Receiver {
		return fmt.Errorf("origin transaction %s note receiver %s does not match %s", tx.SourceTransactionID, proof.NoteReceiver, tx.Receiver)
	}
	if proof.NoteTarget != "" && proof.NoteTarget != tx.TargetChain {
		return fmt.Errorf("origin transaction %s note target chain %s does not match %s", tx.SourceTransactionID, proof.NoteTarget, tx.TargetChain)
	}
	return nil
}

type signRequest struct {
	TransactionHash string `json:"transactionHash"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// collectSignatures asks every configured verifier, concurrently and each
// under its own timeout, to sign the canonical hash. Malformed, erroring or
// late responses are dropped silently; the decision is taken only after
// every request has settled, so signatures already in flight are kept for
// audit even once the threshold is reachable.
func (e *Engine) collectSignatures(ctx context.Context, tx *types.BridgeTransaction) []types.VerifierSignature {
	hash := CanonicalHashHex(tx)
	perRequest := time.Duration(e.cfg.VerifierTimeoutMs) * time.Millisecond

	var (
		mu   sync.Mutex
		sigs []types.VerifierSignature
		wg   sync.WaitGroup
	)
	for _, v := range e.cfg.Verifiers {
		wg.Add(1)
		go func(v config.VerifierConfig) {
			defer wg.Done()
			sig, err := e.requestSignature(ctx, v.URL, hash, perRequest)
			if err != nil {
				log.Debug().Str("verifier", v.URL).Err(err).Msg("[Engine] [collectSignatures] dropping response")
				return
			}
			mu.Lock()
			sigs = append(sigs, types.VerifierSignature{Verifier: v.Address, Signature: sig})
			mu.Unlock()
		}(v)
	}
	wg.Wait()
	return sigs
}

func (e *Engine) requestSignature(ctx context.Context, url, hash string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(signRequest{TransactionHash: hash})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url+"/sign", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("verifier returned status %d", resp.StatusCode)
	}

	var parsed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("cannot decode verifier response: %w", err)
	}
	// a response is accepted exactly when a well-formed signature field is
	// present
	if parsed.Signature == "" {
		return "", fmt.Errorf("verifier response missing signature")
	}
	return parsed.Signature, nil
}
