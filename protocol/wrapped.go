package protocol

import (
	"fmt"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// Target-side bridge status enumeration as the wrapped-token contract
// exposes it.
const (
	BridgeStatusPending = 0
	BridgeStatusMinted  = 1
	BridgeStatusBurned  = 2
)

// MintedEvent is the auditable record a successful mint emits.
type MintedEvent struct {
	BridgeID            string
	Receiver            string
	BaseAmount          uint64
	SourceTransactionID string
}

// BurnedEvent carries the fields the verification engine later matches
// against the return-leg transaction.
type BurnedEvent struct {
	BridgeID    string
	Sender      string
	BaseAmount  uint64
	Destination string // origin-chain receiver
}

// WrappedToken mirrors the target-side contract: mint gated by a threshold
// signature set, burn destroying the caller's wrapped balance.
type WrappedToken struct {
	spec     *ContractSpec
	balances map[string]uint64
	status   map[string]int
}

func NewWrappedToken(spec *ContractSpec) (*WrappedToken, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &WrappedToken{
		spec:     spec,
		balances: make(map[string]uint64),
		status:   make(map[string]int),
	}, nil
}

// Mint accepts only a signature set reaching the configured threshold,
// counting each verifier once regardless of how many signatures it
// supplied.
func (w *WrappedToken) Mint(receiver string, baseAmount uint64, bridgeID, sourceTxID string, sigs []types.VerifierSignature) (*MintedEvent, error) {
	if w.status[bridgeID] != BridgeStatusPending {
		return nil, fmt.Errorf("mint rejected: bridge id %s already processed", bridgeID)
	}
	if baseAmount == 0 {
		return nil, fmt.Errorf("mint rejected: zero amount")
	}
	distinct := make(map[string]bool)
	for _, s := range sigs {
		if w.spec.IsVerifier(s.Verifier) && s.Signature != "" {
			distinct[s.Verifier] = true
		}
	}
	if len(distinct) < w.spec.Threshold {
		return nil, fmt.Errorf("mint rejected: %d of %d required verifier signatures", len(distinct), w.spec.Threshold)
	}
	w.balances[receiver] += baseAmount
	w.status[bridgeID] = BridgeStatusMinted
	return &MintedEvent{
		BridgeID:            bridgeID,
		Receiver:            receiver,
		BaseAmount:          baseAmount,
		SourceTransactionID: sourceTxID,
	}, nil
}

// Burn destroys the caller's wrapped balance and emits the event the
// verification engine matches on the release leg.
func (w *WrappedToken) Burn(caller string, baseAmount uint64, bridgeID, originReceiver string) (*BurnedEvent, error) {
	if baseAmount == 0 {
		return nil, fmt.Errorf("burn rejected: zero amount")
	}
	if w.balances[caller] < baseAmount {
		return nil, fmt.Errorf("burn rejected: %s holds %d, needs %d", caller, w.balances[caller], baseAmount)
	}
	if w.status[bridgeID] != BridgeStatusPending {
		return nil, fmt.Errorf("burn rejected: bridge id %s already processed", bridgeID)
	}
	w.balances[caller] -= baseAmount
	w.status[bridgeID] = BridgeStatusBurned
	return &BurnedEvent{
		BridgeID:    bridgeID,
		Sender:      caller,
		BaseAmount:  baseAmount,
		Destination: originReceiver,
	}, nil
}

// BalanceOf returns the wrapped balance of addr.
func (w *WrappedToken) BalanceOf(addr string) uint64 { return w.balances[addr] }

// GetBridgeStatus returns 0 pending, 1 minted, 2 burned.
func (w *WrappedToken) GetBridgeStatus(bridgeID string) int { return w.status[bridgeID] }
