package protocol

import (
	"fmt"
	"time"
)

// EscrowStatus is the on-chain record state, distinct from the bridge
// transaction lifecycle: the contract only knows locked, verified and
// released.
type EscrowStatus string

const (
	EscrowLocked   EscrowStatus = "locked"
	EscrowVerified EscrowStatus = "verified"
	EscrowReleased EscrowStatus = "released"
)

// EscrowRecord is one bridge id's entry in the escrow contract state.
type EscrowRecord struct {
	BridgeID     string
	Sender       string
	Receiver     string
	BaseAmount   uint64
	CreatedAt    time.Time
	Status       EscrowStatus
	attestations map[string]bool
}

// Attestations is the count of distinct verifiers that attested.
func (r *EscrowRecord) Attestations() int { return len(r.attestations) }

// Escrow mirrors the escrow contract's rule set over its records.
type Escrow struct {
	spec    *ContractSpec
	records map[string]*EscrowRecord
}

func NewEscrow(spec *ContractSpec) (*Escrow, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Escrow{spec: spec, records: make(map[string]*EscrowRecord)}, nil
}

// Lock records an atomic two-part submission: an asset transfer of the
// configured carbon asset into escrow, paired with a contract call keyed
// by the caller-supplied bridge id.
func (e *Escrow) Lock(bridgeID, assetID, receiver, sender, recordReceiver string, baseAmount uint64, now time.Time) error {
	if assetID != e.spec.AssetID {
		return fmt.Errorf("lock rejected: asset %s is not the configured carbon asset", assetID)
	}
	if receiver != e.spec.EscrowAccount {
		return fmt.Errorf("lock rejected: transfer receiver %s is not the escrow account", receiver)
	}
	if baseAmount == 0 {
		return fmt.Errorf("lock rejected: zero amount")
	}
	if _, exists := e.records[bridgeID]; exists {
		return fmt.Errorf("lock rejected: bridge id %s already recorded", bridgeID)
	}
	e.records[bridgeID] = &EscrowRecord{
		BridgeID:     bridgeID,
		Sender:       sender,
		Receiver:     recordReceiver,
		BaseAmount:   baseAmount,
		CreatedAt:    now,
		Status:       EscrowLocked,
		attestations: make(map[string]bool),
	}
	return nil
}

// Verify records one verifier's attestation. Re-attestation by the same
// verifier does not double count. Reaching the threshold transitions the
// record locked -> verified.
func (e *Escrow) Verify(bridgeID, verifier string) error {
	if !e.spec.IsVerifier(verifier) {
		return fmt.Errorf("verify rejected: %s is not in the verifier set", verifier)
	}
	rec, ok := e.records[bridgeID]
	if !ok {
		return fmt.Errorf("verify rejected: unknown bridge id %s", bridgeID)
	}
	if rec.Status == EscrowReleased {
		return fmt.Errorf("verify rejected: bridge id %s already released", bridgeID)
	}
	rec.attestations[verifier] = true
	if rec.Status == EscrowLocked && len(rec.attestations) >= e.spec.Threshold {
		rec.Status = EscrowVerified
	}
	return nil
}

// Release pays out exactly the recorded amount to the recorded receiver.
// Only the bridge admin may call it, and only on a verified record.
func (e *Escrow) Release(bridgeID, caller, receiver string, baseAmount uint64) error {
	if caller != e.spec.Admin {
		return fmt.Errorf("release rejected: %s is not the bridge admin", caller)
	}
	rec, ok := e.records[bridgeID]
	if !ok {
		return fmt.Errorf("release rejected: unknown bridge id %s", bridgeID)
	}
	if rec.Status != EscrowVerified {
		return fmt.Errorf("release rejected: bridge id %s is %s, not verified", bridgeID, rec.Status)
	}
	if receiver != rec.Receiver {
		return fmt.Errorf("release rejected: receiver %s does not match recorded %s", receiver, rec.Receiver)
	}
	if baseAmount != rec.BaseAmount {
		return fmt.Errorf("release rejected: amount %d does not match recorded %d", baseAmount, rec.BaseAmount)
	}
	rec.Status = EscrowReleased
	return nil
}

// Complete handles administrative update/delete completion types,
// restricted to the contract's original creator.
func (e *Escrow) Complete(bridgeID, caller string, deleteRecord bool) error {
	if caller != e.spec.Creator {
		return fmt.Errorf("completion rejected: %s is not the contract creator", caller)
	}
	if _, ok := e.records[bridgeID]; !ok {
		return fmt.Errorf("completion rejected: unknown bridge id %s", bridgeID)
	}
	if deleteRecord {
		delete(e.records, bridgeID)
	}
	return nil
}

// Record returns the current record for bridgeID, or nil.
func (e *Escrow) Record(bridgeID string) *EscrowRecord {
	return e.records[bridgeID]
}
