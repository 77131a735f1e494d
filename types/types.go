package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainID identifies one of the two bridged ledgers.
type ChainID string

const (
	ChainAlgorand ChainID = "algorand"
	ChainEVM      ChainID = "evm"
)

// Status is the lifecycle state of a bridge transaction.
type Status string

const (
	StatusPending  Status = "pending"  // created, origin leg not yet confirmed
	StatusLocked   Status = "locked"   // funds escrowed on Algorand
	StatusBurned   Status = "burned"   // wrapped tokens burned on the EVM side
	StatusMinted   Status = "minted"   // wrapped tokens issued, terminal
	StatusReleased Status = "released" // escrowed funds returned, terminal
	StatusFailed   Status = "failed"   // terminal
)

// IsTerminal reports whether no further transition is defined out of s.
func (s Status) IsTerminal() bool {
	return s == StatusMinted || s == StatusReleased || s == StatusFailed
}

// transitions holds the allowed edges of the lifecycle state machine.
var transitions = map[Status][]Status{
	StatusPending: {StatusLocked, StatusBurned, StatusFailed},
	StatusLocked:  {StatusMinted, StatusFailed},
	StatusBurned:  {StatusReleased, StatusFailed},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// BridgeTransaction is the unit of work: one cross-chain transfer attempt,
// addressed by ID on both chains for its entire lifetime.
type BridgeTransaction struct {
	ID                  string                `json:"id"`
	SourceChain         ChainID               `json:"sourceChain"`
	TargetChain         ChainID               `json:"targetChain"`
	SourceAssetID       string                `json:"sourceAssetId"`
	TargetAssetID       string                `json:"targetAssetId"`
	Amount              decimal.Decimal       `json:"amount"`
	Sender              string                `json:"sender"`
	Receiver            string                `json:"receiver"`
	Status              Status                `json:"status"`
	SourceTransactionID string                `json:"sourceTransactionId,omitempty"`
	TargetTransactionID string                `json:"targetTransactionId,omitempty"`
	Timestamp           time.Time             `json:"timestamp"`
	Nonce               uint64                `json:"nonce"`
	Metadata            *CarbonCreditMetadata `json:"metadata,omitempty"`
	Message             string                `json:"message,omitempty"` // messages that help to track processing/errors
}

// Clone returns a deep copy, used for event snapshots so handlers never
// observe later mutations.
func (tx *BridgeTransaction) Clone() *BridgeTransaction {
	if tx == nil {
		return nil
	}
	cp := *tx
	if tx.Metadata != nil {
		md := *tx.Metadata
		cp.Metadata = &md
	}
	return &cp
}

// AppendMessage adds a processing note without losing earlier ones.
func (tx *BridgeTransaction) AppendMessage(msg string) {
	if tx.Message == "" {
		tx.Message = msg
	} else {
		tx.Message += "; " + msg
	}
}

// CarbonCreditMetadata describes the underlying credit being bridged.
// Attached only to Algorand -> EVM transfers, never required on the
// return leg.
type CarbonCreditMetadata struct {
	ProjectID             string    `json:"projectId" validate:"required"`
	VintageYear           int       `json:"vintageYear" validate:"required,gte=1990,lte=2100"`
	CertificationStandard string    `json:"certificationStandard" validate:"required"`
	CreditType            string    `json:"creditType" validate:"required"`
	SerialNumber          string    `json:"serialNumber" validate:"required"`
	IssuanceDate          time.Time `json:"issuanceDate"`
	Retired               bool      `json:"retired"`
}

// VerifierSignature is one verifier's attestation over the canonical
// transaction hash.
type VerifierSignature struct {
	Verifier  string `json:"verifier"`
	Signature string `json:"signature"`
}

// VerificationResult is the outcome of one verification attempt. Ephemeral:
// consumed once by the orchestrator, never persisted.
type VerificationResult struct {
	IsValid    bool                `json:"isValid"`
	Signatures []VerifierSignature `json:"signatures"`
	Timestamp  time.Time           `json:"timestamp"`
	Err        error               `json:"-"`
}
