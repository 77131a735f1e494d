// Package chain defines the operation surface the bridge core expects from
// each ledger. Adapters own raw RPC plumbing and key handling; the core
// only consumes this interface.
package chain

import (
	"context"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// Result is the common shape returned by every submission operation.
type Result struct {
	Success       bool         `json:"success"`
	TransactionID string       `json:"transactionId"`
	BridgeID      string       `json:"bridgeId"`
	Status        types.Status `json:"status"`
	Receipt       any          `json:"receipt,omitempty"`
}

// LockOptions tunes the escrow submission. Zero values mean the adapter
// defaults (wait for confirmation, standard validity window).
type LockOptions struct {
	WaitRounds uint64
}

type ReleaseOptions struct {
	WaitRounds uint64
}

// MintOptions tunes the wrapped-token submission. GasLimit 0 means the
// adapter default.
type MintOptions struct {
	GasLimit uint64
}

type BurnOptions struct {
	GasLimit uint64
}

// ProofKind classifies the native transaction a proof describes.
type ProofKind string

const (
	KindAssetTransfer ProofKind = "asset-transfer"
	KindContractCall  ProofKind = "contract-call"
)

// TransferProof is the chain's answer to "did this native transaction
// really move the bridged asset into escrow". Note fields are the
// correlation data embedded in the transaction note or event log; empty
// strings mean the chain carried none.
type TransferProof struct {
	Confirmed    bool
	Kind         ProofKind
	AssetID      string
	Counterparty string   // account that received the transferred funds
	BaseAmount   *big.Int // amount in chain base units
	NoteBridgeID string
	NoteReceiver string
	NoteTarget   types.ChainID
}

// Adapter executes bridge operations against one ledger and answers its
// status and proof queries. Operations that do not exist on a given chain
// family return a ChainSubmissionError.
type Adapter interface {
	// Chain identifies the ledger this adapter serves.
	Chain() types.ChainID
	// CanonicalAddress validates addr and returns its canonical encoding
	// (checksummed for address-style chains). A ValidationError is
	// returned for malformed input.
	CanonicalAddress(addr string) (string, error)
	// EscrowAccount is the account or contract holding bridged funds.
	EscrowAccount() string
	// AssetID is the chain-native identifier of the carbon asset.
	AssetID() string

	Lock(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts LockOptions) (*Result, error)
	Release(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, opts ReleaseOptions) (*Result, error)
	Mint(ctx context.Context, bridgeID, receiver string, amount decimal.Decimal, sourceTxID string, sigs []types.VerifierSignature, opts MintOptions) (*Result, error)
	Burn(ctx context.Context, sender, receiver string, amount decimal.Decimal, opts BurnOptions) (*Result, error)

	StatusOf(ctx context.Context, bridgeID string) (types.Status, error)
	TransferProof(ctx context.Context, txID string) (*TransferProof, error)
}
