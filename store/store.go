// Package store keeps the ledger of in-flight and historical bridge
// transactions. It is the single source of truth for transaction lookups;
// records are never deleted.
package store

import "github.com/jaydeep-me/algorand-carbon-bridge/types"

// Store is keyed by bridge id. Put inserts only: an id is created exactly
// once, and all later mutation goes through Update, which serializes on
// the id: no two handlers may race on the same transaction. Lookups
// return (nil, nil) when the id is unknown.
type Store interface {
	// Put inserts a new record. An already-known id is refused with
	// ErrDuplicateTransaction so a re-observed transfer can never reset
	// an existing record.
	Put(tx *types.BridgeTransaction) error
	Get(id string) (*types.BridgeTransaction, error)
	List() ([]*types.BridgeTransaction, error)
	// FindBySourceTxID locates a transaction by its origin-chain native
	// reference, used to dedup repeated observations of the same transfer.
	FindBySourceTxID(txID string) (*types.BridgeTransaction, error)
	// Update runs fn on the current record under the id's critical
	// section and persists the mutated record if fn returns nil. The
	// updated snapshot is returned.
	Update(id string, fn func(*types.BridgeTransaction) error) (*types.BridgeTransaction, error)
}
