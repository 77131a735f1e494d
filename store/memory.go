package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// ErrUnknownTransaction is returned by Update when the id has no record.
var ErrUnknownTransaction = errors.New("unknown bridge transaction")

// ErrDuplicateTransaction is returned by Put when the id already exists.
var ErrDuplicateTransaction = errors.New("duplicate bridge transaction")

// Memory is the in-process ledger. A per-id mutex serializes every
// mutation of one transaction while leaving distinct ids free to proceed
// concurrently.
type Memory struct {
	mu    sync.RWMutex
	txs   map[string]*types.BridgeTransaction
	order []string
	locks map[string]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{
		txs:   make(map[string]*types.BridgeTransaction),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *Memory) idLock(id string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *Memory) Put(tx *types.BridgeTransaction) error {
	if tx == nil {
		return errors.New("null object to store")
	}
	if tx.ID == "" {
		return errors.New("bridge transaction cannot have empty id")
	}
	if tx.Status == "" {
		return errors.New("bridge transaction cannot have empty status")
	}

	lock := m.idLock(tx.ID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.txs[tx.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}
	m.order = append(m.order, tx.ID)
	m.txs[tx.ID] = tx.Clone()
	return nil
}

func (m *Memory) Get(id string) (*types.BridgeTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txs[id].Clone(), nil
}

func (m *Memory) List() ([]*types.BridgeTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*types.BridgeTransaction, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.txs[id].Clone())
	}
	return out, nil
}

func (m *Memory) FindBySourceTxID(txID string) (*types.BridgeTransaction, error) {
	if txID == "" {
		return nil, errors.New("empty search value")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tx := range m.txs {
		if tx.SourceTransactionID == txID {
			return tx.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) Update(id string, fn func(*types.BridgeTransaction) error) (*types.BridgeTransaction, error) {
	lock := m.idLock(id)
	lock.Lock()
	defer lock.Unlock()

	m.mu.RLock()
	current := m.txs[id]
	m.mu.RUnlock()
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, id)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.txs[id] = working
	m.mu.Unlock()
	return working.Clone(), nil
}
