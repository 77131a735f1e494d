package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

func newTestTx(id string) *types.BridgeTransaction {
	return &types.BridgeTransaction{
		ID:          id,
		SourceChain: types.ChainAlgorand,
		TargetChain: types.ChainEVM,
		Amount:      decimal.RequireFromString("10"),
		Status:      types.StatusPending,
	}
}

func TestPutAndGet(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestTx("b-1")))

	tx, err := st.Get("b-1")
	require.NoError(t, err)
	require.Equal(t, "b-1", tx.ID)
	require.Equal(t, types.StatusPending, tx.Status)

	missing, err := st.Get("b-2")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestPutRejectsInvalidRecords(t *testing.T) {
	st := NewMemory()
	require.Error(t, st.Put(nil))
	require.Error(t, st.Put(&types.BridgeTransaction{Status: types.StatusPending}))
	require.Error(t, st.Put(&types.BridgeTransaction{ID: "b-1"}))
}

func TestPutRefusesExistingID(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestTx("b-1")))

	_, err := st.Update("b-1", func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusMinted
		return nil
	})
	require.NoError(t, err)

	// re-inserting the id must not reset the advanced record
	require.ErrorIs(t, st.Put(newTestTx("b-1")), ErrDuplicateTransaction)

	tx, err := st.Get("b-1")
	require.NoError(t, err)
	require.Equal(t, types.StatusMinted, tx.Status)

	all, err := st.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestGetReturnsSnapshot(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestTx("b-1")))

	tx, err := st.Get("b-1")
	require.NoError(t, err)
	tx.Status = types.StatusFailed

	again, err := st.Get("b-1")
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, again.Status)
}

func TestListPreservesInsertionOrder(t *testing.T) {
	st := NewMemory()
	for _, id := range []string{"b-3", "b-1", "b-2"} {
		require.NoError(t, st.Put(newTestTx(id)))
	}

	all, err := st.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "b-3", all[0].ID)
	require.Equal(t, "b-1", all[1].ID)
	require.Equal(t, "b-2", all[2].ID)
}

func TestFindBySourceTxID(t *testing.T) {
	st := NewMemory()
	tx := newTestTx("b-1")
	tx.SourceTransactionID = "ALGO-TX-1"
	require.NoError(t, st.Put(tx))

	found, err := st.FindBySourceTxID("ALGO-TX-1")
	require.NoError(t, err)
	require.Equal(t, "b-1", found.ID)

	none, err := st.FindBySourceTxID("ALGO-TX-2")
	require.NoError(t, err)
	require.Nil(t, none)

	_, err = st.FindBySourceTxID("")
	require.Error(t, err)
}

func TestUpdateUnknownID(t *testing.T) {
	st := NewMemory()
	_, err := st.Update("nope", func(*types.BridgeTransaction) error { return nil })
	require.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestUpdateErrorLeavesRecordUntouched(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestTx("b-1")))

	boom := errors.New("boom")
	_, err := st.Update("b-1", func(tx *types.BridgeTransaction) error {
		tx.Status = types.StatusFailed
		return boom
	})
	require.ErrorIs(t, err, boom)

	tx, err := st.Get("b-1")
	require.NoError(t, err)
	require.Equal(t, types.StatusPending, tx.Status)
}

func TestUpdateSerializesPerID(t *testing.T) {
	st := NewMemory()
	require.NoError(t, st.Put(newTestTx("b-1")))

	const workers = 16
	const rounds = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				_, err := st.Update("b-1", func(tx *types.BridgeTransaction) error {
					tx.Nonce++
					return nil
				})
				require.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	tx, err := st.Get("b-1")
	require.NoError(t, err)
	require.Equal(t, uint64(workers*rounds), tx.Nonce)
}
