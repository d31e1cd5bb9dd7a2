package mempool_test

import (
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/mempool"
	"github.com/stretchr/testify/require"
)

func mkTx(fee uint64, seed string) *chain.Transaction {
	boxID := chain.NewBoxID(chain.BoxTypeAsset, chain.HashBytes([]byte(seed)), 0)
	return &chain.Transaction{
		Fee:        fee,
		Unlockers:  []chain.Unlocker{{BoxID: boxID, Proof: []byte{1}}},
		Directives: []chain.Directive{chain.TransferDirective{Asset: chain.IntrinsicAssetID, Value: 1, Prop: chain.HeightProposition{}}},
	}
}

func TestPool_TakeOrdersByFeeDescending(t *testing.T) {
	p := mempool.New(10)
	require.NoError(t, p.Put(mkTx(5, "a")))
	require.NoError(t, p.Put(mkTx(10, "b")))
	require.NoError(t, p.Put(mkTx(1, "c")))

	txs := p.Take(10)
	require.Len(t, txs, 3)
	require.Equal(t, uint64(10), txs[0].Fee)
	require.Equal(t, uint64(5), txs[1].Fee)
	require.Equal(t, uint64(1), txs[2].Fee)
}

func TestPool_RejectsSharedInput(t *testing.T) {
	p := mempool.New(10)
	tx1 := mkTx(5, "shared")
	tx2 := &chain.Transaction{
		Fee:        6,
		Unlockers:  tx1.Unlockers,
		Directives: tx1.Directives,
	}

	require.NoError(t, p.Put(tx1))
	require.Error(t, p.Put(tx2))
	require.Equal(t, 1, p.Size())
}

func TestPool_EvictsLowestFeeWhenFull(t *testing.T) {
	p := mempool.New(2)
	require.NoError(t, p.Put(mkTx(1, "a")))
	require.NoError(t, p.Put(mkTx(2, "b")))
	require.NoError(t, p.Put(mkTx(3, "c")))

	require.Equal(t, 2, p.Size())
	txs := p.Take(10)
	fees := []uint64{txs[0].Fee, txs[1].Fee}
	require.ElementsMatch(t, []uint64{3, 2}, fees)
}

func TestPool_RemoveAsyncIsIdempotent(t *testing.T) {
	p := mempool.New(10)
	tx := mkTx(5, "x")
	require.NoError(t, p.Put(tx))
	id, err := tx.ID()
	require.NoError(t, err)

	p.RemoveAsync([]chain.ModifierID{id})
	require.Equal(t, 0, p.Size())
	p.RemoveAsync([]chain.ModifierID{id})
	require.Equal(t, 0, p.Size())
}
