package ad_test

import (
	"os"
	"testing"

	"github.com/coreledger/node/internal/ad"
	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/kv"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *kv.Store {
	dir, err := os.MkdirTemp("", "ad-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := kv.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDictionary_CommitInsertAndDigestChanges(t *testing.T) {
	store := openTestStore(t)
	dict, err := ad.Open(store)
	require.NoError(t, err)

	emptyDigest, err := dict.Digest()
	require.NoError(t, err)

	id := chain.NewBoxID(chain.BoxTypeAsset, chain.HashBytes([]byte("tx")), 0)
	batch := ad.NewBatch()
	batch.Insert(id, []byte("box-bytes"))

	kvBatch := store.NewBatch()
	_, digest, err := dict.Commit(kvBatch, batch)
	require.NoError(t, err)
	require.NoError(t, store.Commit(kvBatch))

	require.NotEqual(t, emptyDigest.Hash, digest.Hash)

	raw, ok := dict.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte("box-bytes"), raw)
}

func TestDictionary_SpeculateDoesNotMutate(t *testing.T) {
	store := openTestStore(t)
	dict, err := ad.Open(store)
	require.NoError(t, err)

	before, err := dict.Digest()
	require.NoError(t, err)

	id := chain.NewBoxID(chain.BoxTypeAsset, chain.HashBytes([]byte("tx2")), 0)
	batch := ad.NewBatch()
	batch.Insert(id, []byte("speculative"))

	_, specDigest, err := dict.Speculate(batch)
	require.NoError(t, err)
	require.NotEqual(t, before.Hash, specDigest.Hash)

	after, err := dict.Digest()
	require.NoError(t, err)
	require.Equal(t, before.Hash, after.Hash)

	_, ok := dict.Get(id)
	require.False(t, ok)
}

func TestDictionary_RemoveUnknownBoxFails(t *testing.T) {
	store := openTestStore(t)
	dict, err := ad.Open(store)
	require.NoError(t, err)

	batch := ad.NewBatch()
	batch.Remove(chain.NewBoxID(chain.BoxTypeAsset, chain.ZeroModifierID, 0))

	_, _, err = dict.Speculate(batch)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.StateInvalid))
}
