package state_test

import (
	"math/big"
	"os"
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/state"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *state.Engine {
	dir, err := os.MkdirTemp("", "state-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := kv.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e, err := state.Open(store, 10, 0)
	require.NoError(t, err)
	return e
}

func applyGenesis(t *testing.T, e *state.Engine, minerPK [32]byte) (*chain.BlockHeader, *chain.BlockPayload) {
	header, payload, err := chain.Genesis(minerPK, 1000, big.NewInt(1), 1)
	require.NoError(t, err)

	proof, digest, err := e.ProofsForTransactions(payload.Transactions)
	require.NoError(t, err)
	header.StateRoot = digest
	header.ADProofsRoot = chain.HashBytes(proof.Bytes())

	headerID, err := header.ID()
	require.NoError(t, err)
	payload.HeaderID = headerID

	require.NoError(t, e.Apply(header, payload))
	return header, payload
}

func TestEngine_ApplyGenesisSetsHeightAndDigest(t *testing.T) {
	e := openTestEngine(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pk := chain.PubKeyFingerprint(&key.PublicKey)

	header, _ := applyGenesis(t, e, pk)

	require.Equal(t, chain.Height(0), e.Height())
	digest, err := e.Digest()
	require.NoError(t, err)
	require.Equal(t, header.StateRoot, digest)
}

func TestEngine_RollbackRestoresPriorDigest(t *testing.T) {
	e := openTestEngine(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pk := chain.PubKeyFingerprint(&key.PublicKey)

	applyGenesis(t, e, pk)
	preDigest, err := e.Digest()
	require.NoError(t, err)
	preBest := e.BestVersion()

	// apply a second, empty-payload-but-for-coinbase block on top.
	header2, payload2, err := chain.Genesis(pk, 1, big.NewInt(1), 2)
	require.NoError(t, err)
	header2.ParentID = preBest
	header2.Height = 1

	proof, digest, err := e.ProofsForTransactions(payload2.Transactions)
	require.NoError(t, err)
	header2.StateRoot = digest
	header2.ADProofsRoot = chain.HashBytes(proof.Bytes())
	id2, err := header2.ID()
	require.NoError(t, err)
	payload2.HeaderID = id2

	require.NoError(t, e.Apply(header2, payload2))
	require.Equal(t, chain.Height(1), e.Height())

	require.NoError(t, e.RollbackTo(preBest))
	postDigest, err := e.Digest()
	require.NoError(t, err)
	require.Equal(t, preDigest, postDigest)
	require.Equal(t, chain.Height(0), e.Height())
}

func TestEngine_RollbackBeyondWindowFails(t *testing.T) {
	e := openTestEngine(t)
	err := e.RollbackTo(chain.HashBytes([]byte("never-applied")))
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.NotApplicable))
}
