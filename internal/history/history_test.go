package history_test

import (
	"math/big"
	"os"
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/wallet"
	"github.com/stretchr/testify/require"
)

const (
	testTargetBlockTime = int64(10)
	testMaxFutureDrift  = int64(15)
	testBlockMaxSize    = 1 << 20
)

func openTestEngine(t *testing.T) *history.Engine {
	dir, err := os.MkdirTemp("", "history-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := kv.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	e, err := history.Open(store, testTargetBlockTime, testMaxFutureDrift, testBlockMaxSize)
	require.NoError(t, err)
	return e
}

// mkHeader builds a raw, unsigned, unsolved header: usable wherever the
// engine rejects it before validateHeader ever runs (an unknown-parent
// header, or genesis, which is exempt from validation entirely).
func mkHeader(parent chain.ModifierID, height chain.Height, ts int64, diff int64) *chain.BlockHeader {
	return &chain.BlockHeader{
		ParentID:   parent,
		Timestamp:  ts,
		Height:     height,
		Difficulty: big.NewInt(diff),
	}
}

// mkGenesis builds a genesis header at chain.InitialDifficulty, loose enough
// that its descendants can be solved by brute-force nonce search in tests.
func mkGenesis(ts int64) *chain.BlockHeader {
	return &chain.BlockHeader{
		ParentID:   chain.ZeroModifierID,
		Timestamp:  ts,
		Height:     0,
		Difficulty: chain.InitialDifficulty(),
	}
}

// mkChild builds a header extending parent that will actually pass
// validateHeader: timestamp one target-block-time past parent's, difficulty
// carried forward unchanged (a single-sample retarget window always does
// that, per chain.RequiredDifficultyAfter), solved and signed by signer.
func mkChild(t *testing.T, signer wallet.Signer, parent *chain.BlockHeader) *chain.BlockHeader {
	t.Helper()
	parentID, err := parent.ID()
	require.NoError(t, err)

	h := &chain.BlockHeader{
		ParentID:    parentID,
		Timestamp:   parent.Timestamp + testTargetBlockTime,
		Height:      parent.Height + 1,
		Difficulty:  parent.Difficulty,
		MinerPubKey: signer.PublicKey(),
	}
	for !h.Solved() {
		h.Nonce++
	}
	sig, err := signer.Sign(h.SigningHash())
	require.NoError(t, err)
	h.Signature = sig
	return h
}

func TestEngine_AppendHeaderExtendsBestChain(t *testing.T) {
	e := openTestEngine(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genesis := mkGenesis(1)
	_, err = e.AppendHeader(genesis)
	require.NoError(t, err)

	a1 := mkChild(t, signer, genesis)
	_, err = e.AppendHeader(a1)
	require.NoError(t, err)

	best, ok := e.BestHeaderID()
	require.True(t, ok)
	a1ID, err := a1.ID()
	require.NoError(t, err)
	require.Equal(t, a1ID, best)
}

func TestEngine_AppendHeaderUnknownParentIsNotApplicable(t *testing.T) {
	e := openTestEngine(t)
	orphan := mkHeader(chain.HashBytes([]byte("ghost")), 5, 1, 1)
	_, err := e.AppendHeader(orphan)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.NotApplicable))
}

func TestEngine_AppendHeaderRejectsStaleTimestamp(t *testing.T) {
	e := openTestEngine(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genesis := mkGenesis(100)
	_, err = e.AppendHeader(genesis)
	require.NoError(t, err)

	stale := mkChild(t, signer, genesis)
	stale.Timestamp = genesis.Timestamp

	_, err = e.AppendHeader(stale)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.SemanticInvalid))
}

func TestEngine_AppendHeaderRejectsBadSignature(t *testing.T) {
	e := openTestEngine(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)
	other, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genesis := mkGenesis(1)
	_, err = e.AppendHeader(genesis)
	require.NoError(t, err)

	a1 := mkChild(t, signer, genesis)
	sig, err := other.Sign(a1.SigningHash())
	require.NoError(t, err)
	a1.Signature = sig

	_, err = e.AppendHeader(a1)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.SemanticInvalid))
}

func TestEngine_AppendHeaderRejectsWrongDifficulty(t *testing.T) {
	e := openTestEngine(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genesis := mkGenesis(1)
	_, err = e.AppendHeader(genesis)
	require.NoError(t, err)

	a1 := mkChild(t, signer, genesis)
	// mutated after solving and signing: validateHeader's difficulty-match
	// check runs before its Solved()/signature checks, so this is rejected
	// without needing to re-solve or re-sign for the (tighter) new target.
	a1.Difficulty = new(big.Int).Rsh(a1.Difficulty, 1)

	_, err = e.AppendHeader(a1)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.SemanticInvalid))
}

func TestEngine_CompareEmptyRemoteIsYounger(t *testing.T) {
	e := openTestEngine(t)

	genesis := mkGenesis(1)
	_, err := e.AppendHeader(genesis)
	require.NoError(t, err)
	genID, err := genesis.ID()
	require.NoError(t, err)

	genPayload := &chain.BlockPayload{HeaderID: genID}
	_, err = e.AppendPayload(genPayload)
	require.NoError(t, err)
	require.NoError(t, e.MarkApplied(genID))

	remote := chain.SyncInfo{}
	cmp, err := e.Compare(remote)
	require.NoError(t, err)
	require.Equal(t, chain.Younger, cmp)
}
