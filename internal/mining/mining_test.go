package mining_test

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/mempool"
	"github.com/coreledger/node/internal/mining"
	"github.com/coreledger/node/internal/state"
	"github.com/coreledger/node/internal/wallet"
	"github.com/stretchr/testify/require"
)

func openTestEngines(t *testing.T) (*history.Engine, *state.Engine) {
	dir, err := os.MkdirTemp("", "mining-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := kv.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h, err := history.Open(store, 10, 15, 1<<20)
	require.NoError(t, err)
	s, err := state.Open(store, 10, 0)
	require.NoError(t, err)
	return h, s
}

func applyGenesisTo(t *testing.T, h *history.Engine, s *state.Engine, pk [32]byte) chain.ModifierID {
	header, payload, err := chain.Genesis(pk, 1000, chain.InitialDifficulty(), 1)
	require.NoError(t, err)

	proof, digest, err := s.ProofsForTransactions(payload.Transactions)
	require.NoError(t, err)
	header.StateRoot = digest
	header.ADProofsRoot = chain.HashBytes(proof.Bytes())

	id, err := header.ID()
	require.NoError(t, err)
	payload.HeaderID = id

	_, err = h.AppendHeader(header)
	require.NoError(t, err)
	_, err = h.AppendPayload(payload)
	require.NoError(t, err)
	require.NoError(t, s.Apply(header, payload))
	require.NoError(t, h.MarkApplied(id))
	return id
}

func TestCoordinator_AssembleBuildsOnBestFullTip(t *testing.T) {
	h, s := openTestEngines(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genID := applyGenesisTo(t, h, s, signer.PublicKey())

	pool := mempool.New(10)
	cfg := mining.Config{BlockMaxTxs: 10, BlockMaxSize: 1 << 20, CoinbaseReward: 50, CoinbaseMaturity: 5, TargetBlockTime: 10}
	coord := mining.NewCoordinator(h, s, pool, signer, cfg)

	candidate, err := coord.Assemble(time.Now().Unix())
	require.NoError(t, err)
	require.Equal(t, genID, candidate.ParentID)
	require.Equal(t, chain.Height(1), candidate.Header.Height)
	require.Len(t, candidate.Payload.Transactions, 1)
	require.True(t, candidate.Payload.Transactions[0].IsCoinbase())
}

func TestPool_SearchFindsSolutionAtLowDifficulty(t *testing.T) {
	h, s := openTestEngines(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	applyGenesisTo(t, h, s, signer.PublicKey())

	pool := mempool.New(10)
	cfg := mining.Config{BlockMaxTxs: 10, BlockMaxSize: 1 << 20, CoinbaseReward: 50, CoinbaseMaturity: 5, TargetBlockTime: 10}
	coord := mining.NewCoordinator(h, s, pool, signer, cfg)

	candidate, err := coord.Assemble(time.Now().Unix())
	require.NoError(t, err)

	// an easy target so the search terminates promptly in a test.
	candidate.Header.Difficulty = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	workers := mining.NewPool(2, signer)
	workers.SignalStartMining(candidate)
	defer workers.Shutdown()

	select {
	case solved := <-workers.Solved:
		require.True(t, solved.Header.Solved())
		require.NotEmpty(t, solved.Header.Signature)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a solved block")
	}
}

func TestReactor_RestartsOnlyWhenParentChanges(t *testing.T) {
	h, s := openTestEngines(t)
	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	genID := applyGenesisTo(t, h, s, signer.PublicKey())

	pool := mempool.New(10)
	cfg := mining.Config{BlockMaxTxs: 10, BlockMaxSize: 1 << 20, CoinbaseReward: 50, CoinbaseMaturity: 5, TargetBlockTime: 10}
	coord := mining.NewCoordinator(h, s, pool, signer, cfg)
	workers := mining.NewPool(1, signer)
	defer workers.Shutdown()

	reactor := mining.NewReactor(coord, workers, 0)
	require.NoError(t, reactor.OnSemanticallySuccessfulModifier(genID, 1))
	require.NoError(t, reactor.OnSemanticallySuccessfulModifier(genID, 1))
}
