package orchestrator_test

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/mempool"
	"github.com/coreledger/node/internal/orchestrator"
	"github.com/coreledger/node/internal/state"
	"github.com/coreledger/node/internal/wallet"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*orchestrator.Node, *history.Engine, *state.Engine, [32]byte) {
	dir, err := os.MkdirTemp("", "orchestrator-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	store, err := kv.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h, err := history.Open(store, 10, 15, 1<<20)
	require.NoError(t, err)
	s, err := state.Open(store, 10, 0)
	require.NoError(t, err)
	pool := mempool.New(10)

	signer, err := wallet.GenerateKeySigner()
	require.NoError(t, err)

	n := orchestrator.New(h, s, pool, signer, nil)
	return n, h, s, signer.PublicKey()
}

func buildGenesis(t *testing.T, s *state.Engine, pk [32]byte) (*chain.BlockHeader, *chain.BlockPayload) {
	header, payload, err := chain.Genesis(pk, 1000, big.NewInt(1), 1)
	require.NoError(t, err)

	proof, digest, err := s.ProofsForTransactions(payload.Transactions)
	require.NoError(t, err)
	header.StateRoot = digest
	header.ADProofsRoot = chain.HashBytes(proof.Bytes())

	id, err := header.ID()
	require.NoError(t, err)
	payload.HeaderID = id
	return header, payload
}

func TestNode_SubmitHeaderAndPayloadAppliesGenesisAndPublishes(t *testing.T) {
	n, h, s, pk := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sub, unsubscribe := n.Subscribe()
	defer unsubscribe()

	header, payload := buildGenesis(t, s, pk)
	require.NoError(t, n.SubmitHeader(header))
	require.NoError(t, n.SubmitPayload(payload))

	genID, err := header.ID()
	require.NoError(t, err)

	select {
	case m := <-sub:
		require.Equal(t, genID, m.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SemanticallySuccessfulModifier")
	}

	result := n.GetDataFromCurrentView(func(v orchestrator.View) any {
		return v.State.Height()
	})
	require.Equal(t, chain.Height(0), result)
	require.Equal(t, genID, h.BestFullID())
}

func TestNode_SubmitTransactionRejectsUnknownInput(t *testing.T) {
	n, _, _, _ := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	boxID := chain.NewBoxID(chain.BoxTypeAsset, chain.HashBytes([]byte("ghost")), 0)
	tx := &chain.Transaction{
		Fee:        1,
		Unlockers:  []chain.Unlocker{{BoxID: boxID, Proof: []byte{1}}},
		Directives: []chain.Directive{chain.TransferDirective{Asset: chain.IntrinsicAssetID, Value: 1, Prop: chain.HeightProposition{}}},
	}

	err := n.SubmitTransaction(tx)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.StateInvalid))
}

func TestNode_SubmitPayloadWithoutHeaderIsNotApplicable(t *testing.T) {
	n, _, s, pk := setup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	_, payload := buildGenesis(t, s, pk)
	err := n.SubmitPayload(payload)
	require.Error(t, err)
	require.True(t, chain.IsKind(err, chain.NotApplicable))
}
