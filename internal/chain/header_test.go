package chain_test

import (
	"math/big"
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/stretchr/testify/require"
)

func TestBlockHeader_EncodeDecodeRoundTrip(t *testing.T) {
	h := &chain.BlockHeader{
		ParentID:         chain.HashBytes([]byte("parent")),
		StateRoot:        chain.ADDigest{Hash: chain.HashBytes([]byte("state")), TreeHeight: 4},
		ADProofsRoot:     chain.HashBytes([]byte("proofs")),
		TransactionsRoot: chain.HashBytes([]byte("txs")),
		Timestamp:        1000,
		Height:           12,
		Difficulty:       big.NewInt(1 << 20),
		Nonce:            9999,
		Signature:        []byte{1, 2, 3, 4},
	}

	encoded, err := h.Bytes()
	require.NoError(t, err)

	decoded, err := chain.DecodeHeader(encoded)
	require.NoError(t, err)

	id1, err := h.ID()
	require.NoError(t, err)
	id2, err := decoded.ID()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, h.Height, decoded.Height)
	require.Equal(t, h.StateRoot, decoded.StateRoot)
}

func TestBlockHeader_SolvedRespectsDifficultyTarget(t *testing.T) {
	h := &chain.BlockHeader{
		Difficulty: new(big.Int).Lsh(big.NewInt(1), 255),
	}
	require.True(t, h.Solved())

	h.Difficulty = big.NewInt(0)
	require.False(t, h.Solved())
}
