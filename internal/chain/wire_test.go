package chain_test

import (
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/stretchr/testify/require"
)

func TestEncoderDecoder_RoundTrip(t *testing.T) {
	e := chain.NewEncoder()
	e.WriteByte(7)
	e.WriteBool(true)
	e.WriteUint32LE(42)
	e.WriteUint64LE(1 << 40)
	e.WriteVarint(300)
	e.WriteFixed([]byte{1, 2, 3})
	e.WriteBytes([]byte("hello"))

	d := chain.NewDecoder(e.Bytes())
	require.Equal(t, byte(7), d.ReadByte())
	require.True(t, d.ReadBool())
	require.Equal(t, uint32(42), d.ReadUint32LE())
	require.Equal(t, uint64(1<<40), d.ReadUint64LE())
	require.Equal(t, uint64(300), d.ReadVarint())
	require.Equal(t, []byte{1, 2, 3}, d.ReadFixed(3))
	require.Equal(t, []byte("hello"), d.ReadBytes())
	require.NoError(t, d.Err())
}

func TestDecoder_ErrorIsSticky(t *testing.T) {
	d := chain.NewDecoder([]byte{1, 2})
	d.ReadFixed(10)
	require.Error(t, d.Err())
	require.Equal(t, byte(0), d.ReadByte())
	require.Error(t, d.Err())
}
