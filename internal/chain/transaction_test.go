package chain_test

import (
	"testing"

	"github.com/coreledger/node/internal/chain"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestTransaction_SignAndUnlockPublicKey25519(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pk := chain.PubKeyFingerprint(&key.PublicKey)

	boxID := chain.NewBoxID(chain.BoxTypeAsset, chain.HashBytes([]byte("seed")), 0)

	tx := &chain.Transaction{
		Fee:       1,
		Timestamp: 100,
		Unlockers: []chain.Unlocker{{BoxID: boxID}},
		Directives: []chain.Directive{
			chain.TransferDirective{Asset: chain.IntrinsicAssetID, Value: 5, Prop: chain.PublicKey25519Proposition{PubKey: pk}},
		},
	}

	signingHash, err := tx.SigningHash()
	require.NoError(t, err)

	sig, err := chain.SignHash(signingHash, key)
	require.NoError(t, err)
	tx.Unlockers[0].Proof = sig

	prop := chain.PublicKey25519Proposition{PubKey: pk}
	require.NoError(t, prop.Unlock(sig, chain.UnlockContext{Tx: tx}))

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	wrongProp := chain.PublicKey25519Proposition{PubKey: chain.PubKeyFingerprint(&otherKey.PublicKey)}
	require.Error(t, wrongProp.Unlock(sig, chain.UnlockContext{Tx: tx}))
}

func TestTransaction_EncodeDecodeRoundTrip(t *testing.T) {
	boxID := chain.NewBoxID(chain.BoxTypeCoinbase, chain.ZeroModifierID, 0)
	tx := &chain.Transaction{
		Fee:       3,
		Timestamp: 555,
		Unlockers: []chain.Unlocker{{BoxID: boxID, Proof: []byte{9, 9}}},
		Directives: []chain.Directive{
			chain.CoinbaseDirective{HeightLock: 10, Value: 50, Nonce: 1},
		},
		Signature: []byte{1, 2, 3},
	}

	encoded, err := tx.Bytes()
	require.NoError(t, err)

	decoded, err := chain.DecodeTransaction(encoded)
	require.NoError(t, err)

	id1, err := tx.ID()
	require.NoError(t, err)
	id2, err := decoded.ID()
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestTransaction_SemanticValidityRejectsDoubleSpend(t *testing.T) {
	boxID := chain.NewBoxID(chain.BoxTypeAsset, chain.ZeroModifierID, 0)
	tx := &chain.Transaction{
		Unlockers: []chain.Unlocker{
			{BoxID: boxID, Proof: []byte{1}},
			{BoxID: boxID, Proof: []byte{1}},
		},
		Directives: []chain.Directive{
			chain.TransferDirective{Asset: chain.IntrinsicAssetID, Value: 1, Prop: chain.HeightProposition{}},
		},
	}

	require.Error(t, tx.SemanticValidity())
}

func TestHeightProposition_UnlocksOnlyAtOrAfterLock(t *testing.T) {
	prop := chain.HeightProposition{MinHeight: 10}
	require.Error(t, prop.Unlock(nil, chain.UnlockContext{Height: 9}))
	require.NoError(t, prop.Unlock(nil, chain.UnlockContext{Height: 10}))
}
