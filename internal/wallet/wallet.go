// Package wallet implements the minimal "sign with the miner's secret"
// contract the consensus coordinator needs during candidate assembly. Key
// management UX and persistence beyond a single loaded key are explicitly
// out of scope for the core; this package exists to give that boundary a
// concrete Go type.
package wallet

import (
	"crypto/ecdsa"

	"github.com/coreledger/node/internal/chain"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer is the capability the mining coordinator depends on: a public key
// to pay coinbases to, and the ability to sign a solved header's signing hash.
type Signer interface {
	PublicKey() [32]byte
	Sign(hash []byte) ([]byte, error)
}

// KeySigner is a Signer backed by a single in-memory ECDSA private key,
// loaded once at startup from the path the node's configuration names.
type KeySigner struct {
	key *ecdsa.PrivateKey
	pub [32]byte
}

// LoadKeyFile loads an ECDSA private key from an unencrypted keyfile at
// path, the same on-disk format go-ethereum's crypto.SaveECDSA writes.
func LoadKeyFile(path string) (*KeySigner, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, chain.Wrap("wallet.LoadKeyFile", chain.Fatal, err)
	}
	return NewKeySigner(key), nil
}

// NewKeySigner wraps an already-loaded private key.
func NewKeySigner(key *ecdsa.PrivateKey) *KeySigner {
	return &KeySigner{key: key, pub: chain.PubKeyFingerprint(&key.PublicKey)}
}

// GenerateKeySigner creates a fresh random key, for bootstrapping a new
// miner identity.
func GenerateKeySigner() (*KeySigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, chain.Wrap("wallet.GenerateKeySigner", chain.Fatal, err)
	}
	return NewKeySigner(key), nil
}

// Save persists the key to path in the same format LoadKeyFile reads.
func (s *KeySigner) Save(path string) error {
	if err := crypto.SaveECDSA(path, s.key); err != nil {
		return chain.Wrap("wallet.KeySigner.Save", chain.Fatal, err)
	}
	return nil
}

func (s *KeySigner) PublicKey() [32]byte { return s.pub }

func (s *KeySigner) Sign(hash []byte) ([]byte, error) {
	return chain.SignHash(hash, s.key)
}
