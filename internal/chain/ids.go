// Package chain defines the representation-free data model of the node:
// boxes, propositions, directives, transactions, headers, payloads and the
// sync-info gossip summary, plus their canonical wire encoding.
package chain

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// ModifierID is the 32-byte content hash identifying a header or payload.
type ModifierID [32]byte

// VersionTag identifies a committed ASE version. It is always equal to the
// ModifierID of the block that produced it.
type VersionTag = ModifierID

// Height is a block height. Genesis is 0, the pre-genesis sentinel is -1.
type Height int64

// HeightPreGenesis is the sentinel height of the empty chain.
const HeightPreGenesis Height = -1

// ZeroModifierID is the 32-byte zero value, used as the parent of genesis.
var ZeroModifierID ModifierID

// String renders the id as 0x-prefixed lowercase hex (this repo's Hex encoding).
func (id ModifierID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value.
func (id ModifierID) IsZero() bool {
	return id == ZeroModifierID
}

// ParseModifierID parses a 0x-prefixed or bare hex string into a ModifierID.
func ParseModifierID(s string) (ModifierID, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}

	b, err := hex.DecodeString(s)
	if err != nil {
		return ModifierID{}, fmt.Errorf("chain: invalid modifier id: %w", err)
	}
	if len(b) != 32 {
		return ModifierID{}, fmt.Errorf("chain: invalid modifier id length %d", len(b))
	}

	var id ModifierID
	copy(id[:], b)
	return id, nil
}

// HashBytes returns the Keccak256 content hash of b, the hash primitive used
// throughout the core for ModifierID, BoxID and the AD digest.
func HashBytes(b ...[]byte) ModifierID {
	var id ModifierID
	copy(id[:], crypto.Keccak256(b...))
	return id
}

// ADDigest is the authenticated-dictionary root: a content hash plus the
// height of the tree that produced it.
type ADDigest struct {
	Hash       ModifierID
	TreeHeight uint8
}

// Bytes returns the 33-byte wire representation (32-byte hash, 1-byte height).
func (d ADDigest) Bytes() [33]byte {
	var out [33]byte
	copy(out[:32], d.Hash[:])
	out[32] = d.TreeHeight
	return out
}

// String renders the digest as hex.
func (d ADDigest) String() string {
	return d.Hash.String()
}
