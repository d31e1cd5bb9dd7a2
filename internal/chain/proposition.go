package chain

import (
	"bytes"

	"github.com/ethereum/go-ethereum/crypto"
)

// PropositionType tags the concrete variant of a Proposition on the wire.
type PropositionType byte

const (
	// PropositionTypePublicKey25519 unlocks with a valid signature over the
	// spending transaction, verified against an ECDSA public key.
	PropositionTypePublicKey25519 PropositionType = 1
	// PropositionTypeAddress unlocks the same way as PublicKey25519 but is
	// addressed by the hash of the key rather than the key itself.
	PropositionTypeAddress PropositionType = 2
	// PropositionTypeHeight unlocks once the chain reaches a given height,
	// with no proof required.
	PropositionTypeHeight PropositionType = 3
)

// UnlockContext carries everything a Proposition needs to decide whether a
// proof authorizes spending the box it guards.
type UnlockContext struct {
	Tx                 *Transaction
	Height             Height
	LastBlockTimestamp int64
	RootHash           [32]byte
}

// Proposition is the predicate guarding a Box. Unlock receives the proof
// offered by the spending transaction's matching Unlocker and reports
// whether it authorizes the spend.
type Proposition interface {
	TypeID() PropositionType
	Bytes() ([]byte, error)
	Unlock(proof []byte, ctx UnlockContext) error
}

// =============================================================================

// PublicKey25519Proposition unlocks with an ECDSA (secp256k1) signature over
// the spending transaction's signing hash. The name follows this chain's
// glossary; the actual primitive is go-ethereum's secp256k1, chosen over a
// true Ed25519/Curve25519 key since the spec is representation-free about
// the exact signature scheme and the pack carries no ed25519 library.
type PublicKey25519Proposition struct {
	PubKey [32]byte
}

func (p PublicKey25519Proposition) TypeID() PropositionType { return PropositionTypePublicKey25519 }

func (p PublicKey25519Proposition) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(PropositionTypePublicKey25519))
	e.WriteFixed(p.PubKey[:])
	return e.Bytes(), nil
}

func (p PublicKey25519Proposition) Unlock(proof []byte, ctx UnlockContext) error {
	if ctx.Tx == nil {
		return Errorf("chain.PublicKey25519Proposition.Unlock", Malformed, "missing transaction context")
	}

	signingHash, err := ctx.Tx.SigningHash()
	if err != nil {
		return Wrap("chain.PublicKey25519Proposition.Unlock", Malformed, err)
	}

	pub, err := RecoverPublicKey(signingHash, proof)
	if err != nil {
		return Wrap("chain.PublicKey25519Proposition.Unlock", SemanticInvalid, err)
	}

	if !bytes.Equal(pub, p.PubKey[:]) {
		return Errorf("chain.PublicKey25519Proposition.Unlock", SemanticInvalid, "proof recovers the wrong key")
	}

	return nil
}

// =============================================================================

// AddressProposition unlocks the same way as PublicKey25519Proposition, but
// is addressed by the Keccak256 hash of the public key rather than the key
// itself, so the spender must reveal the key inside the proof.
type AddressProposition struct {
	Address [20]byte
}

func (p AddressProposition) TypeID() PropositionType { return PropositionTypeAddress }

func (p AddressProposition) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(PropositionTypeAddress))
	e.WriteFixed(p.Address[:])
	return e.Bytes(), nil
}

func (p AddressProposition) Unlock(proof []byte, ctx UnlockContext) error {
	if ctx.Tx == nil {
		return Errorf("chain.AddressProposition.Unlock", Malformed, "missing transaction context")
	}
	if len(proof) < 65 {
		return Errorf("chain.AddressProposition.Unlock", Malformed, "proof too short for address unlock")
	}

	pubKey := proof[65:]
	addr := AddressFromPubKey(pubKey)
	if !bytes.Equal(addr[:], p.Address[:]) {
		return Errorf("chain.AddressProposition.Unlock", SemanticInvalid, "revealed key does not match address")
	}

	signingHash, err := ctx.Tx.SigningHash()
	if err != nil {
		return Wrap("chain.AddressProposition.Unlock", Malformed, err)
	}

	if !crypto.VerifySignature(pubKey, stamp(signingHash), proof[:64]) {
		return Errorf("chain.AddressProposition.Unlock", SemanticInvalid, "signature does not verify")
	}

	return nil
}

// =============================================================================

// HeightProposition unlocks once the chain height reaches MinHeight; it
// requires no proof, since the condition is purely a property of ctx.
type HeightProposition struct {
	MinHeight Height
}

func (p HeightProposition) TypeID() PropositionType { return PropositionTypeHeight }

func (p HeightProposition) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(PropositionTypeHeight))
	e.WriteUint64LE(uint64(p.MinHeight))
	return e.Bytes(), nil
}

func (p HeightProposition) Unlock(_ []byte, ctx UnlockContext) error {
	if ctx.Height < p.MinHeight {
		return Errorf("chain.HeightProposition.Unlock", StateInvalid,
			"coinbase locked until height %d, currently %d", p.MinHeight, ctx.Height)
	}
	return nil
}

// =============================================================================

// EncodeProposition serializes any Proposition to its canonical bytes.
func EncodeProposition(p Proposition) ([]byte, error) {
	return p.Bytes()
}

// DecodeProposition dispatches on the leading type byte to reconstruct a
// Proposition from its canonical encoding.
func DecodeProposition(data []byte) (Proposition, error) {
	d := NewDecoder(data)
	t := PropositionType(d.ReadByte())

	switch t {
	case PropositionTypePublicKey25519:
		var pk [32]byte
		copy(pk[:], d.ReadFixed(32))
		return PublicKey25519Proposition{PubKey: pk}, d.Err()

	case PropositionTypeAddress:
		var addr [20]byte
		copy(addr[:], d.ReadFixed(20))
		return AddressProposition{Address: addr}, d.Err()

	case PropositionTypeHeight:
		h := Height(d.ReadUint64LE())
		return HeightProposition{MinHeight: h}, d.Err()

	default:
		return nil, Errorf("chain.DecodeProposition", Malformed, "unknown proposition type %d", t)
	}
}
