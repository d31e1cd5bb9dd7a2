package chain

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"
)

// domainStamp is prepended to a payload's hash before the final hash is
// taken, so a signature produced for this chain's messages can never be
// replayed against an unrelated Keccak256-based signing scheme.
var domainStamp = []byte("\x19coreledger signed message:\n32")

// stamp returns the domain-separated digest that Sign and the unlock
// propositions actually sign: Keccak256(domainStamp || hash).
func stamp(hash []byte) []byte {
	return crypto.Keccak256(domainStamp, hash)
}

// SignHash produces a 65-byte [R || S || V] signature over hash, suitable
// for PublicKey25519Proposition and AddressProposition unlock proofs.
func SignHash(hash []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(stamp(hash), key)
	if err != nil {
		return nil, Wrap("chain.SignHash", Fatal, err)
	}
	return sig, nil
}

// RecoverPublicKey recovers the 32-byte public-key fingerprint (the
// Keccak256 hash of the uncompressed public key) that produced sig over
// hash. Propositions compare this fingerprint, not the raw key, so the key
// itself need not be carried in the box.
func RecoverPublicKey(hash []byte, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, Errorf("chain.RecoverPublicKey", Malformed, "signature must be 65 bytes, got %d", len(sig))
	}

	pub, err := crypto.SigToPub(stamp(hash), sig)
	if err != nil {
		return nil, Wrap("chain.RecoverPublicKey", SemanticInvalid, err)
	}

	fp := crypto.Keccak256(crypto.FromECDSAPub(pub))
	return fp, nil
}

// VerifyHash reports whether sig is a valid signature over hash for pubKey,
// where pubKey is the 32-byte fingerprint produced by PubKeyFingerprint.
func VerifyHash(hash []byte, sig []byte, pubKey [32]byte) bool {
	recovered, err := RecoverPublicKey(hash, sig)
	if err != nil {
		return false
	}
	return [32]byte(recovered) == pubKey
}

// PubKeyFingerprint reduces an uncompressed ECDSA public key to the 32-byte
// value stored in PublicKey25519Proposition and PubKeyInfoBox.
func PubKeyFingerprint(pub *ecdsa.PublicKey) [32]byte {
	var fp [32]byte
	copy(fp[:], crypto.Keccak256(crypto.FromECDSAPub(pub)))
	return fp
}

// AddressFromPubKey derives the 20-byte address used by AddressProposition
// from a raw uncompressed public key's bytes.
func AddressFromPubKey(pub []byte) [20]byte {
	var addr [20]byte
	copy(addr[:], crypto.Keccak256(pub)[12:])
	return addr
}
