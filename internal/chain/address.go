package chain

import (
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"
)

// PubKeyHex renders a 32-byte public-key fingerprint as 0x-prefixed hex, for
// logging and config files.
func PubKeyHex(pk [32]byte) string {
	return "0x" + hex.EncodeToString(pk[:])
}

// ParsePubKeyHex parses a 0x-prefixed or bare hex string into a 32-byte
// public-key fingerprint.
func ParsePubKeyHex(s string) ([32]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, Wrap("chain.ParsePubKeyHex", Malformed, err)
	}
	if len(b) != 32 {
		return [32]byte{}, Errorf("chain.ParsePubKeyHex", Malformed, "expected 32 bytes, got %d", len(b))
	}
	var pk [32]byte
	copy(pk[:], b)
	return pk, nil
}

// PubKeyBase58 renders a public-key fingerprint as base58, the wallet CLI's
// preferred human-facing form.
func PubKeyBase58(pk [32]byte) string {
	return base58.Encode(pk[:])
}

// ParsePubKeyBase58 parses a base58-encoded public-key fingerprint.
func ParsePubKeyBase58(s string) ([32]byte, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return [32]byte{}, Wrap("chain.ParsePubKeyBase58", Malformed, err)
	}
	if len(b) != 32 {
		return [32]byte{}, Errorf("chain.ParsePubKeyBase58", Malformed, "expected 32 bytes, got %d", len(b))
	}
	var pk [32]byte
	copy(pk[:], b)
	return pk, nil
}

// AddressHex renders a 20-byte address as 0x-prefixed hex.
func AddressHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
