package chain

import "math/big"

// BlockHeader is the self-authenticating summary of a block: it commits to
// the parent, the authenticated-dictionary state after applying the block,
// the AD proofs and transactions of the block's payload, and carries the
// proof-of-work nonce and miner signature.
type BlockHeader struct {
	ParentID         ModifierID
	StateRoot        ADDigest
	ADProofsRoot     ModifierID
	TransactionsRoot ModifierID
	Timestamp        int64
	Height           Height
	Difficulty       *big.Int
	Nonce            uint64
	MinerPubKey      [32]byte
	Signature        []byte
}

// preHashBytes encodes every field that must be fixed before mining starts:
// everything except Nonce and Signature, which the miner and signer fill in
// afterward.
func (h *BlockHeader) preHashBytes() []byte {
	e := NewEncoder()
	e.WriteFixed(h.ParentID[:])
	root := h.StateRoot.Bytes()
	e.WriteFixed(root[:])
	e.WriteFixed(h.ADProofsRoot[:])
	e.WriteFixed(h.TransactionsRoot[:])
	e.WriteInt64LE(h.Timestamp)
	e.WriteInt64LE(int64(h.Height))
	e.WriteBytes(h.Difficulty.Bytes())
	e.WriteFixed(h.MinerPubKey[:])
	return e.Bytes()
}

// PreHash is the content hash of every mining-invariant field. A worker
// searches for a Nonce such that PowHash passes the difficulty target; the
// PreHash itself never changes during that search.
func (h *BlockHeader) PreHash() ModifierID {
	return HashBytes(h.preHashBytes())
}

// PowHash is the value tested against the difficulty target: the hash of
// PreHash concatenated with the candidate Nonce.
func (h *BlockHeader) PowHash() ModifierID {
	pre := h.PreHash()
	e := NewEncoder()
	e.WriteFixed(pre[:])
	e.WriteUint64LE(h.Nonce)
	return HashBytes(e.Bytes())
}

// ID is the header's ModifierID, used as the parent reference of the next
// header and as the key headers are stored under: the hash of the full
// encoding, including Nonce and Signature.
func (h *BlockHeader) ID() (ModifierID, error) {
	b, err := h.Bytes()
	if err != nil {
		return ModifierID{}, err
	}
	return HashBytes(b), nil
}

// Bytes returns the canonical encoding of the full header.
func (h *BlockHeader) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteFixed(h.preHashBytes())
	e.WriteUint64LE(h.Nonce)
	e.WriteBytes(h.Signature)
	return e.Bytes(), nil
}

// SigningHash is the hash a miner signs with their private key once the
// winning Nonce has been found: PowHash, so the signature also attests to
// the solved proof of work.
func (h *BlockHeader) SigningHash() []byte {
	ph := h.PowHash()
	return ph[:]
}

// meetsDifficulty reports whether hash, read as a big-endian big.Int,
// is at or below target — the standard "hash as a number below a ceiling"
// proof-of-work check.
func meetsDifficulty(hash ModifierID, target *big.Int) bool {
	n := new(big.Int).SetBytes(hash[:])
	return n.Cmp(target) <= 0
}

// Solved reports whether h's Nonce satisfies h's Difficulty target.
func (h *BlockHeader) Solved() bool {
	return meetsDifficulty(h.PowHash(), h.Difficulty)
}

// maxTarget is the loosest possible difficulty target, a 256-bit hash
// space ceiling; Work expresses a target as the amount of expected hashing
// effort it represents, the quantity cumulative-difficulty comparisons sum.
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Work converts a difficulty target into the work value the best-chain
// selection rule sums: smaller targets represent more work.
func Work(target *big.Int) *big.Int {
	if target == nil || target.Sign() <= 0 {
		return new(big.Int).Set(maxTarget)
	}
	return new(big.Int).Div(maxTarget, target)
}

// EncodeHeader serializes h to its canonical bytes.
func EncodeHeader(h *BlockHeader) ([]byte, error) {
	return h.Bytes()
}

// DecodeHeader reconstructs a BlockHeader from its canonical encoding.
func DecodeHeader(data []byte) (*BlockHeader, error) {
	d := NewDecoder(data)
	h := &BlockHeader{}

	copy(h.ParentID[:], d.ReadFixed(32))
	var root [33]byte
	copy(root[:], d.ReadFixed(33))
	copy(h.StateRoot.Hash[:], root[:32])
	h.StateRoot.TreeHeight = root[32]
	copy(h.ADProofsRoot[:], d.ReadFixed(32))
	copy(h.TransactionsRoot[:], d.ReadFixed(32))
	h.Timestamp = d.ReadInt64LE()
	h.Height = Height(d.ReadInt64LE())
	diffBytes := d.ReadBytes()
	h.Difficulty = new(big.Int).SetBytes(diffBytes)
	copy(h.MinerPubKey[:], d.ReadFixed(32))
	h.Nonce = d.ReadUint64LE()
	h.Signature = append([]byte(nil), d.ReadBytes()...)

	if err := d.Err(); err != nil {
		return nil, err
	}
	return h, nil
}
