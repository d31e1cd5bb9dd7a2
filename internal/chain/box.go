package chain

// BoxType tags the concrete variant of a Box on the wire.
type BoxType byte

const (
	// BoxTypeAsset is a transfer box holding an amount of a fungible asset.
	BoxTypeAsset BoxType = 1
	// BoxTypeCoinbase is a coinbase box unlockable once a height lock passes.
	BoxTypeCoinbase BoxType = 2
	// BoxTypePubKeyInfo is an auxiliary box recording a miner's public key.
	BoxTypePubKeyInfo BoxType = 3
)

// BoxID is a 33-byte identifier: a 1-byte type prefix plus a 32-byte content
// hash, derived from the box's content and the position it was created at.
type BoxID [33]byte

// NewBoxID derives a BoxID from the box type, the id of the transaction that
// created it, and the position of the directive that produced it.
func NewBoxID(t BoxType, txID ModifierID, outputIndex int) BoxID {
	var idx [4]byte
	idx[0] = byte(outputIndex)
	idx[1] = byte(outputIndex >> 8)
	idx[2] = byte(outputIndex >> 16)
	idx[3] = byte(outputIndex >> 24)

	content := HashBytes(txID[:], idx[:])

	var id BoxID
	id[0] = byte(t)
	copy(id[1:], content[:])
	return id
}

func (id BoxID) String() string {
	return "0x" + string(hexDigits(id[:]))
}

// AssetID is the 32-byte namespace of a fungible asset. IntrinsicAssetID is
// the chain's native coin, conventionally written as four 0xFF bytes; all
// other ids are the content hash of the transaction that minted the token.
type AssetID [32]byte

// IntrinsicAssetID is the native coin of the chain.
var IntrinsicAssetID = AssetID{0xFF, 0xFF, 0xFF, 0xFF}

func (a AssetID) IsIntrinsic() bool {
	return a == IntrinsicAssetID
}

// Box is the sum type over the UTXO set's entries. Every variant can
// serialize itself, report the amount it carries on the intrinsic or an
// explicit asset id, and expose the Proposition guarding it.
type Box interface {
	BoxID() BoxID
	TypeID() BoxType
	Amount() uint64
	AssetID() AssetID
	Proposition() Proposition
	Bytes() ([]byte, error)
	Hash() ([]byte, error)
	Equals(other Box) bool
}

// =============================================================================

// AssetBox carries amount units of an asset (intrinsic coin or a token)
// guarded by a Proposition.
type AssetBox struct {
	ID    BoxID
	Asset AssetID
	Value uint64
	Prop  Proposition
}

func (b AssetBox) BoxID() BoxID           { return b.ID }
func (b AssetBox) TypeID() BoxType        { return BoxTypeAsset }
func (b AssetBox) Amount() uint64         { return b.Value }
func (b AssetBox) AssetID() AssetID       { return b.Asset }
func (b AssetBox) Proposition() Proposition { return b.Prop }

func (b AssetBox) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(BoxTypeAsset))
	e.WriteFixed(b.ID[:])
	e.WriteFixed(b.Asset[:])
	e.WriteUint64LE(b.Value)
	propBytes, err := EncodeProposition(b.Prop)
	if err != nil {
		return nil, err
	}
	e.WriteBytes(propBytes)
	return e.Bytes(), nil
}

func (b AssetBox) Hash() ([]byte, error) {
	bs, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	h := HashBytes(bs)
	return h[:], nil
}

func (b AssetBox) Equals(other Box) bool {
	o, ok := other.(AssetBox)
	return ok && o.ID == b.ID
}

// =============================================================================

// CoinbaseBox is the reward created by a block's coinbase transaction; it
// cannot be spent until the chain reaches HeightLock.
type CoinbaseBox struct {
	ID         BoxID
	HeightLock Height
	Nonce      uint64
	Value      uint64
}

func (b CoinbaseBox) BoxID() BoxID            { return b.ID }
func (b CoinbaseBox) TypeID() BoxType         { return BoxTypeCoinbase }
func (b CoinbaseBox) Amount() uint64          { return b.Value }
func (b CoinbaseBox) AssetID() AssetID        { return IntrinsicAssetID }
func (b CoinbaseBox) Proposition() Proposition {
	return HeightProposition{MinHeight: b.HeightLock}
}

func (b CoinbaseBox) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(BoxTypeCoinbase))
	e.WriteFixed(b.ID[:])
	e.WriteUint64LE(uint64(b.HeightLock))
	e.WriteUint64LE(b.Nonce)
	e.WriteUint64LE(b.Value)
	return e.Bytes(), nil
}

func (b CoinbaseBox) Hash() ([]byte, error) {
	bs, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	h := HashBytes(bs)
	return h[:], nil
}

func (b CoinbaseBox) Equals(other Box) bool {
	o, ok := other.(CoinbaseBox)
	return ok && o.ID == b.ID
}

// =============================================================================

// PubKeyInfoBox records a miner public key alongside a bounty amount,
// spendable under that key. Candidate assembly does not read it.
type PubKeyInfoBox struct {
	ID     BoxID
	PubKey [32]byte
	Value  uint64
}

func (b PubKeyInfoBox) BoxID() BoxID     { return b.ID }
func (b PubKeyInfoBox) TypeID() BoxType  { return BoxTypePubKeyInfo }
func (b PubKeyInfoBox) Amount() uint64   { return b.Value }
func (b PubKeyInfoBox) AssetID() AssetID { return IntrinsicAssetID }
func (b PubKeyInfoBox) Proposition() Proposition {
	return PublicKey25519Proposition{PubKey: b.PubKey}
}

func (b PubKeyInfoBox) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(BoxTypePubKeyInfo))
	e.WriteFixed(b.ID[:])
	e.WriteFixed(b.PubKey[:])
	e.WriteUint64LE(b.Value)
	return e.Bytes(), nil
}

func (b PubKeyInfoBox) Hash() ([]byte, error) {
	bs, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	h := HashBytes(bs)
	return h[:], nil
}

func (b PubKeyInfoBox) Equals(other Box) bool {
	o, ok := other.(PubKeyInfoBox)
	return ok && o.ID == b.ID
}

// =============================================================================

// DecodeBox dispatches on the leading type byte to reconstruct a Box from
// its canonical encoding.
func DecodeBox(data []byte) (Box, error) {
	d := NewDecoder(data)
	t := BoxType(d.ReadByte())

	switch t {
	case BoxTypeAsset:
		var id BoxID
		copy(id[:], d.ReadFixed(33))
		var asset AssetID
		copy(asset[:], d.ReadFixed(32))
		value := d.ReadUint64LE()
		propBytes := d.ReadBytes()
		prop, err := DecodeProposition(propBytes)
		if err != nil {
			return nil, err
		}
		return AssetBox{ID: id, Asset: asset, Value: value, Prop: prop}, d.Err()

	case BoxTypeCoinbase:
		var id BoxID
		copy(id[:], d.ReadFixed(33))
		heightLock := Height(d.ReadUint64LE())
		nonce := d.ReadUint64LE()
		value := d.ReadUint64LE()
		return CoinbaseBox{ID: id, HeightLock: heightLock, Nonce: nonce, Value: value}, d.Err()

	case BoxTypePubKeyInfo:
		var id BoxID
		copy(id[:], d.ReadFixed(33))
		var pk [32]byte
		copy(pk[:], d.ReadFixed(32))
		value := d.ReadUint64LE()
		return PubKeyInfoBox{ID: id, PubKey: pk, Value: value}, d.Err()

	default:
		return nil, Errorf("chain.DecodeBox", Malformed, "unknown box type %d", t)
	}
}

func hexDigits(b []byte) []byte {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0F]
	}
	return out
}
