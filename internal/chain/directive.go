package chain

// DirectiveType tags the concrete variant of a Directive on the wire.
type DirectiveType byte

const (
	// DirectiveTypeTransfer creates an AssetBox for a recipient Proposition.
	DirectiveTypeTransfer DirectiveType = 1
	// DirectiveTypeCoinbase creates a height-locked CoinbaseBox, legal only
	// in the single coinbase transaction at the head of a block's payload.
	DirectiveTypeCoinbase DirectiveType = 2
)

// Directive is one output-producing instruction inside a transaction. Each
// directive in a transaction's Directives list produces exactly one Box,
// positioned by its index in that list.
type Directive interface {
	TypeID() DirectiveType
	Bytes() ([]byte, error)
	CreatedBox(txID ModifierID, outputIndex int) (Box, error)
}

// =============================================================================

// TransferDirective creates an AssetBox of Value units of Asset, guarded by
// Prop, owned by whoever can satisfy Prop.
type TransferDirective struct {
	Asset AssetID
	Value uint64
	Prop  Proposition
}

func (d TransferDirective) TypeID() DirectiveType { return DirectiveTypeTransfer }

func (d TransferDirective) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(DirectiveTypeTransfer))
	e.WriteFixed(d.Asset[:])
	e.WriteUint64LE(d.Value)
	propBytes, err := EncodeProposition(d.Prop)
	if err != nil {
		return nil, err
	}
	e.WriteBytes(propBytes)
	return e.Bytes(), nil
}

func (d TransferDirective) CreatedBox(txID ModifierID, outputIndex int) (Box, error) {
	id := NewBoxID(BoxTypeAsset, txID, outputIndex)
	return AssetBox{ID: id, Asset: d.Asset, Value: d.Value, Prop: d.Prop}, nil
}

// =============================================================================

// CoinbaseDirective creates a CoinbaseBox of Value intrinsic coins, spendable
// only once the chain reaches HeightLock.
type CoinbaseDirective struct {
	HeightLock Height
	Value      uint64
	Nonce      uint64
}

func (d CoinbaseDirective) TypeID() DirectiveType { return DirectiveTypeCoinbase }

func (d CoinbaseDirective) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteByte(byte(DirectiveTypeCoinbase))
	e.WriteUint64LE(uint64(d.HeightLock))
	e.WriteUint64LE(d.Value)
	e.WriteUint64LE(d.Nonce)
	return e.Bytes(), nil
}

func (d CoinbaseDirective) CreatedBox(txID ModifierID, outputIndex int) (Box, error) {
	id := NewBoxID(BoxTypeCoinbase, txID, outputIndex)
	return CoinbaseBox{ID: id, HeightLock: d.HeightLock, Nonce: d.Nonce, Value: d.Value}, nil
}

// =============================================================================

// EncodeDirective serializes any Directive to its canonical bytes.
func EncodeDirective(d Directive) ([]byte, error) {
	return d.Bytes()
}

// DecodeDirective dispatches on the leading type byte to reconstruct a
// Directive from its canonical encoding.
func DecodeDirective(data []byte) (Directive, error) {
	d := NewDecoder(data)
	t := DirectiveType(d.ReadByte())

	switch t {
	case DirectiveTypeTransfer:
		var asset AssetID
		copy(asset[:], d.ReadFixed(32))
		value := d.ReadUint64LE()
		propBytes := d.ReadBytes()
		prop, err := DecodeProposition(propBytes)
		if err != nil {
			return nil, err
		}
		return TransferDirective{Asset: asset, Value: value, Prop: prop}, d.Err()

	case DirectiveTypeCoinbase:
		heightLock := Height(d.ReadUint64LE())
		value := d.ReadUint64LE()
		nonce := d.ReadUint64LE()
		return CoinbaseDirective{HeightLock: heightLock, Value: value, Nonce: nonce}, d.Err()

	default:
		return nil, Errorf("chain.DecodeDirective", Malformed, "unknown directive type %d", t)
	}
}
