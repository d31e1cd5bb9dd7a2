package chain

import "github.com/coreledger/node/internal/merkle"

// BlockPayload is the body referenced by a BlockHeader's TransactionsRoot:
// the ordered list of transactions applied by that block, with the
// coinbase transaction first.
type BlockPayload struct {
	HeaderID     ModifierID
	Transactions []*Transaction
}

// TransactionsRoot builds the merkle tree over Transactions and returns its
// root, the value a header's TransactionsRoot field must equal.
func (p *BlockPayload) TransactionsRoot() (ModifierID, error) {
	tree, err := merkle.NewTree(p.Transactions)
	if err != nil {
		return ModifierID{}, err
	}
	return HashBytes(tree.MerkleRoot), nil
}

// Bytes returns the canonical encoding of the payload.
func (p *BlockPayload) Bytes() ([]byte, error) {
	e := NewEncoder()
	e.WriteFixed(p.HeaderID[:])
	e.WriteVarint(uint64(len(p.Transactions)))
	for _, tx := range p.Transactions {
		txBytes, err := tx.Bytes()
		if err != nil {
			return nil, err
		}
		e.WriteBytes(txBytes)
	}
	return e.Bytes(), nil
}

// EncodePayload serializes p to its canonical bytes.
func EncodePayload(p *BlockPayload) ([]byte, error) {
	return p.Bytes()
}

// DecodePayload reconstructs a BlockPayload from its canonical encoding.
func DecodePayload(data []byte) (*BlockPayload, error) {
	d := NewDecoder(data)
	p := &BlockPayload{}

	copy(p.HeaderID[:], d.ReadFixed(32))
	n := d.ReadVarint()
	p.Transactions = make([]*Transaction, 0, n)
	for i := uint64(0); i < n; i++ {
		txBytes := d.ReadBytes()
		if d.Err() != nil {
			break
		}
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		p.Transactions = append(p.Transactions, tx)
	}

	if err := d.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
