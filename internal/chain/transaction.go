package chain

// Unlocker pairs a spent BoxID with the proof offered to satisfy that box's
// Proposition.
type Unlocker struct {
	BoxID BoxID
	Proof []byte
}

// Transaction spends the boxes named by its Unlockers and creates a new box
// for every entry in Directives, in order. A transaction with no Unlockers
// is a coinbase transaction and is only legal as the first transaction in a
// block's payload.
type Transaction struct {
	Fee        uint64
	Timestamp  int64
	Unlockers  []Unlocker
	Directives []Directive
	Signature  []byte
}

// IsCoinbase reports whether tx spends no boxes, which is only legal for the
// first transaction of a block.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Unlockers) == 0
}

// Bytes returns the canonical encoding of the transaction, including its
// unlocker proofs and Signature field. ID hashes this encoding; SigningHash
// hashes the same body with proofs and Signature left out.
func (tx *Transaction) Bytes() ([]byte, error) {
	e := NewEncoder()
	if err := encodeTransactionBody(e, tx, true); err != nil {
		return nil, err
	}
	e.WriteBytes(tx.Signature)
	return e.Bytes(), nil
}

func encodeTransactionBody(e *Encoder, tx *Transaction, withProofs bool) error {
	e.WriteUint64LE(tx.Fee)
	e.WriteInt64LE(tx.Timestamp)

	e.WriteVarint(uint64(len(tx.Unlockers)))
	for _, u := range tx.Unlockers {
		e.WriteFixed(u.BoxID[:])
		if withProofs {
			e.WriteBytes(u.Proof)
		}
	}

	e.WriteVarint(uint64(len(tx.Directives)))
	for _, d := range tx.Directives {
		db, err := d.Bytes()
		if err != nil {
			return err
		}
		e.WriteBytes(db)
	}

	return nil
}

// SigningHash returns the hash that proofs in Unlockers sign: the content
// hash of every field except the unlocker proofs and Signature themselves.
func (tx *Transaction) SigningHash() ([]byte, error) {
	e := NewEncoder()
	if err := encodeTransactionBody(e, tx, false); err != nil {
		return nil, err
	}
	h := HashBytes(e.Bytes())
	return h[:], nil
}

// ID is the transaction's content hash, including its signature, used as
// the namespace for the box ids its directives create.
func (tx *Transaction) ID() (ModifierID, error) {
	b, err := tx.Bytes()
	if err != nil {
		return ModifierID{}, err
	}
	return HashBytes(b), nil
}

// SemanticValidity checks the structural invariants a transaction must
// satisfy independent of the state it will be applied against: no box
// spent twice within the transaction and at least one directive. Whether
// an input's proof (or the transaction Signature it falls back on) is
// present and valid is left to the box's proposition at unlock time.
func (tx *Transaction) SemanticValidity() error {
	if len(tx.Directives) == 0 {
		return Errorf("chain.Transaction.SemanticValidity", Malformed, "transaction has no directives")
	}

	seen := make(map[BoxID]bool, len(tx.Unlockers))
	for _, u := range tx.Unlockers {
		if seen[u.BoxID] {
			return Errorf("chain.Transaction.SemanticValidity", SemanticInvalid,
				"box %s spent more than once in the same transaction", u.BoxID)
		}
		seen[u.BoxID] = true
	}

	return nil
}

// CreatedBoxes evaluates every directive in order, producing the boxes this
// transaction adds to the authenticated dictionary.
func (tx *Transaction) CreatedBoxes(txID ModifierID) ([]Box, error) {
	boxes := make([]Box, 0, len(tx.Directives))
	for i, d := range tx.Directives {
		b, err := d.CreatedBox(txID, i)
		if err != nil {
			return nil, err
		}
		boxes = append(boxes, b)
	}
	return boxes, nil
}

// SpentBoxIDs returns the ids of every box tx consumes.
func (tx *Transaction) SpentBoxIDs() []BoxID {
	ids := make([]BoxID, len(tx.Unlockers))
	for i, u := range tx.Unlockers {
		ids[i] = u.BoxID
	}
	return ids
}

// Hash implements merkle.Hashable so a slice of *Transaction can be
// committed into the payload's transactions-root tree.
func (tx *Transaction) Hash() ([]byte, error) {
	id, err := tx.ID()
	if err != nil {
		return nil, err
	}
	return id[:], nil
}

// Equals implements merkle.Hashable.
func (tx *Transaction) Equals(other *Transaction) bool {
	if tx == other {
		return true
	}
	id, err := tx.ID()
	if err != nil {
		return false
	}
	otherID, err := other.ID()
	if err != nil {
		return false
	}
	return id == otherID
}

// EncodeTransaction serializes tx to its canonical bytes.
func EncodeTransaction(tx *Transaction) ([]byte, error) {
	return tx.Bytes()
}

// DecodeTransaction reconstructs a Transaction from its canonical encoding.
func DecodeTransaction(data []byte) (*Transaction, error) {
	d := NewDecoder(data)
	tx := &Transaction{}

	tx.Fee = d.ReadUint64LE()
	tx.Timestamp = d.ReadInt64LE()

	nUnlockers := d.ReadVarint()
	tx.Unlockers = make([]Unlocker, 0, nUnlockers)
	for i := uint64(0); i < nUnlockers; i++ {
		var u Unlocker
		copy(u.BoxID[:], d.ReadFixed(33))
		u.Proof = append([]byte(nil), d.ReadBytes()...)
		tx.Unlockers = append(tx.Unlockers, u)
	}

	nDirectives := d.ReadVarint()
	tx.Directives = make([]Directive, 0, nDirectives)
	for i := uint64(0); i < nDirectives; i++ {
		db := d.ReadBytes()
		if d.Err() != nil {
			break
		}
		directive, err := DecodeDirective(db)
		if err != nil {
			return nil, err
		}
		tx.Directives = append(tx.Directives, directive)
	}

	tx.Signature = append([]byte(nil), d.ReadBytes()...)

	if err := d.Err(); err != nil {
		return nil, err
	}
	return tx, nil
}
