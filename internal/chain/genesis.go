package chain

import "math/big"

// Genesis builds the fixed, deterministic genesis payload: a single
// coinbase transaction minting initialSupply intrinsic coins to
// minerPubKey, with no height lock. The returned header has StateRoot and
// ADProofsRoot left zero; the caller applies the payload to an empty
// authenticated dictionary, fills in the resulting digest and proofs root,
// and recomputes the header id, the same sequence candidate assembly uses
// for every later block.
func Genesis(minerPubKey [32]byte, initialSupply uint64, initialDifficulty *big.Int, timestamp int64) (*BlockHeader, *BlockPayload, error) {
	coinbaseTx := &Transaction{
		Fee:       0,
		Timestamp: timestamp,
		Directives: []Directive{
			CoinbaseDirective{HeightLock: 0, Value: initialSupply, Nonce: 0},
		},
	}

	payload := &BlockPayload{Transactions: []*Transaction{coinbaseTx}}
	txRoot, err := payload.TransactionsRoot()
	if err != nil {
		return nil, nil, err
	}

	header := &BlockHeader{
		ParentID:         ZeroModifierID,
		TransactionsRoot: txRoot,
		Timestamp:        timestamp,
		Height:           0,
		Difficulty:       new(big.Int).Set(initialDifficulty),
		MinerPubKey:      minerPubKey,
	}

	headerID, err := header.ID()
	if err != nil {
		return nil, nil, err
	}
	payload.HeaderID = headerID

	return header, payload, nil
}
