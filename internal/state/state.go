// Package state implements the authenticated state engine: it owns the
// authenticated dictionary of live boxes, validates transactions against
// it, and applies or rolls back whole blocks as one atomic unit.
package state

import (
	"github.com/coreledger/node/internal/ad"
	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/kv"
)

const (
	metaBestVersion        = "meta:bestVersion"
	metaStateHeight        = "meta:stateHeight"
	metaLastBlockTimestamp = "meta:lastBlockTimestamp"
)

// undo is the information needed to invert a committed version: the parent
// version and pre-state to restore, the ids it inserted (to be deleted),
// and the boxes it removed, with their bytes (to be reinserted).
type undo struct {
	parent           chain.VersionTag
	parentHeight     chain.Height
	parentLastBlock  int64
	inserted         []chain.BoxID
	removedRaw       map[chain.BoxID][]byte
}

// Engine is the authenticated state engine for one Node.
type Engine struct {
	store *kv.Store
	dict  *ad.Dictionary

	keepVersions int
	minFee       uint64

	best      chain.VersionTag
	height    chain.Height
	lastBlock int64

	versions []chain.VersionTag   // oldest first, len <= keepVersions
	undos    map[chain.VersionTag]undo
}

// Open opens the state engine's store and rebuilds its in-memory indices.
func Open(store *kv.Store, keepVersions int, minFee uint64) (*Engine, error) {
	dict, err := ad.Open(store)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:        store,
		dict:         dict,
		keepVersions: keepVersions,
		minFee:       minFee,
		height:       chain.HeightPreGenesis,
		undos:        make(map[chain.VersionTag]undo),
	}

	if raw, ok, err := store.Get([]byte(metaBestVersion)); err != nil {
		return nil, err
	} else if ok {
		copy(e.best[:], raw)
	}
	if raw, ok, err := store.Get([]byte(metaStateHeight)); err != nil {
		return nil, err
	} else if ok {
		d := chain.NewDecoder(raw)
		e.height = chain.Height(d.ReadInt64LE())
	}
	if raw, ok, err := store.Get([]byte(metaLastBlockTimestamp)); err != nil {
		return nil, err
	} else if ok {
		d := chain.NewDecoder(raw)
		e.lastBlock = d.ReadInt64LE()
	}

	return e, nil
}

// Digest returns the current ADDigest.
func (e *Engine) Digest() (chain.ADDigest, error) {
	return e.dict.Digest()
}

// Height returns the height of the last applied block.
func (e *Engine) Height() chain.Height {
	return e.height
}

// BestVersion returns the VersionTag of the last committed version.
func (e *Engine) BestVersion() chain.VersionTag {
	return e.best
}

// LastBlockTimestamp returns the timestamp of the last applied block.
func (e *Engine) LastBlockTimestamp() int64 {
	return e.lastBlock
}

// RollbackVersions returns the retained VersionTags, oldest first.
func (e *Engine) RollbackVersions() []chain.VersionTag {
	out := make([]chain.VersionTag, len(e.versions))
	copy(out, e.versions)
	return out
}

// unlockContext builds the UnlockContext a proposition sees while unlocking
// a box spent by tx.
func (e *Engine) unlockContext(tx *chain.Transaction) chain.UnlockContext {
	digest, _ := e.dict.Digest()
	return chain.UnlockContext{
		Tx:                 tx,
		Height:             e.height + 1,
		LastBlockTimestamp: e.lastBlock,
		RootHash:           digest.Hash,
	}
}

// Validate checks tx against the currently committed digest: structural
// validity, every unlocker's proof, and the per-asset balance invariant.
func (e *Engine) Validate(tx *chain.Transaction) error {
	if err := tx.SemanticValidity(); err != nil {
		return err
	}
	if !tx.IsCoinbase() && tx.Fee < e.minFee {
		return chain.Errorf("state.Engine.Validate", chain.SemanticInvalid, "fee %d below minimum %d", tx.Fee, e.minFee)
	}

	spent := make(map[chain.AssetID]uint64)
	created := make(map[chain.AssetID]uint64)

	ctx := e.unlockContext(tx)
	for _, u := range tx.Unlockers {
		raw, ok := e.dict.Get(u.BoxID)
		if !ok {
			return chain.Errorf("state.Engine.Validate", chain.StateInvalid, "input box %s not found", u.BoxID)
		}
		box, err := chain.DecodeBox(raw)
		if err != nil {
			return chain.Wrap("state.Engine.Validate", chain.StateInvalid, err)
		}

		proof := u.Proof
		if len(proof) == 0 {
			proof = tx.Signature
		}
		if err := box.Proposition().Unlock(proof, ctx); err != nil {
			return chain.Wrap("state.Engine.Validate", chain.SemanticInvalid, err)
		}

		spent[box.AssetID()] += box.Amount()
	}

	txID, err := tx.ID()
	if err != nil {
		return err
	}
	for i, d := range tx.Directives {
		box, err := d.CreatedBox(txID, i)
		if err != nil {
			return err
		}
		created[box.AssetID()] += box.Amount()
	}

	for asset, createdAmt := range created {
		if asset.IsIntrinsic() {
			continue
		}
		if spent[asset] < createdAmt {
			return chain.Errorf("state.Engine.Validate", chain.SemanticInvalid,
				"asset %x: created %d exceeds spent %d", asset, createdAmt, spent[asset])
		}
	}
	if !tx.IsCoinbase() {
		if spent[chain.IntrinsicAssetID] < created[chain.IntrinsicAssetID] {
			return chain.Errorf("state.Engine.Validate", chain.SemanticInvalid, "intrinsic coin created exceeds spent")
		}
	}

	return nil
}

// buildBatch turns an ordered list of transactions into the AD batch their
// combined unlockers and directives describe, without validating them; the
// caller (Apply, or proofsForTransactions's caller) is responsible for
// validation.
func buildBatch(txs []*chain.Transaction) (*ad.Batch, error) {
	batch := ad.NewBatch()
	for _, tx := range txs {
		for _, u := range tx.Unlockers {
			batch.Remove(u.BoxID)
		}

		txID, err := tx.ID()
		if err != nil {
			return nil, err
		}
		boxes, err := tx.CreatedBoxes(txID)
		if err != nil {
			return nil, err
		}
		for _, box := range boxes {
			raw, err := box.Bytes()
			if err != nil {
				return nil, err
			}
			batch.Insert(box.BoxID(), raw)
		}
	}
	return batch, nil
}

// ProofsForTransactions speculatively applies txs and returns the proof and
// digest that result, leaving the engine's committed state untouched: the
// computation never mutates the dictionary, so there is nothing to roll
// back on any exit path, including a panic.
func (e *Engine) ProofsForTransactions(txs []*chain.Transaction) (ad.Proof, chain.ADDigest, error) {
	batch, err := buildBatch(txs)
	if err != nil {
		return ad.Proof{}, chain.ADDigest{}, err
	}
	return e.dict.Speculate(batch)
}

// Apply validates and applies a block's payload against header, committing
// the result as a new version iff every check passes: any failure leaves
// the engine exactly at its pre-call digest, since nothing is written to
// the dictionary or the store until the whole batch is known to be valid.
func (e *Engine) Apply(header *chain.BlockHeader, payload *chain.BlockPayload) error {
	for i, tx := range payload.Transactions {
		if i == 0 && tx.IsCoinbase() {
			continue
		}
		if err := e.Validate(tx); err != nil {
			return err
		}
	}

	batch, err := buildBatch(payload.Transactions)
	if err != nil {
		return err
	}

	removedRaw := make(map[chain.BoxID][]byte, len(batch.Removes()))
	for id := range batch.Removes() {
		raw, ok := e.dict.Get(id)
		if !ok {
			return chain.Errorf("state.Engine.Apply", chain.StateInvalid, "cannot spend unknown box %s", id)
		}
		removedRaw[id] = raw
	}

	proof, digest, err := e.dict.Speculate(batch)
	if err != nil {
		return err
	}

	if digest.Hash != header.StateRoot.Hash || digest.TreeHeight != header.StateRoot.TreeHeight {
		return chain.Errorf("state.Engine.Apply", chain.StateInvalid, "post-apply digest does not match header.stateRoot")
	}
	if chain.HashBytes(proof.Bytes()) != header.ADProofsRoot {
		return chain.Errorf("state.Engine.Apply", chain.StateInvalid, "ad proof hash does not match header.adProofsRoot")
	}

	kvBatch := e.store.NewBatch()
	if _, _, err := e.dict.Commit(kvBatch, batch); err != nil {
		return err
	}

	headerID, err := header.ID()
	if err != nil {
		return err
	}

	newTimestamp := latestTimestamp(payload)

	u := undo{
		parent:          e.best,
		parentHeight:    e.height,
		parentLastBlock: e.lastBlock,
		inserted:        make([]chain.BoxID, 0, len(batch.Inserts())),
		removedRaw:      removedRaw,
	}
	for id := range batch.Inserts() {
		u.inserted = append(u.inserted, id)
	}

	e.writeMeta(kvBatch, headerID, e.height+1, newTimestamp)

	if err := e.store.Commit(kvBatch); err != nil {
		return chain.Wrap("state.Engine.Apply", chain.Transient, err)
	}

	e.best = headerID
	e.height++
	e.lastBlock = newTimestamp
	e.versions = append(e.versions, headerID)
	e.undos[headerID] = u
	e.trimWindow()

	return nil
}

// latestTimestamp returns the timestamp of the block a payload belongs to:
// conventionally the coinbase transaction's timestamp, the first entry.
func latestTimestamp(payload *chain.BlockPayload) int64 {
	if len(payload.Transactions) == 0 {
		return 0
	}
	return payload.Transactions[0].Timestamp
}

// RollbackTo resets the engine to version, provided it is within the
// retained window; it is the only legal way to move the state backward.
func (e *Engine) RollbackTo(version chain.VersionTag) error {
	idx := -1
	for i, v := range e.versions {
		if v == version {
			idx = i
			break
		}
	}
	if version != e.best && idx == -1 {
		return chain.Errorf("state.Engine.RollbackTo", chain.NotApplicable,
			"version %s is not within the retained rollback window", version)
	}

	kvBatch := e.store.NewBatch()
	cur := e.best
	restoredHeight := e.height
	restoredLastBlock := e.lastBlock

	for cur != version {
		u, ok := e.undos[cur]
		if !ok {
			return chain.Errorf("state.Engine.RollbackTo", chain.Fatal, "missing undo record for version %s", cur)
		}

		invert := ad.NewBatch()
		for _, id := range u.inserted {
			invert.Remove(id)
		}
		for id, raw := range u.removedRaw {
			invert.Insert(id, raw)
		}
		if _, _, err := e.dict.Commit(kvBatch, invert); err != nil {
			return err
		}

		restoredHeight = u.parentHeight
		restoredLastBlock = u.parentLastBlock

		delete(e.undos, cur)
		cur = u.parent
	}

	newVersions := e.versions[:0:0]
	for _, v := range e.versions {
		newVersions = append(newVersions, v)
		if v == version {
			break
		}
	}

	e.best = version
	e.versions = newVersions
	e.height = restoredHeight
	e.lastBlock = restoredLastBlock

	e.writeMeta(kvBatch, version, e.height, e.lastBlock)
	if err := e.store.Commit(kvBatch); err != nil {
		return chain.Wrap("state.Engine.RollbackTo", chain.Transient, err)
	}

	return nil
}

func (e *Engine) writeMeta(b *kv.Batch, version chain.VersionTag, height chain.Height, lastBlock int64) {
	b.Set([]byte(metaBestVersion), version[:])

	he := chain.NewEncoder()
	he.WriteInt64LE(int64(height))
	b.Set([]byte(metaStateHeight), he.Bytes())

	te := chain.NewEncoder()
	te.WriteInt64LE(lastBlock)
	b.Set([]byte(metaLastBlockTimestamp), te.Bytes())
}

func (e *Engine) trimWindow() {
	if len(e.versions) <= e.keepVersions {
		return
	}
	drop := len(e.versions) - e.keepVersions
	for _, v := range e.versions[:drop] {
		delete(e.undos, v)
	}
	e.versions = e.versions[drop:]
}
