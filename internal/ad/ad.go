// Package ad implements the authenticated dictionary backing the
// authenticated state engine: a boxId -> box mapping with a succinct root
// digest and per-operation inclusion proofs. There is no off-the-shelf
// authenticated AVL prover anywhere in the retrieved example pack, so this
// package grounds the commitment on the generic merkle tree adapted in
// internal/merkle rather than on a borrowed, unverifiable balanced-tree
// implementation: every committed version rebuilds the full tree over the
// live box set, trading O(n) per-block commit cost for an implementation
// whose correctness follows directly from the merkle package's tests.
package ad

import (
	"sort"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/merkle"
)

const boxPrefix = "box:"

// entry adapts a stored box into something merkle.Tree can hash: the box's
// id and serialized bytes, so the tree commits to content, not identity.
type entry struct {
	id  chain.BoxID
	raw []byte
}

func (e entry) Hash() ([]byte, error) {
	h := chain.HashBytes(e.id[:], e.raw)
	return h[:], nil
}

func (e entry) Equals(other entry) bool {
	return e.id == other.id
}

// Dictionary is the in-memory, store-backed authenticated dictionary for
// one Node. It mirrors the live box set into memory so every commit can
// rebuild the merkle tree without re-reading the whole store.
type Dictionary struct {
	store *kv.Store
	boxes map[chain.BoxID][]byte
}

// Open loads every persisted box into memory and returns a ready Dictionary.
func Open(store *kv.Store) (*Dictionary, error) {
	d := &Dictionary{store: store, boxes: make(map[chain.BoxID][]byte)}

	err := store.IteratePrefix([]byte(boxPrefix), func(key, value []byte) bool {
		var id chain.BoxID
		copy(id[:], key[len(boxPrefix):])
		d.boxes[id] = append([]byte(nil), value...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func boxKey(id chain.BoxID) []byte {
	return append([]byte(boxPrefix), id[:]...)
}

// sortedEntries returns every box in the dictionary ordered by id, the
// deterministic leaf order the tree is built and rebuilt from.
func (d *Dictionary) sortedEntries() []entry {
	entries := make([]entry, 0, len(d.boxes))
	for id, raw := range d.boxes {
		entries = append(entries, entry{id: id, raw: raw})
	}
	sort.Slice(entries, func(i, j int) bool {
		return string(entries[i].id[:]) < string(entries[j].id[:])
	})
	return entries
}

// tree rebuilds the commitment tree over the current box set.
func (d *Dictionary) tree() (*merkle.Tree[entry], error) {
	return merkle.NewTree(d.sortedEntries())
}

// Digest returns the current ADDigest without mutating anything.
func (d *Dictionary) Digest() (chain.ADDigest, error) {
	t, err := d.tree()
	if err != nil {
		return chain.ADDigest{}, err
	}
	return chain.ADDigest{Hash: chain.HashBytes(t.MerkleRoot), TreeHeight: treeHeight(len(d.boxes))}, nil
}

// Get returns the raw bytes of boxId, if present.
func (d *Dictionary) Get(id chain.BoxID) ([]byte, bool) {
	b, ok := d.boxes[id]
	return b, ok
}

// Batch is a pending set of insertions and removals, applied atomically by
// Commit and producing one ADProof + ADDigest pair.
type Batch struct {
	inserts map[chain.BoxID][]byte
	removes map[chain.BoxID]bool
	order   []chain.BoxID
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{inserts: make(map[chain.BoxID][]byte), removes: make(map[chain.BoxID]bool)}
}

// Insert stages the creation of box id with raw bytes.
func (b *Batch) Insert(id chain.BoxID, raw []byte) {
	if !b.staged(id) {
		b.order = append(b.order, id)
	}
	b.inserts[id] = raw
	delete(b.removes, id)
}

// Remove stages the destruction of box id.
func (b *Batch) Remove(id chain.BoxID) {
	if !b.staged(id) {
		b.order = append(b.order, id)
	}
	b.removes[id] = true
	delete(b.inserts, id)
}

func (b *Batch) staged(id chain.BoxID) bool {
	if _, ok := b.inserts[id]; ok {
		return true
	}
	_, ok := b.removes[id]
	return ok
}

// Inserts returns the boxes staged for insertion, keyed by id.
func (b *Batch) Inserts() map[chain.BoxID][]byte {
	return b.inserts
}

// Removes returns the ids staged for removal.
func (b *Batch) Removes() map[chain.BoxID]bool {
	return b.removes
}

// ProofOp is one entry of an ADProof. For a removal it carries the
// inclusion path showing id was present in the tree the op was proved
// against; an insertion carries only its id and Insert flag, with no path.
type ProofOp struct {
	BoxID  chain.BoxID
	Insert bool
	Path   [][]byte
	Order  []int
}

// Proof is the opaque, serialized witness for a batch of dictionary
// mutations: one ProofOp per affected box, in batch order.
type Proof struct {
	Ops []ProofOp
}

// Bytes serializes the proof to the canonical bytes whose hash becomes a
// header's adProofsRoot.
func (p Proof) Bytes() []byte {
	e := chain.NewEncoder()
	e.WriteVarint(uint64(len(p.Ops)))
	for _, op := range p.Ops {
		e.WriteFixed(op.BoxID[:])
		e.WriteBool(op.Insert)
		e.WriteVarint(uint64(len(op.Path)))
		for i, step := range op.Path {
			e.WriteBytes(step)
			e.WriteByte(byte(op.Order[i]))
		}
	}
	return e.Bytes()
}

// commit proves a batch against the tree built from before and returns the
// proof and post-commit digest. It never writes the store; d.boxes is
// updated only when persist is set, and only after every op has been
// proved. Used by both Commit and the speculative-apply path in
// internal/state.
func (d *Dictionary) commit(b *Batch, persist bool) (Proof, chain.ADDigest, error) {
	before, err := d.tree()
	if err != nil {
		return Proof{}, chain.ADDigest{}, err
	}

	proof := Proof{Ops: make([]ProofOp, 0, len(b.order))}
	for _, id := range b.order {
		if b.removes[id] {
			raw, ok := d.boxes[id]
			if !ok {
				return Proof{}, chain.ADDigest{}, chain.Errorf("ad.Dictionary.commit", chain.StateInvalid,
					"cannot remove unknown box %s", id)
			}
			path, order, perr := before.Proof(entry{id: id, raw: raw})
			if perr != nil {
				return Proof{}, chain.ADDigest{}, chain.Wrap("ad.Dictionary.commit", chain.StateInvalid, perr)
			}
			proof.Ops = append(proof.Ops, ProofOp{BoxID: id, Insert: false, Path: path, Order: order})
			continue
		}

		proof.Ops = append(proof.Ops, ProofOp{BoxID: id, Insert: true})
	}

	if persist {
		for id := range b.removes {
			delete(d.boxes, id)
		}
		for id, raw := range b.inserts {
			d.boxes[id] = raw
		}
	}

	if !persist {
		// speculative: apply to a scratch copy so the in-memory map is untouched.
		scratch := make(map[chain.BoxID][]byte, len(d.boxes))
		for k, v := range d.boxes {
			scratch[k] = v
		}
		for id := range b.removes {
			delete(scratch, id)
		}
		for id, raw := range b.inserts {
			scratch[id] = raw
		}
		entries := make([]entry, 0, len(scratch))
		for id, raw := range scratch {
			entries = append(entries, entry{id: id, raw: raw})
		}
		sort.Slice(entries, func(i, j int) bool { return string(entries[i].id[:]) < string(entries[j].id[:]) })
		t, terr := merkle.NewTree(entries)
		if terr != nil {
			return Proof{}, chain.ADDigest{}, terr
		}
		return proof, chain.ADDigest{Hash: chain.HashBytes(t.MerkleRoot), TreeHeight: treeHeight(len(entries))}, nil
	}

	digest, err := d.Digest()
	return proof, digest, err
}

// Commit stages b's writes into batch, which the caller commits to the
// store, and applies b to the in-memory map once every op has been proved;
// a Commit that returns an error leaves the in-memory map unchanged.
func (d *Dictionary) Commit(batch *kv.Batch, b *Batch) (Proof, chain.ADDigest, error) {
	for id, raw := range b.inserts {
		batch.Set(boxKey(id), raw)
	}
	for id := range b.removes {
		batch.Delete(boxKey(id))
	}
	return d.commit(b, true)
}

// Speculate reports the proof and digest that committing b would produce,
// without mutating the dictionary or the store.
func (d *Dictionary) Speculate(b *Batch) (Proof, chain.ADDigest, error) {
	return d.commit(b, false)
}

// treeHeight is the height merkle.Tree implicitly builds for n leafs: the
// ceiling of log2 of the next power of two at or above n (0 for n<=1).
func treeHeight(n int) uint8 {
	if n <= 1 {
		return 0
	}
	h := uint8(0)
	size := 1
	for size < n {
		size *= 2
		h++
	}
	return h
}
