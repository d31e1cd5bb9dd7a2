// Package history implements the history engine: it persists headers and
// payloads, tracks the best chain by cumulative difficulty, and resolves
// forks into the apply/rollback instructions the state engine consumes.
package history

import (
	"math/big"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/kv"
)

// Validity is the semantic-validity flag recorded against a header once
// its payload has been run through the state engine.
type Validity int

const (
	Unknown Validity = iota
	Valid
	Invalid
	Absent
)

const (
	keyHeader   = "h:"   // h:<id> -> encoded header
	keyPayload  = "p:"   // p:<id> -> encoded payload
	keyScore    = "s:"   // s:<id> -> encoded cumulative difficulty
	keyHeight   = "ht:"  // ht:<height LE> -> id on the best chain at that height
	keyValidity = "v:"   // v:<id> -> one validity byte
	keyBest     = "best" // -> id of the current best (possibly header-only) tip
	keyBestFull = "bestfull"
)

// Engine is the history engine for one Node.
type Engine struct {
	store *kv.Store

	// targetBlockTime and maxFutureDrift parameterize AppendHeader's
	// consensus checks: the former feeds the same retarget formula the
	// candidate assembler uses, the latter bounds how far a header's
	// timestamp may sit ahead of this node's own clock.
	targetBlockTime int64
	maxFutureDrift  int64
	// blockMaxSize bounds a payload's total serialized size in bytes;
	// AppendPayload rejects anything over budget outright.
	blockMaxSize int

	best     chain.ModifierID
	bestFull chain.ModifierID
	bestSet  bool
}

// Open opens the history engine's store and restores its best-chain
// pointers. targetBlockTime and maxFutureDrift parameterize the header
// acceptance checks AppendHeader runs against every non-genesis header;
// blockMaxSize bounds a payload's serialized size.
func Open(store *kv.Store, targetBlockTime, maxFutureDrift int64, blockMaxSize int) (*Engine, error) {
	e := &Engine{
		store:           store,
		targetBlockTime: targetBlockTime,
		maxFutureDrift:  maxFutureDrift,
		blockMaxSize:    blockMaxSize,
	}

	if raw, ok, err := store.Get([]byte(keyBest)); err != nil {
		return nil, err
	} else if ok {
		copy(e.best[:], raw)
		e.bestSet = true
	}
	if raw, ok, err := store.Get([]byte(keyBestFull)); err != nil {
		return nil, err
	} else if ok {
		copy(e.bestFull[:], raw)
	}

	return e, nil
}

// Block pairs a header with its (possibly absent) payload.
type Block struct {
	Header  *chain.BlockHeader
	Payload *chain.BlockPayload
}

// ProgressInfo is the instruction History emits after accepting a
// modifier: the chain segment to roll the state engine back past, the
// segment to apply going forward, and the common ancestor of both when a
// reorganization is in play.
type ProgressInfo struct {
	ToRemoveFromChain []Block
	ToApply           []Block
	BranchPoint       *chain.ModifierID
}

func (p ProgressInfo) IsEmpty() bool {
	return len(p.ToRemoveFromChain) == 0 && len(p.ToApply) == 0
}

func headerKey(id chain.ModifierID) []byte  { return kv.JoinKey([]byte(keyHeader), id[:]) }
func payloadKey(id chain.ModifierID) []byte { return kv.JoinKey([]byte(keyPayload), id[:]) }
func scoreKey(id chain.ModifierID) []byte   { return kv.JoinKey([]byte(keyScore), id[:]) }
func validityKey(id chain.ModifierID) []byte {
	return kv.JoinKey([]byte(keyValidity), id[:])
}

func heightKey(h chain.Height) []byte {
	e := chain.NewEncoder()
	e.WriteInt64LE(int64(h))
	return kv.JoinKey([]byte(keyHeight), e.Bytes())
}

// getHeader loads a header by id, returning (nil, false) if unknown.
func (e *Engine) getHeader(id chain.ModifierID) (*chain.BlockHeader, bool, error) {
	raw, ok, err := e.store.Get(headerKey(id))
	if err != nil || !ok {
		return nil, ok, err
	}
	h, err := chain.DecodeHeader(raw)
	return h, true, err
}

func (e *Engine) getPayload(id chain.ModifierID) (*chain.BlockPayload, bool, error) {
	raw, ok, err := e.store.Get(payloadKey(id))
	if err != nil || !ok {
		return nil, ok, err
	}
	p, err := chain.DecodePayload(raw)
	return p, true, err
}

func (e *Engine) getScore(id chain.ModifierID) (*big.Int, bool, error) {
	raw, ok, err := e.store.Get(scoreKey(id))
	if err != nil || !ok {
		return nil, ok, err
	}
	return new(big.Int).SetBytes(raw), true, nil
}

// ModifierById returns the header stored under id, if known.
func (e *Engine) ModifierById(id chain.ModifierID) (*chain.BlockHeader, bool, error) {
	return e.getHeader(id)
}

// Applicable reports whether header could legally be appended right now:
// it is genesis, or its parent is already known.
func (e *Engine) Applicable(header *chain.BlockHeader) (bool, error) {
	if header.ParentID == chain.ZeroModifierID {
		return true, nil
	}
	_, known, err := e.getHeader(header.ParentID)
	if err != nil {
		return false, err
	}
	return known, nil
}

// IsSemanticallyValid reports the recorded validity flag for id. An id
// this node has never heard of defaults to Absent, per the source this
// design is grounded on.
func (e *Engine) IsSemanticallyValid(id chain.ModifierID) (Validity, error) {
	raw, ok, err := e.store.Get(validityKey(id))
	if err != nil {
		return Unknown, err
	}
	if !ok {
		if _, known, err := e.getHeader(id); err != nil {
			return Unknown, err
		} else if !known {
			return Absent, nil
		}
		return Unknown, nil
	}
	return Validity(raw[0]), nil
}

// MarkValidity records id's semantic-validity flag.
func (e *Engine) MarkValidity(id chain.ModifierID, v Validity) error {
	b := e.store.NewBatch()
	b.Set(validityKey(id), []byte{byte(v)})
	return e.store.Commit(b)
}

// BestHeaderID returns the id of the current best (header-only) tip.
func (e *Engine) BestHeaderID() (chain.ModifierID, bool) {
	return e.best, e.bestSet
}

// BestFullID returns the id of the current best fully-validated tip.
func (e *Engine) BestFullID() chain.ModifierID {
	return e.bestFull
}

// MarkApplied records id as the new best-full tip and Valid, called by the
// orchestrator once the state engine has successfully applied that block.
func (e *Engine) MarkApplied(id chain.ModifierID) error {
	b := e.store.NewBatch()
	b.Set([]byte(keyBestFull), id[:])
	b.Set(validityKey(id), []byte{byte(Valid)})
	if err := e.store.Commit(b); err != nil {
		return chain.Wrap("history.Engine.MarkApplied", chain.Transient, err)
	}
	e.bestFull = id
	return nil
}

// MarkInvalid records id as SemanticallyInvalid, called by the
// orchestrator when the state engine rejects that block's payload.
func (e *Engine) MarkInvalid(id chain.ModifierID) error {
	return e.MarkValidity(id, Invalid)
}
