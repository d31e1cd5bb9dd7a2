package history

import (
	"math/big"
	"time"

	"github.com/coreledger/node/internal/chain"
)

// AppendHeader stores header (if not already known) and returns the
// resulting ProgressInfo. A header that extends the best chain, or that
// does not carry strictly more cumulative work than it, yields an empty
// ProgressInfo; a header on a competing branch with strictly more work
// switches the best chain and yields that reorganization's ToRemove/ToApply.
//
// Before storage, every non-genesis header is run through validateHeader:
// per spec, a header is accepted only if its timestamp strictly exceeds its
// parent's and sits within the allowed future drift, its difficulty matches
// the recomputed retarget, its PoW hash is at or below that difficulty, and
// its signature verifies under MinerPubKey.
func (e *Engine) AppendHeader(header *chain.BlockHeader) (ProgressInfo, error) {
	id, err := header.ID()
	if err != nil {
		return ProgressInfo{}, err
	}

	if _, known, err := e.getHeader(id); err != nil {
		return ProgressInfo{}, err
	} else if known {
		return ProgressInfo{}, nil
	}

	var parent *chain.BlockHeader
	if header.ParentID != chain.ZeroModifierID {
		p, known, err := e.getHeader(header.ParentID)
		if err != nil {
			return ProgressInfo{}, err
		} else if !known {
			return ProgressInfo{}, chain.Errorf("history.Engine.AppendHeader", chain.NotApplicable,
				"parent %s is unknown", header.ParentID)
		}
		parent = p
	}

	if err := e.validateHeader(header, parent); err != nil {
		return ProgressInfo{}, err
	}

	parentScore := big.NewInt(0)
	if parent != nil {
		s, ok, err := e.getScore(header.ParentID)
		if err != nil {
			return ProgressInfo{}, err
		}
		if ok {
			parentScore = s
		}
	}
	score := new(big.Int).Add(parentScore, chain.Work(header.Difficulty))

	headerBytes, err := header.Bytes()
	if err != nil {
		return ProgressInfo{}, err
	}

	b := e.store.NewBatch()
	b.Set(headerKey(id), headerBytes)
	b.Set(scoreKey(id), score.Bytes())
	if err := e.store.Commit(b); err != nil {
		return ProgressInfo{}, chain.Wrap("history.Engine.AppendHeader", chain.Transient, err)
	}

	if !e.bestSet {
		e.best = id
		e.bestSet = true
		if err := e.setBest(id); err != nil {
			return ProgressInfo{}, err
		}
		return ProgressInfo{}, nil
	}

	bestScore, _, err := e.getScore(e.best)
	if err != nil {
		return ProgressInfo{}, err
	}

	if header.ParentID == e.best {
		// extends the current best chain; no reorg, no progress until the
		// payload arrives.
		e.best = id
		if err := e.setBest(id); err != nil {
			return ProgressInfo{}, err
		}
		return ProgressInfo{}, nil
	}

	if score.Cmp(bestScore) <= 0 {
		// strictly-greater-work is required to switch, per the no-reorg-on-ties rule.
		return ProgressInfo{}, nil
	}

	return e.switchBestChain(id)
}

// validateHeader runs the full acceptance check against header. parent is
// nil exactly when header is genesis (ParentID == ZeroModifierID), in which
// case every check below is skipped: Genesis produces an unsigned, unsolved,
// parent-less header by construction, and every node must accept its own
// genesis unconditionally.
func (e *Engine) validateHeader(header *chain.BlockHeader, parent *chain.BlockHeader) error {
	if parent == nil {
		return nil
	}

	if header.Timestamp <= parent.Timestamp {
		return chain.Errorf("history.Engine.validateHeader", chain.SemanticInvalid,
			"header timestamp %d does not exceed parent timestamp %d", header.Timestamp, parent.Timestamp)
	}
	if header.Timestamp > time.Now().Unix()+e.maxFutureDrift {
		return chain.Errorf("history.Engine.validateHeader", chain.SemanticInvalid,
			"header timestamp %d is more than %ds ahead of local time", header.Timestamp, e.maxFutureDrift)
	}

	timestamps, err := e.retargetWindowTimestamps(parent)
	if err != nil {
		return err
	}
	expected := chain.RequiredDifficultyAfter(parent.Difficulty, timestamps, e.targetBlockTime)
	if header.Difficulty == nil || expected.Cmp(header.Difficulty) != 0 {
		return chain.Errorf("history.Engine.validateHeader", chain.SemanticInvalid,
			"header difficulty %s does not match recomputed target %s", header.Difficulty, expected)
	}

	if !header.Solved() {
		return chain.Errorf("history.Engine.validateHeader", chain.SemanticInvalid,
			"header does not meet its own difficulty target")
	}

	if !chain.VerifyHash(header.SigningHash(), header.Signature, header.MinerPubKey) {
		return chain.Errorf("history.Engine.validateHeader", chain.SemanticInvalid,
			"header signature does not verify under its miner public key")
	}

	return nil
}

// retargetWindowTimestamps walks back from parent collecting up to
// chain.RetargetWindow block timestamps, oldest first, the same window
// mining.Coordinator.Assemble builds so a header is only ever accepted at
// the difficulty its own miner would have computed.
func (e *Engine) retargetWindowTimestamps(parent *chain.BlockHeader) ([]int64, error) {
	timestamps := []int64{parent.Timestamp}
	cur := parent
	for i := 1; i < chain.RetargetWindow; i++ {
		if cur.ParentID == chain.ZeroModifierID {
			break
		}
		h, found, err := e.getHeader(cur.ParentID)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		timestamps = append(timestamps, h.Timestamp)
		cur = h
	}
	for i, j := 0, len(timestamps)-1; i < j; i, j = i+1, j-1 {
		timestamps[i], timestamps[j] = timestamps[j], timestamps[i]
	}
	return timestamps, nil
}

// AppendPayload attaches payload to its header and, if that completes the
// current best-chain tip, returns a ProgressInfo applying just that block.
func (e *Engine) AppendPayload(payload *chain.BlockPayload) (ProgressInfo, error) {
	header, known, err := e.getHeader(payload.HeaderID)
	if err != nil {
		return ProgressInfo{}, err
	}
	if !known {
		return ProgressInfo{}, chain.Errorf("history.Engine.AppendPayload", chain.NotApplicable,
			"header %s is unknown", payload.HeaderID)
	}

	if _, known, err := e.getPayload(payload.HeaderID); err != nil {
		return ProgressInfo{}, err
	} else if known {
		return ProgressInfo{}, nil
	}

	payloadBytes, err := payload.Bytes()
	if err != nil {
		return ProgressInfo{}, err
	}
	if e.blockMaxSize > 0 && len(payloadBytes) > e.blockMaxSize {
		return ProgressInfo{}, chain.Errorf("history.Engine.AppendPayload", chain.SemanticInvalid,
			"payload size %d exceeds BlockMaxSize %d", len(payloadBytes), e.blockMaxSize)
	}
	b := e.store.NewBatch()
	b.Set(payloadKey(payload.HeaderID), payloadBytes)
	if err := e.store.Commit(b); err != nil {
		return ProgressInfo{}, chain.Wrap("history.Engine.AppendPayload", chain.Transient, err)
	}

	if payload.HeaderID != e.best {
		return ProgressInfo{}, nil
	}

	return ProgressInfo{ToApply: []Block{{Header: header, Payload: payload}}}, nil
}

func (e *Engine) setBest(id chain.ModifierID) error {
	b := e.store.NewBatch()
	b.Set([]byte(keyBest), id[:])
	return e.store.Commit(b)
}

// ancestorChain walks parent links from id back to genesis, returning
// headers ordered oldest (genesis) first.
func (e *Engine) ancestorChain(id chain.ModifierID) ([]*chain.BlockHeader, error) {
	var chainHeaders []*chain.BlockHeader
	cur := id
	for {
		h, ok, err := e.getHeader(cur)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, chain.Errorf("history.Engine.ancestorChain", chain.Fatal, "missing header %s while walking ancestors", cur)
		}
		chainHeaders = append(chainHeaders, h)
		if cur == chain.ZeroModifierID || h.ParentID == chain.ZeroModifierID {
			break
		}
		cur = h.ParentID
	}
	// reverse to oldest-first
	for i, j := 0, len(chainHeaders)-1; i < j; i, j = i+1, j-1 {
		chainHeaders[i], chainHeaders[j] = chainHeaders[j], chainHeaders[i]
	}
	return chainHeaders, nil
}

// branchPoint finds the lowest common ancestor of a and b by walking both
// ancestor chains and comparing from the root forward.
func (e *Engine) branchPoint(a, b chain.ModifierID) (chain.ModifierID, error) {
	chainA, err := e.ancestorChain(a)
	if err != nil {
		return chain.ModifierID{}, err
	}
	chainB, err := e.ancestorChain(b)
	if err != nil {
		return chain.ModifierID{}, err
	}

	var common chain.ModifierID
	for i := 0; i < len(chainA) && i < len(chainB); i++ {
		idA, err := chainA[i].ID()
		if err != nil {
			return chain.ModifierID{}, err
		}
		idB, err := chainB[i].ID()
		if err != nil {
			return chain.ModifierID{}, err
		}
		if idA != idB {
			break
		}
		common = idA
	}
	return common, nil
}

// switchBestChain reorganizes the best chain onto newTip, which has been
// shown to carry strictly greater cumulative work.
func (e *Engine) switchBestChain(newTip chain.ModifierID) (ProgressInfo, error) {
	branch, err := e.branchPoint(e.bestFull, newTip)
	if err != nil {
		return ProgressInfo{}, err
	}

	oldChain, err := e.ancestorChain(e.bestFull)
	if err != nil {
		return ProgressInfo{}, err
	}
	newChain, err := e.ancestorChain(newTip)
	if err != nil {
		return ProgressInfo{}, err
	}

	var toRemove []Block
	for i := len(oldChain) - 1; i >= 0; i-- {
		id, err := oldChain[i].ID()
		if err != nil {
			return ProgressInfo{}, err
		}
		if id == branch {
			break
		}
		payload, _, err := e.getPayload(id)
		if err != nil {
			return ProgressInfo{}, err
		}
		toRemove = append(toRemove, Block{Header: oldChain[i], Payload: payload})
	}

	var toApply []Block
	started := false
	for _, h := range newChain {
		id, err := h.ID()
		if err != nil {
			return ProgressInfo{}, err
		}
		if !started {
			if id == branch {
				started = true
			}
			continue
		}
		payload, hasPayload, err := e.getPayload(id)
		if err != nil {
			return ProgressInfo{}, err
		}
		if !hasPayload {
			break
		}
		toApply = append(toApply, Block{Header: h, Payload: payload})
	}

	e.best = newTip
	if err := e.setBest(newTip); err != nil {
		return ProgressInfo{}, err
	}
	// bestFull is intentionally left untouched here: it only advances once
	// the orchestrator has actually run each block in toApply through the
	// state engine and called MarkApplied, the same rule that governs a
	// simple (non-reorg) extension via AppendPayload.

	bp := branch
	return ProgressInfo{ToRemoveFromChain: toRemove, ToApply: toApply, BranchPoint: &bp}, nil
}

// ContinuationHeaderChains returns every maximal forward chain of known
// headers starting at from, used for fork analysis during sync.
func (e *Engine) ContinuationHeaderChains(from chain.ModifierID) ([][]chain.ModifierID, error) {
	children := make(map[chain.ModifierID][]chain.ModifierID)
	var err error
	err = e.store.IteratePrefix([]byte(keyHeader), func(key, value []byte) bool {
		h, derr := chain.DecodeHeader(value)
		if derr != nil {
			err = derr
			return false
		}
		id, derr := h.ID()
		if derr != nil {
			err = derr
			return false
		}
		children[h.ParentID] = append(children[h.ParentID], id)
		return true
	})
	if err != nil {
		return nil, err
	}

	var chains [][]chain.ModifierID
	var walk func(path []chain.ModifierID, cur chain.ModifierID)
	walk = func(path []chain.ModifierID, cur chain.ModifierID) {
		next := children[cur]
		if len(next) == 0 {
			chains = append(chains, path)
			return
		}
		for _, child := range next {
			walk(append(append([]chain.ModifierID{}, path...), child), child)
		}
	}
	walk(nil, from)

	return chains, nil
}
