package orchestrator

import (
	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/mining"
)

// SubmitMinedBlock hands a locally-solved block back to the orchestrator,
// the same entry point a peer-relayed header+payload pair would use. The
// header and payload are submitted as a unit so the apply cascade sees
// them together rather than racing a concurrent peer submission in
// between.
func (n *Node) SubmitMinedBlock(mined mining.MinedBlock) error {
	var result error
	n.enqueue(func() {
		if _, err := n.history.AppendHeader(mined.Header); err != nil {
			result = err
			return
		}
		progress, err := n.history.AppendPayload(mined.Payload)
		if err != nil {
			result = err
			return
		}
		result = n.processProgress(progress)
	})
	return result
}

// SubmitHeader enqueues header for storage and, if it extends or replaces
// the best chain, processing through the state engine. It blocks until the
// header and any triggered apply/rollback cascade have completed.
func (n *Node) SubmitHeader(header *chain.BlockHeader) error {
	var result error
	n.enqueue(func() {
		progress, err := n.history.AppendHeader(header)
		if err != nil {
			result = err
			return
		}
		result = n.processProgress(progress)
	})
	return result
}

// SubmitPayload enqueues payload for storage and, if its header is the
// best chain's tip, processing through the state engine. It blocks until
// the payload and any triggered apply/rollback cascade have completed.
func (n *Node) SubmitPayload(payload *chain.BlockPayload) error {
	var result error
	n.enqueue(func() {
		progress, err := n.history.AppendPayload(payload)
		if err != nil {
			result = err
			return
		}
		result = n.processProgress(progress)
	})
	return result
}

// SubmitTransaction validates tx against the current state snapshot and, if
// it passes, admits it to the mempool for future candidate assembly. It is
// the orchestrator's entry point for an externally-supplied transaction,
// mirroring SubmitHeader/SubmitPayload/SubmitMinedBlock's single-writer
// discipline: the whole validate-then-admit step runs on the command loop.
func (n *Node) SubmitTransaction(tx *chain.Transaction) error {
	var result error
	n.enqueue(func() {
		if err := n.state.Validate(tx); err != nil {
			result = err
			return
		}
		result = n.pool.Put(tx)
	})
	return result
}

// processProgress carries out the reorg/apply cascade a ProgressInfo
// describes: a single rollback to the branch point (the state engine's
// own undo chain handles however many versions that spans), any
// now-orphaned transactions re-admitted to the mempool, then each new
// block applied in order, stopping at the first one the state engine
// rejects. Must run on the command loop.
func (n *Node) processProgress(progress history.ProgressInfo) error {
	if progress.IsEmpty() {
		return nil
	}

	if progress.BranchPoint != nil {
		if err := n.state.RollbackTo(*progress.BranchPoint); err != nil {
			n.onEvent("orchestrator: rollback to %s failed: %v", progress.BranchPoint, err)
			return err
		}
		n.readmitOrphaned(progress.ToRemoveFromChain)
	}

	for _, blk := range progress.ToApply {
		id, err := blk.Header.ID()
		if err != nil {
			return err
		}

		if err := n.state.Apply(blk.Header, blk.Payload); err != nil {
			n.onEvent("orchestrator: block %s rejected by state engine: %v", id, err)
			if markErr := n.history.MarkInvalid(id); markErr != nil {
				n.onEvent("orchestrator: failed to mark %s invalid: %v", id, markErr)
			}
			return err
		}

		if err := n.history.MarkApplied(id); err != nil {
			n.onEvent("orchestrator: failed to mark %s applied: %v", id, err)
			return err
		}

		n.confirm(blk.Payload)
		n.publish(Modifier{ID: id, Timestamp: blk.Header.Timestamp})
	}

	return nil
}

// confirm removes every transaction in payload from the mempool: it has
// now been durably confirmed and no longer belongs in the candidate pool.
func (n *Node) confirm(payload *chain.BlockPayload) {
	ids := make([]chain.ModifierID, 0, len(payload.Transactions))
	for _, tx := range payload.Transactions {
		if tx.IsCoinbase() {
			continue
		}
		id, err := tx.ID()
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	n.pool.RemoveAsync(ids)
}

// readmitOrphaned re-admits the non-coinbase transactions of blocks a
// reorg just dropped from the best chain back into the mempool, most
// recently orphaned block first, so the work closest to the new tip
// resurfaces before older orphaned work. A transaction that no longer
// validates against the post-rollback state (for instance because one of
// its inputs was created by a block the rollback removed) is silently dropped rather than
// treated as an error.
func (n *Node) readmitOrphaned(removed []history.Block) {
	for _, blk := range removed {
		for _, tx := range blk.Payload.Transactions {
			if tx.IsCoinbase() {
				continue
			}
			if err := n.state.Validate(tx); err != nil {
				continue
			}
			if err := n.pool.Put(tx); err != nil {
				n.onEvent("orchestrator: could not re-admit orphaned transaction: %v", err)
			}
		}
	}
}
