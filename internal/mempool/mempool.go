// Package mempool implements the bounded, fee-ordered pool of unconfirmed
// transactions the consensus coordinator draws candidate blocks from.
package mempool

import (
	"sort"
	"sync"

	"github.com/coreledger/node/internal/chain"
)

// entry is one pooled transaction plus its arrival order, used to break
// fee ties in favor of whichever transaction was admitted first.
type entry struct {
	tx       *chain.Transaction
	admitted int64
}

// Pool is the bounded, fee-ordered, no-shared-input mempool for one Node.
// Reads (Take, Size, Contains) may be served concurrently with writes; a
// single mutex is enough here since the orchestrator's single-writer
// discipline already serializes Put/Remove against each other.
type Pool struct {
	mu       sync.RWMutex
	bound    int
	clock    int64
	entries  map[chain.ModifierID]entry
	byInput  map[chain.BoxID]chain.ModifierID
}

// New returns an empty Pool accepting at most bound transactions.
func New(bound int) *Pool {
	return &Pool{
		bound:   bound,
		entries: make(map[chain.ModifierID]entry),
		byInput: make(map[chain.BoxID]chain.ModifierID),
	}
}

// Put admits tx, validated by the caller beforehand, rejecting it if its
// id is already present, if it conflicts with a pooled transaction's
// input, or if the pool is full and tx's fee does not exceed the current
// lowest fee.
func (p *Pool) Put(tx *chain.Transaction) error {
	id, err := tx.ID()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; exists {
		return chain.Errorf("mempool.Pool.Put", chain.SemanticInvalid, "transaction %s already pooled", id)
	}

	for _, u := range tx.Unlockers {
		if conflictID, ok := p.byInput[u.BoxID]; ok {
			return chain.Errorf("mempool.Pool.Put", chain.SemanticInvalid,
				"input %s already spent by pooled transaction %s", u.BoxID, conflictID)
		}
	}

	if len(p.entries) >= p.bound {
		lowest := p.lowestFeeLocked()
		if tx.Fee <= lowest {
			return chain.Errorf("mempool.Pool.Put", chain.SemanticInvalid,
				"pool is full and fee %d does not exceed lowest pooled fee %d", tx.Fee, lowest)
		}
		p.evictLowestLocked()
	}

	p.clock++
	p.entries[id] = entry{tx: tx, admitted: p.clock}
	for _, u := range tx.Unlockers {
		p.byInput[u.BoxID] = id
	}
	return nil
}

func (p *Pool) lowestFeeLocked() uint64 {
	var lowest uint64 = ^uint64(0)
	for _, e := range p.entries {
		if e.tx.Fee < lowest {
			lowest = e.tx.Fee
		}
	}
	return lowest
}

func (p *Pool) evictLowestLocked() {
	var victim chain.ModifierID
	var victimEntry entry
	first := true
	for id, e := range p.entries {
		if first || e.tx.Fee < victimEntry.tx.Fee ||
			(e.tx.Fee == victimEntry.tx.Fee && e.admitted < victimEntry.admitted) {
			victim, victimEntry = id, e
			first = false
		}
	}
	if !first {
		p.removeLocked(victim)
	}
}

func (p *Pool) removeLocked(id chain.ModifierID) {
	e, ok := p.entries[id]
	if !ok {
		return
	}
	for _, u := range e.tx.Unlockers {
		delete(p.byInput, u.BoxID)
	}
	delete(p.entries, id)
}

// RemoveAsync idempotently removes every transaction in ids.
func (p *Pool) RemoveAsync(ids []chain.ModifierID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.removeLocked(id)
	}
}

// Take returns up to limit pooled transactions ordered by fee descending,
// ties broken by admission order ascending.
func (p *Pool) Take(limit int) []*chain.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]entry, 0, len(p.entries))
	for _, e := range p.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].tx.Fee != all[j].tx.Fee {
			return all[i].tx.Fee > all[j].tx.Fee
		}
		return all[i].admitted < all[j].admitted
	})

	if limit > len(all) || limit < 0 {
		limit = len(all)
	}
	out := make([]*chain.Transaction, limit)
	for i := 0; i < limit; i++ {
		out[i] = all[i].tx
	}
	return out
}

// Size reports the number of pooled transactions.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Contains reports whether id is pooled.
func (p *Pool) Contains(id chain.ModifierID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[id]
	return ok
}
