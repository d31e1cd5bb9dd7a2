package mining

import (
	"sync"
	"time"

	"github.com/coreledger/node/internal/chain"
)

// Reactor drives the Coordinator and Pool from the stream of blocks the
// orchestrator reports as newly semantically successful: it reassembles
// and restarts the search whenever the best-full tip moves somewhere the
// current candidate wasn't built on top of, and otherwise leaves a
// search already in flight alone.
type Reactor struct {
	coordinator *Coordinator
	pool        *Pool
	// startAt withholds mining until the node has caught up with the
	// network: blocks whose timestamp precedes it are historical replay
	// during initial sync, not the live tip.
	startAt int64

	mu      sync.Mutex
	started bool
	current *CandidateBlock
}

// NewReactor returns a Reactor that will not start mining on blocks timestamped
// before startAt.
func NewReactor(coordinator *Coordinator, pool *Pool, startAt int64) *Reactor {
	return &Reactor{coordinator: coordinator, pool: pool, startAt: startAt}
}

// OnSemanticallySuccessfulModifier reports that blockID, timestamped ts,
// just became the node's best-full tip. If the current candidate (if any)
// was not built on top of blockID, or no search has started yet and ts has
// caught up to startAt, a fresh candidate is assembled and the search is
// restarted.
func (r *Reactor) OnSemanticallySuccessfulModifier(blockID chain.ModifierID, ts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started && ts < r.startAt {
		return nil
	}

	if r.started && r.current != nil && r.current.ParentID == blockID {
		return nil
	}

	candidate, err := r.coordinator.Assemble(time.Now().Unix())
	if err != nil {
		return err
	}

	r.current = candidate
	r.started = true
	r.pool.SignalStartMining(candidate)
	return nil
}

// Stop cancels any in-flight search.
func (r *Reactor) Stop() {
	r.mu.Lock()
	r.started = false
	r.mu.Unlock()
	r.pool.SignalCancelMining()
}
