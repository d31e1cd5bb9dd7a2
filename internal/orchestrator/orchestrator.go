// Package orchestrator implements the node view orchestrator: the single
// writer that serializes every mutating operation against the history,
// state and mempool engines, and the single point callers go through for a
// coherent read of all three.
package orchestrator

import (
	"context"
	"sync"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/mempool"
	"github.com/coreledger/node/internal/state"
	"github.com/coreledger/node/internal/wallet"
)

// EventHandler is the logging hook every core component accepts instead of
// depending on a concrete logger: cmd/node binds it to a sugared zap logger.
type EventHandler func(format string, v ...any)

// View is the coherent, read-only snapshot GetDataFromCurrentView hands to
// its caller: the three engines as they stood at the moment the view's
// command ran in the orchestrator's single-writer loop.
type View struct {
	History *history.Engine
	State   *state.Engine
	Mempool *mempool.Pool
	Wallet  wallet.Signer
}

// Modifier is what SemanticallySuccessfulModifier publishes: the id and
// timestamp of a block that was just durably applied as part of the best
// chain.
type Modifier struct {
	ID        chain.ModifierID
	Timestamp int64
}

const subscriberBuffer = 16

// Node is the orchestrator for one running node: it owns no chain data
// itself, only the command queue and subscriber fan-out that serialize and
// announce mutations of the engines it was constructed with.
type Node struct {
	history *history.Engine
	state   *state.Engine
	pool    *mempool.Pool
	signer  wallet.Signer
	onEvent EventHandler

	cmds chan func()

	subMu   sync.Mutex
	subs    map[int]chan Modifier
	nextSub int
}

// New returns a Node wired to the given engines. Run must be called to
// start processing commands.
func New(h *history.Engine, s *state.Engine, p *mempool.Pool, signer wallet.Signer, onEvent EventHandler) *Node {
	if onEvent == nil {
		onEvent = func(string, ...any) {}
	}
	return &Node{
		history: h,
		state:   s,
		pool:    p,
		signer:  signer,
		onEvent: onEvent,
		cmds:    make(chan func(), 64),
		subs:    make(map[int]chan Modifier),
	}
}

// Run drains the command queue until ctx is canceled. It is the
// orchestrator's sequential message loop: every command runs to
// completion before the next one starts.
func (n *Node) Run(ctx context.Context) {
	for {
		select {
		case cmd := <-n.cmds:
			cmd()
		case <-ctx.Done():
			return
		}
	}
}

// enqueue runs fn on the command loop and blocks until it has completed.
func (n *Node) enqueue(fn func()) {
	done := make(chan struct{})
	n.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

// GetDataFromCurrentView runs fn against a coherent View on the command
// loop and returns whatever fn returns, so callers never observe the
// engines mid-mutation.
func (n *Node) GetDataFromCurrentView(fn func(View) any) any {
	var result any
	n.enqueue(func() {
		result = fn(View{History: n.history, State: n.state, Mempool: n.pool, Wallet: n.signer})
	})
	return result
}

// Subscribe registers a new subscriber to SemanticallySuccessfulModifier
// and returns a channel of buffered capacity subscriberBuffer, plus an
// unsubscribe function. A slow subscriber's oldest unread notification is
// dropped to make room for a new one rather than blocking the publisher.
func (n *Node) Subscribe() (<-chan Modifier, func()) {
	n.subMu.Lock()
	id := n.nextSub
	n.nextSub++
	ch := make(chan Modifier, subscriberBuffer)
	n.subs[id] = ch
	n.subMu.Unlock()

	unsubscribe := func() {
		n.subMu.Lock()
		delete(n.subs, id)
		n.subMu.Unlock()
	}
	return ch, unsubscribe
}

// publish announces m to every subscriber, dropping the oldest buffered
// notification on any channel that is already full.
func (n *Node) publish(m Modifier) {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- m:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- m:
			default:
			}
		}
	}
}
