// Package nodeapp wires the authenticated state engine, history engine,
// mempool, consensus coordinator and orchestrator into one running node,
// the explicit value cmd/node constructs instead of relying on package
// state shared behind the scenes.
package nodeapp

import (
	"context"
	"sync"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/kv"
	"github.com/coreledger/node/internal/mempool"
	"github.com/coreledger/node/internal/mining"
	"github.com/coreledger/node/internal/orchestrator"
	"github.com/coreledger/node/internal/state"
	"github.com/coreledger/node/internal/wallet"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config collects every knob nodeapp.New needs, independent of how the
// caller obtained them (flags, environment, a config file). Tags are
// enforced by Validate before anything is opened.
type Config struct {
	DataDir          string       `validate:"required"`
	RetainedVersions int          `validate:"gte=1"`
	MinFee           uint64       `validate:"gte=0"`
	MempoolBound     int          `validate:"gte=1"`
	BlockMaxTxs      int          `validate:"gte=1"`
	BlockMaxSize     int          `validate:"gte=1"`
	CoinbaseReward   uint64       `validate:"gte=0"`
	CoinbaseMaturity chain.Height `validate:"gte=0"`
	TargetBlockTime  int64        `validate:"gte=1"`
	// MaxFutureDrift bounds how far ahead of this node's own clock a
	// header's timestamp may sit before AppendHeader rejects it.
	MaxFutureDrift   int64  `validate:"gte=0"`
	NumWorkers       int    `validate:"gte=1"`
	InitialSupply    uint64 `validate:"gte=0"`
	GenesisTimestamp int64  `validate:"gte=0"`
}

// Validate checks cfg's struct tags, returning a descriptive error for the
// first field that fails.
func (cfg Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return chain.Wrap("nodeapp.Config.Validate", chain.Malformed, err)
	}
	return nil
}

// Node is one fully wired running node: every core engine plus the
// orchestrator and mining coordinator bound together, and nothing else
// global.
type Node struct {
	Store   *kv.Store
	History *history.Engine
	State   *state.Engine
	Pool    *mempool.Pool
	Signer  wallet.Signer

	Orchestrator *orchestrator.Node
	Mining       *mining.Coordinator
	Workers      *mining.Pool
	Reactor      *mining.Reactor

	onEvent orchestrator.EventHandler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New opens the node's store and constructs every engine and coordinator,
// bootstrapping genesis if the store is empty. It does not start the
// orchestrator's command loop or the mining reactor; call Start for that.
func New(cfg Config, signer wallet.Signer, onEvent orchestrator.EventHandler) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := kv.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	historyEngine, err := history.Open(store, cfg.TargetBlockTime, cfg.MaxFutureDrift, cfg.BlockMaxSize)
	if err != nil {
		return nil, err
	}
	stateEngine, err := state.Open(store, cfg.RetainedVersions, cfg.MinFee)
	if err != nil {
		return nil, err
	}
	pool := mempool.New(cfg.MempoolBound)

	n := &Node{
		Store:   store,
		History: historyEngine,
		State:   stateEngine,
		Pool:    pool,
		Signer:  signer,
		onEvent: onEvent,
	}

	if _, ok := historyEngine.BestHeaderID(); !ok {
		if err := n.bootstrapGenesis(cfg); err != nil {
			return nil, err
		}
	}

	n.Orchestrator = orchestrator.New(historyEngine, stateEngine, pool, signer, onEvent)

	miningCfg := mining.Config{
		BlockMaxTxs:      cfg.BlockMaxTxs,
		BlockMaxSize:     cfg.BlockMaxSize,
		CoinbaseReward:   cfg.CoinbaseReward,
		CoinbaseMaturity: cfg.CoinbaseMaturity,
		TargetBlockTime:  cfg.TargetBlockTime,
	}
	n.Mining = mining.NewCoordinator(historyEngine, stateEngine, pool, signer, miningCfg)
	n.Workers = mining.NewPool(cfg.NumWorkers, signer)
	n.Reactor = mining.NewReactor(n.Mining, n.Workers, cfg.GenesisTimestamp)

	return n, nil
}

// bootstrapGenesis builds and applies the fixed genesis block directly
// against the history and state engines, before the orchestrator exists to
// serialize the call: there is no concurrent activity yet to serialize
// against.
func (n *Node) bootstrapGenesis(cfg Config) error {
	difficulty := chain.InitialDifficulty()
	header, payload, err := chain.Genesis(n.Signer.PublicKey(), cfg.InitialSupply, difficulty, cfg.GenesisTimestamp)
	if err != nil {
		return err
	}

	proof, digest, err := n.State.ProofsForTransactions(payload.Transactions)
	if err != nil {
		return err
	}
	header.StateRoot = digest
	header.ADProofsRoot = chain.HashBytes(proof.Bytes())

	id, err := header.ID()
	if err != nil {
		return err
	}
	payload.HeaderID = id

	if _, err := n.History.AppendHeader(header); err != nil {
		return err
	}
	if _, err := n.History.AppendPayload(payload); err != nil {
		return err
	}
	if err := n.State.Apply(header, payload); err != nil {
		return err
	}
	return n.History.MarkApplied(id)
}

// Start runs the orchestrator's command loop and wires the mining reactor
// to its SemanticallySuccessfulModifier feed, both in background
// goroutines. Stop tears both down.
func (n *Node) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.Orchestrator.Run(ctx)
	}()

	sub, unsubscribe := n.Orchestrator.Subscribe()
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer unsubscribe()
		for {
			select {
			case m, ok := <-sub:
				if !ok {
					return
				}
				if err := n.Reactor.OnSemanticallySuccessfulModifier(m.ID, m.Timestamp); err != nil {
					n.onEvent("nodeapp: mining reactor failed to react to %s: %v", m.ID, err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case mined := <-n.Workers.Solved:
				if err := n.Orchestrator.SubmitMinedBlock(mined); err != nil {
					n.onEvent("nodeapp: failed to submit mined block: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels every background goroutine Start launched, shuts down the
// mining workers, and closes the store. It blocks until everything has
// exited.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	n.Workers.Shutdown()
	n.wg.Wait()
	return n.Store.Close()
}
