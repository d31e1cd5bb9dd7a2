package mining

import (
	"math/big"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/history"
	"github.com/coreledger/node/internal/mempool"
	"github.com/coreledger/node/internal/state"
	"github.com/coreledger/node/internal/wallet"
)

// Config is the protocol parameters the candidate assembler and difficulty
// retarget need, distinct from the worker pool's own tuning knobs.
type Config struct {
	// BlockMaxTxs bounds how many transactions (coinbase included) a
	// candidate block may carry.
	BlockMaxTxs int
	// BlockMaxSize bounds the total serialized size, in bytes, of the
	// candidate's selected transactions plus its coinbase. Selection stops
	// as soon as the next pooled transaction would exceed the remaining
	// budget, the same prefix-selection discipline BlockMaxTxs uses.
	BlockMaxSize int
	// CoinbaseReward is the fixed subsidy paid to the miner, on top of the
	// fees collected from the block's other transactions.
	CoinbaseReward uint64
	// CoinbaseMaturity is added to the candidate's height to produce the
	// coinbase box's HeightLock.
	CoinbaseMaturity chain.Height
	// TargetBlockTime is the protocol's desired seconds-per-block, fed to
	// RequiredDifficultyAfter.
	TargetBlockTime int64
}

// CandidateBlock is an assembled, unsolved block: its header carries every
// field except Nonce and Signature, which only exist once a worker has
// found a nonce meeting Header.Difficulty.
type CandidateBlock struct {
	Header  *chain.BlockHeader
	Payload *chain.BlockPayload

	// ParentID is denormalized from Header for convenience comparisons
	// against a newly reported best tip.
	ParentID chain.ModifierID
	// Dropped lists the ids of pooled transactions that failed
	// revalidation during assembly and should be removed from the pool.
	Dropped []chain.ModifierID
}

// Coordinator assembles candidate blocks from a consistent read of the
// history, state and mempool engines, paying each coinbase to the public
// key of a wallet.Signer; solved headers are signed by the worker Pool.
type Coordinator struct {
	history *history.Engine
	state   *state.Engine
	pool    *mempool.Pool
	signer  wallet.Signer
	cfg     Config
}

// NewCoordinator returns a Coordinator wired to the given engines.
func NewCoordinator(h *history.Engine, s *state.Engine, p *mempool.Pool, signer wallet.Signer, cfg Config) *Coordinator {
	return &Coordinator{history: h, state: s, pool: p, signer: signer, cfg: cfg}
}

// Assemble builds a new CandidateBlock on top of the current best-full tip,
// selecting transactions from the pool by fee order and revalidating each
// against the current state snapshot. Transactions that fail revalidation
// are reported in the result's Dropped field; the caller, not Assemble,
// is responsible for removing them from the pool.
func (c *Coordinator) Assemble(now int64) (*CandidateBlock, error) {
	parentID := c.history.BestFullID()
	var parentHeader *chain.BlockHeader
	if parentID != chain.ZeroModifierID {
		h, found, err := c.history.ModifierById(parentID)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, chain.Errorf("mining.Coordinator.Assemble", chain.Fatal, "best-full id %s has no stored header", parentID)
		}
		parentHeader = h
	}

	height := chain.Height(0)
	var target *big.Int
	if parentHeader == nil {
		target = chain.InitialDifficulty()
	} else {
		height = parentHeader.Height + 1
		timestamps, err := c.retargetWindowTimestamps(parentHeader)
		if err != nil {
			return nil, err
		}
		target = chain.RequiredDifficultyAfter(parentHeader.Difficulty, timestamps, c.cfg.TargetBlockTime)
	}

	maxSelected := c.cfg.BlockMaxTxs - 1
	if maxSelected < 0 {
		maxSelected = 0
	}

	reservedForCoinbase := coinbaseSizeEstimate()
	sizeBudget := c.cfg.BlockMaxSize - reservedForCoinbase
	if sizeBudget < 0 {
		sizeBudget = 0
	}

	pooled := c.pool.Take(-1)
	selected := make([]*chain.Transaction, 0, maxSelected)
	var dropped []chain.ModifierID
	var fees uint64
	var selectedSize int

	for _, tx := range pooled {
		if len(selected) >= maxSelected {
			break
		}
		if err := c.state.Validate(tx); err != nil {
			id, idErr := tx.ID()
			if idErr == nil {
				dropped = append(dropped, id)
			}
			continue
		}
		raw, err := tx.Bytes()
		if err != nil {
			return nil, err
		}
		if selectedSize+len(raw) > sizeBudget {
			break
		}
		selected = append(selected, tx)
		selectedSize += len(raw)
		fees += tx.Fee
	}

	coinbaseTx := &chain.Transaction{
		Timestamp: now,
		Directives: []chain.Directive{
			chain.CoinbaseDirective{
				HeightLock: height + c.cfg.CoinbaseMaturity,
				Value:      c.cfg.CoinbaseReward + fees,
				Nonce:      uint64(now),
			},
		},
	}

	allTxs := make([]*chain.Transaction, 0, len(selected)+1)
	allTxs = append(allTxs, coinbaseTx)
	allTxs = append(allTxs, selected...)

	payload := &chain.BlockPayload{Transactions: allTxs}
	txRoot, err := payload.TransactionsRoot()
	if err != nil {
		return nil, err
	}

	proof, digest, err := c.state.ProofsForTransactions(allTxs)
	if err != nil {
		return nil, err
	}

	header := &chain.BlockHeader{
		ParentID:         parentID,
		StateRoot:        digest,
		ADProofsRoot:     chain.HashBytes(proof.Bytes()),
		TransactionsRoot: txRoot,
		Timestamp:        now,
		Height:           height,
		Difficulty:       target,
		MinerPubKey:      c.signer.PublicKey(),
	}
	payload.HeaderID, err = header.ID()
	if err != nil {
		return nil, err
	}

	return &CandidateBlock{
		Header:   header,
		Payload:  payload,
		ParentID: parentID,
		Dropped:  dropped,
	}, nil
}

// coinbaseSizeEstimate returns the exact serialized size of a coinbase
// transaction: CoinbaseDirective encodes HeightLock/Value/Nonce as
// fixed-width integers, so its size never varies with their values.
func coinbaseSizeEstimate() int {
	tx := &chain.Transaction{Directives: []chain.Directive{chain.CoinbaseDirective{}}}
	raw, _ := tx.Bytes()
	return len(raw)
}

// retargetWindowTimestamps walks back from parent collecting up to
// RetargetWindow block timestamps, oldest first.
func (c *Coordinator) retargetWindowTimestamps(parent *chain.BlockHeader) ([]int64, error) {
	timestamps := []int64{parent.Timestamp}
	cur := parent
	for i := 1; i < chain.RetargetWindow; i++ {
		if cur.ParentID.IsZero() {
			break
		}
		h, found, err := c.history.ModifierById(cur.ParentID)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}
		timestamps = append(timestamps, h.Timestamp)
		cur = h
	}
	// reverse into oldest-first order
	for i, j := 0, len(timestamps)-1; i < j; i, j = i+1, j-1 {
		timestamps[i], timestamps[j] = timestamps[j], timestamps[i]
	}
	return timestamps, nil
}
