package mining

import (
	"context"
	"sync"

	"github.com/coreledger/node/internal/chain"
	"github.com/coreledger/node/internal/wallet"
)

// MinedBlock is a solved candidate: a signed header whose nonce satisfies
// its difficulty target, paired with the payload it was built from.
type MinedBlock struct {
	Header  *chain.BlockHeader
	Payload *chain.BlockPayload
}

// Pool drives a fixed number of nonce-search workers against the current
// candidate block. Only one candidate is ever being searched at a time: a
// new SignalStartMining call cancels whatever search is already running
// before starting the next one, the same poison-and-restart discipline the
// Reactor uses when a better chain tip arrives mid-search.
type Pool struct {
	numWorkers int
	signer     wallet.Signer
	Solved     chan MinedBlock

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool returns a Pool with numWorkers search goroutines, sending solved
// blocks to the returned Pool's Solved channel.
func NewPool(numWorkers int, signer wallet.Signer) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		signer:     signer,
		Solved:     make(chan MinedBlock, 1),
	}
}

// SignalStartMining cancels any in-flight search and launches numWorkers
// fresh ones against candidate, each searching a disjoint nonce stride.
func (p *Pool) SignalStartMining(candidate *CandidateBlock) {
	p.SignalCancelMining()

	p.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.search(ctx, i, candidate)
	}
}

// SignalCancelMining stops the currently running search, if any, and waits
// for its workers to exit before returning.
func (p *Pool) SignalCancelMining() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// Shutdown cancels any running search permanently; the Pool must not be
// reused after Shutdown returns.
func (p *Pool) Shutdown() {
	p.SignalCancelMining()
}

// search repeats header.Solved checks over a disjoint stride of the nonce
// space until the context is canceled or a solution is found, at which
// point it signs the winning header and, if it wins the race against a
// sibling worker or a cancellation, publishes it to Solved.
func (p *Pool) search(ctx context.Context, offset int, candidate *CandidateBlock) {
	defer p.wg.Done()

	header := *candidate.Header
	stride := uint64(p.numWorkers)
	nonce := uint64(offset)

	const checkInterval = 4096
	for {
		for i := 0; i < checkInterval; i++ {
			header.Nonce = nonce
			if header.Solved() {
				signingHash := header.SigningHash()
				sig, err := p.signer.Sign(signingHash)
				if err != nil {
					return
				}
				header.Signature = sig

				finalID, err := header.ID()
				if err != nil {
					return
				}
				payload := *candidate.Payload
				payload.HeaderID = finalID

				select {
				case p.Solved <- MinedBlock{Header: &header, Payload: &payload}:
				case <-ctx.Done():
				}
				return
			}
			nonce += stride
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
