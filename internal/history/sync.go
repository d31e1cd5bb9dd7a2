package history

import (
	"github.com/coreledger/node/internal/chain"
)

// bestChainIds returns the ids of the best chain from genesis to the
// current best-full tip, oldest first.
func (e *Engine) bestChainIds() ([]chain.ModifierID, error) {
	if e.bestFull == chain.ZeroModifierID {
		return nil, nil
	}
	headers, err := e.ancestorChain(e.bestFull)
	if err != nil {
		return nil, err
	}
	ids := make([]chain.ModifierID, len(headers))
	for i, h := range headers {
		id, err := h.ID()
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// Compare classifies remote's SyncInfo relative to our best chain.
func (e *Engine) Compare(remote chain.SyncInfo) (chain.SyncInfoComparison, error) {
	ours, err := e.bestChainIds()
	if err != nil {
		return chain.Nonsense, err
	}

	if remote.IsEmpty() {
		if len(ours) == 0 {
			return chain.Equal, nil
		}
		return chain.Younger, nil
	}

	remoteLatest := remote.LastHeaderIDs[len(remote.LastHeaderIDs)-1]
	if len(ours) > 0 && ours[len(ours)-1] == remoteLatest {
		return chain.Equal, nil
	}

	ourSet := make(map[chain.ModifierID]int, len(ours))
	for i, id := range ours {
		ourSet[id] = i
	}

	if idx, ok := ourSet[remoteLatest]; ok && idx < len(ours)-1 {
		return chain.Older, nil
	}

	anyKnown := false
	for _, id := range remote.LastHeaderIDs {
		if _, ok := ourSet[id]; ok {
			anyKnown = true
			break
		}
	}
	if anyKnown || len(ours) > 0 {
		return chain.Younger, nil
	}

	return chain.Nonsense, nil
}

// ContinuationIds returns up to size header ids the remote must download
// next to catch up with our best chain.
func (e *Engine) ContinuationIds(remote chain.SyncInfo, size int) ([]chain.ModifierID, error) {
	ours, err := e.bestChainIds()
	if err != nil {
		return nil, err
	}

	if len(ours) == 0 {
		if size < len(remote.LastHeaderIDs) {
			return remote.LastHeaderIDs[:size], nil
		}
		return remote.LastHeaderIDs, nil
	}

	if remote.IsEmpty() {
		if size < len(ours) {
			return ours[:size], nil
		}
		return ours, nil
	}

	ourIndex := make(map[chain.ModifierID]int, len(ours))
	for i, id := range ours {
		ourIndex[id] = i
	}

	best := -1
	for _, id := range remote.LastHeaderIDs {
		if i, ok := ourIndex[id]; ok && i > best {
			best = i
		}
	}
	if best == -1 {
		return nil, nil
	}

	start := best + 1
	end := start + size
	if end > len(ours) {
		end = len(ours)
	}
	if start >= end {
		return nil, nil
	}
	return ours[start:end], nil
}

// OurSyncInfo builds the SyncInfo we advertise: the last k ids of our best
// chain, most recent last.
func (e *Engine) OurSyncInfo(k int) (chain.SyncInfo, error) {
	ours, err := e.bestChainIds()
	if err != nil {
		return chain.SyncInfo{}, err
	}
	if len(ours) > k {
		ours = ours[len(ours)-k:]
	}
	return chain.SyncInfo{LastHeaderIDs: ours}, nil
}
