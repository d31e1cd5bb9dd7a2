package chain

// SyncInfoComparison is the result of comparing two nodes' SyncInfo
// summaries, used by history.Compare to decide whether a sync round is
// needed and in which direction.
type SyncInfoComparison int

const (
	Equal SyncInfoComparison = iota
	Younger
	Older
	Nonsense
)

func (c SyncInfoComparison) String() string {
	switch c {
	case Equal:
		return "equal"
	case Younger:
		return "younger"
	case Older:
		return "older"
	default:
		return "nonsense"
	}
}

// SyncInfo is the gossip summary of a node's best chain: the ids of the
// last K headers on it, most recent last. Comparing two SyncInfo values to
// decide who is ahead requires access to the local best chain, so that
// logic lives in internal/history, not here.
type SyncInfo struct {
	LastHeaderIDs []ModifierID
}

// IsEmpty reports whether this SyncInfo carries no header ids at all,
// which is how a node that has not yet applied any block, genesis included,
// announces itself.
func (s SyncInfo) IsEmpty() bool {
	return len(s.LastHeaderIDs) == 0
}

// Bytes returns the canonical encoding: a varint count followed by that
// many 32-byte ids.
func (s SyncInfo) Bytes() []byte {
	e := NewEncoder()
	e.WriteVarint(uint64(len(s.LastHeaderIDs)))
	for _, id := range s.LastHeaderIDs {
		e.WriteFixed(id[:])
	}
	return e.Bytes()
}

// EncodeSyncInfo serializes s to its canonical bytes.
func EncodeSyncInfo(s SyncInfo) []byte {
	return s.Bytes()
}

// DecodeSyncInfo reconstructs a SyncInfo from its canonical encoding. K is
// capped at 1000 per the wire message's field limit.
func DecodeSyncInfo(data []byte) (SyncInfo, error) {
	d := NewDecoder(data)
	n := d.ReadVarint()
	if n > 1000 {
		return SyncInfo{}, Errorf("chain.DecodeSyncInfo", Malformed, "K=%d exceeds the 1000 header-id limit", n)
	}

	ids := make([]ModifierID, 0, n)
	for i := uint64(0); i < n; i++ {
		var id ModifierID
		copy(id[:], d.ReadFixed(32))
		ids = append(ids, id)
	}

	if err := d.Err(); err != nil {
		return SyncInfo{}, err
	}
	return SyncInfo{LastHeaderIDs: ids}, nil
}
