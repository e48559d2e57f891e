package indexer

import "fmt"

// BlockRange represents an inclusive block range. To == 0 means unbounded.
type BlockRange struct {
	From uint64
	To   uint64
}

// NewBlockRange validates the range bounds.
func NewBlockRange(from, to uint64) (BlockRange, error) {
	if to != 0 && to < from {
		return BlockRange{}, fmt.Errorf("to block must be >= from block")
	}
	return BlockRange{From: from, To: to}, nil
}

// Contains reports whether block number n is inside the range.
func (r BlockRange) Contains(n uint64) bool {
	return n >= r.From && (r.To == 0 || n <= r.To)
}

// Past reports whether n lies beyond the upper bound.
func (r BlockRange) Past(n uint64) bool {
	return r.To != 0 && n > r.To
}

// Resume moves the lower bound past a checkpointed block.
func (r BlockRange) Resume(lastProcessed uint64) BlockRange {
	if lastProcessed >= r.From {
		r.From = lastProcessed + 1
	}
	return r
}

// Empty reports whether no block can match.
func (r BlockRange) Empty() bool {
	return r.To != 0 && r.From > r.To
}
