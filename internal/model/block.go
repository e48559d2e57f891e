package model

import "encoding/json"

// Block is one decoded block as handed over by the block decoder.
type Block struct {
	Number     uint64      `json:"number"`
	Hash       string      `json:"hash"`
	Timestamp  uint64      `json:"timestamp"`
	Extrinsics []Extrinsic `json:"extrinsics"`
	Events     []Event     `json:"events"`
}

// Extrinsic is a decoded extrinsic within a block.
type Extrinsic struct {
	Idx      int    `json:"idx"`
	Hash     string `json:"hash"`
	IsSigned bool   `json:"isSigned"`
	Signer   string `json:"signer,omitempty"`
	Success  bool   `json:"success"`
	Method   Call   `json:"method"`
	Raw      string `json:"raw,omitempty"`
}

// Event is a decoded block event. ExtrinsicIdx is set for events emitted
// in the ApplyExtrinsic phase.
type Event struct {
	Section      string            `json:"section"`
	Method       string            `json:"method"`
	Data         []json.RawMessage `json:"data"`
	ExtrinsicIdx *int              `json:"extrinsicIdx,omitempty"`
}

// Is reports whether the event has the given section and method.
func (e Event) Is(section, method string) bool {
	return e.Section == section && e.Method == method
}

// AppliedTo reports whether the event was emitted while applying extrinsic idx.
func (e Event) AppliedTo(idx int) bool {
	return e.ExtrinsicIdx != nil && *e.ExtrinsicIdx == idx
}

// ExtrinsicContext bundles one extrinsic with its enclosing block and the
// events emitted while applying it.
type ExtrinsicContext struct {
	Block     *Block
	Extrinsic *Extrinsic
	Events    []Event
}

// NewExtrinsicContext selects the block events belonging to ext.
func NewExtrinsicContext(block *Block, ext *Extrinsic) ExtrinsicContext {
	events := make([]Event, 0)
	for _, event := range block.Events {
		if event.AppliedTo(ext.Idx) {
			events = append(events, event)
		}
	}
	return ExtrinsicContext{Block: block, Extrinsic: ext, Events: events}
}

// ExtrinsicID formats the "{blockNumber}-{extrinsicIdx}" identifier.
func (xc ExtrinsicContext) ExtrinsicID() string {
	return ExtrinsicID(xc.Block.Number, xc.Extrinsic.Idx)
}
