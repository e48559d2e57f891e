package model

import (
	"fmt"
)

// History entry id suffixes.
const (
	SuffixFrom      = "-from"
	SuffixTo        = "-to"
	SuffixExtrinsic = "-extrinsic"
)

// HistoryEntry is one row of the account history ledger. Exactly one of
// Transfer, AssetTransfer, Swap or Extrinsic is set.
type HistoryEntry struct {
	ID            string            `json:"id"`
	BlockNumber   uint64            `json:"blockNumber"`
	Timestamp     uint64            `json:"timestamp"`
	Address       string            `json:"address"`
	ExtrinsicHash string            `json:"extrinsicHash"`
	ExtrinsicIdx  int               `json:"extrinsicIdx"`
	Transfer      *NativeTransfer   `json:"transfer,omitempty"`
	AssetTransfer *AssetTransfer    `json:"assetTransfer,omitempty"`
	Swap          *Swap             `json:"swap,omitempty"`
	Extrinsic     *ExtrinsicSummary `json:"extrinsic,omitempty"`
}

// ExtrinsicSummary describes an extrinsic that is not recorded as a transfer.
type ExtrinsicSummary struct {
	Hash    string `json:"hash"`
	Module  string `json:"module"`
	Call    string `json:"call"`
	Success bool   `json:"success"`
	Fee     string `json:"fee"`
}

// ExtrinsicID formats "{blockNumber}-{extrinsicIdx}".
func ExtrinsicID(blockNumber uint64, extrinsicIdx int) string {
	return fmt.Sprintf("%d-%d", blockNumber, extrinsicIdx)
}

// Attach sets the payload slot matching the transfer variant.
func (e *HistoryEntry) Attach(t CanonicalTransfer) {
	switch v := t.(type) {
	case *Swap:
		e.Swap = v
	case *AssetTransfer:
		e.AssetTransfer = v
	case *NativeTransfer:
		e.Transfer = v
	}
}

// PayloadKind names the attached payload: transfer, assetTransfer, swap,
// extrinsic or "" when none is set.
func (e *HistoryEntry) PayloadKind() string {
	switch {
	case e.Swap != nil:
		return "swap"
	case e.AssetTransfer != nil:
		return "assetTransfer"
	case e.Transfer != nil:
		return "transfer"
	case e.Extrinsic != nil:
		return "extrinsic"
	default:
		return ""
	}
}
