package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"txhistory/internal/address"
	"txhistory/internal/model"
)

// ErrMissingExecutedEvent reports a successful EVM transaction without its
// ethereum.Executed event.
var ErrMissingExecutedEvent = errors.New("missing ethereum.Executed event")

// ErrInvalidExecutedEvent reports an ethereum.Executed event whose data
// cannot be decoded.
var ErrInvalidExecutedEvent = errors.New("invalid ethereum.Executed event")

// SummaryEntry builds the -extrinsic entry of a signed extrinsic.
func SummaryEntry(xc model.ExtrinsicContext, signer, fee string) *model.HistoryEntry {
	entry := newEntry(xc, signer, model.SuffixExtrinsic, "")
	entry.Extrinsic = &model.ExtrinsicSummary{
		Hash:    xc.Extrinsic.Hash,
		Module:  xc.Extrinsic.Method.Module,
		Call:    xc.Extrinsic.Method.Function,
		Success: xc.Extrinsic.Success,
		Fee:     fee,
	}
	return entry
}

// Executed is the decoded ethereum.Executed(from, to, txHash, exitReason) event.
type Executed struct {
	From      string
	To        string
	TxHash    string
	Succeeded bool
}

// FindExecuted decodes the first ethereum.Executed event of the extrinsic.
// From is rendered as an EIP-55 address.
func FindExecuted(xc model.ExtrinsicContext) (Executed, error) {
	for _, event := range xc.Events {
		if !event.Is("ethereum", "Executed") {
			continue
		}
		if len(event.Data) < 4 {
			return Executed{}, fmt.Errorf("%w %s: expected 4 fields, got %d", ErrInvalidExecutedEvent, xc.ExtrinsicID(), len(event.Data))
		}

		var raw [3]string
		for i := range raw {
			if err := json.Unmarshal(event.Data[i], &raw[i]); err != nil {
				return Executed{}, fmt.Errorf("%w %s: field %d: %w", ErrInvalidExecutedEvent, xc.ExtrinsicID(), i, err)
			}
		}
		from, err := address.Ethereum(raw[0])
		if err != nil {
			return Executed{}, fmt.Errorf("%w %s: %w", ErrInvalidExecutedEvent, xc.ExtrinsicID(), err)
		}
		return Executed{
			From:      from,
			To:        raw[1],
			TxHash:    raw[2],
			Succeeded: exitSucceeded(event.Data[3]),
		}, nil
	}
	return Executed{}, fmt.Errorf("%w: %s", ErrMissingExecutedEvent, xc.ExtrinsicID())
}

// exitSucceeded reports whether the exit reason is the Succeed variant.
func exitSucceeded(raw json.RawMessage) bool {
	var reason map[string]json.RawMessage
	if err := json.Unmarshal(raw, &reason); err != nil {
		return false
	}
	for key := range reason {
		if strings.EqualFold(key, "succeed") {
			return true
		}
	}
	return false
}

// EvmSummaryEntry builds the -extrinsic entry of an EVM transaction from its
// executed event.
func EvmSummaryEntry(xc model.ExtrinsicContext, executed Executed, fee string) *model.HistoryEntry {
	entry := newEntry(xc, executed.From, model.SuffixExtrinsic, executed.TxHash)
	entry.Extrinsic = &model.ExtrinsicSummary{
		Hash:    executed.TxHash,
		Module:  xc.Extrinsic.Method.Module,
		Call:    xc.Extrinsic.Method.Function,
		Success: executed.Succeeded,
		Fee:     fee,
	}
	return entry
}

func isEvmTransaction(call model.Call) bool {
	return call.Module == "ethereum" && call.Function == "transact"
}
