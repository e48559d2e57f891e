package fee

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"txhistory/internal/amount"
	"txhistory/internal/model"
)

// Calculator computes the native fee charged to payer for an extrinsic. An
// empty payer means the extrinsic signer.
type Calculator interface {
	Fee(ctx context.Context, xc model.ExtrinsicContext, payer string) (string, error)
}

// AddressFormatter normalizes account ids before they are compared.
type AddressFormatter interface {
	Normalize(raw string) (string, error)
}

// EventCalculator derives the fee from the extrinsic's own events:
// TransactionFeePaid, then the payer's balances.Withdraw (less the EVM
// refund), then the sum of balances and treasury deposits.
type EventCalculator struct {
	Addresses AddressFormatter
}

func (c EventCalculator) Fee(_ context.Context, xc model.ExtrinsicContext, payer string) (string, error) {
	explicitPayer := payer != ""
	if !explicitPayer && xc.Extrinsic != nil {
		payer = xc.Extrinsic.Signer
	}

	for _, event := range xc.Events {
		if !event.Is("transactionPayment", "TransactionFeePaid") || len(event.Data) < 3 {
			continue
		}
		if explicitPayer && !c.sameAccount(event.Data[0], payer) {
			continue
		}
		actual, err := amount.Parse(event.Data[1])
		if err != nil {
			return "", fmt.Errorf("parse fee paid: %w", err)
		}
		tip, err := amount.Parse(event.Data[2])
		if err != nil {
			return "", fmt.Errorf("parse fee tip: %w", err)
		}
		return amount.Format(actual.Add(tip)), nil
	}

	if payer != "" {
		withdraw, ok, err := c.sumFor(xc.Events, "balances", "Withdraw", payer)
		if err != nil {
			return "", err
		}
		if ok {
			if isEvmTransact(xc) {
				refund, _, err := c.sumFor(xc.Events, "balances", "Deposit", payer)
				if err != nil {
					return "", err
				}
				withdraw = withdraw.Sub(refund)
				if withdraw.IsNegative() {
					withdraw = decimal.Zero
				}
			}
			return amount.Format(withdraw), nil
		}
	}

	total := decimal.Zero
	for _, event := range xc.Events {
		var raw json.RawMessage
		switch {
		case event.Is("balances", "Deposit") && len(event.Data) >= 2:
			raw = event.Data[1]
		case event.Is("treasury", "Deposit") && len(event.Data) >= 1:
			raw = event.Data[0]
		default:
			continue
		}
		value, err := amount.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("parse deposit: %w", err)
		}
		total = total.Add(value)
	}
	return amount.Format(total), nil
}

// sumFor returns the first (section, method) event amount credited to or
// debited from account, with data (who, amount).
func (c EventCalculator) sumFor(events []model.Event, section, method, account string) (decimal.Decimal, bool, error) {
	for _, event := range events {
		if !event.Is(section, method) || len(event.Data) < 2 {
			continue
		}
		if !c.sameAccount(event.Data[0], account) {
			continue
		}
		value, err := amount.Parse(event.Data[1])
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("parse %s.%s: %w", section, method, err)
		}
		return value, true, nil
	}
	return decimal.Zero, false, nil
}

func (c EventCalculator) sameAccount(raw json.RawMessage, account string) bool {
	var who string
	if err := json.Unmarshal(raw, &who); err != nil {
		return false
	}
	if who == account {
		return true
	}
	if c.Addresses == nil {
		return false
	}
	left, err := c.Addresses.Normalize(who)
	if err != nil {
		return false
	}
	right, err := c.Addresses.Normalize(account)
	if err != nil {
		return false
	}
	return left == right
}

func isEvmTransact(xc model.ExtrinsicContext) bool {
	return xc.Extrinsic != nil && xc.Extrinsic.Method.Module == "ethereum" && xc.Extrinsic.Method.Function == "transact"
}

// ErrFeeUnavailable wraps failures of the node fee query.
var ErrFeeUnavailable = errors.New("fee unavailable")

// FeeQuerier estimates the partial fee of an encoded extrinsic at a block.
type FeeQuerier interface {
	QueryPartialFee(ctx context.Context, extrinsic string, blockHash string) (string, error)
}

// RPCCalculator asks the node for the partial fee of the raw extrinsic. It
// reports "0" for extrinsics decoded without their raw encoding.
type RPCCalculator struct {
	Client FeeQuerier
}

func (c RPCCalculator) Fee(ctx context.Context, xc model.ExtrinsicContext, _ string) (string, error) {
	if c.Client == nil || xc.Extrinsic == nil || xc.Extrinsic.Raw == "" {
		return "0", nil
	}
	blockHash := ""
	if xc.Block != nil {
		blockHash = xc.Block.Hash
	}
	partial, err := c.Client.QueryPartialFee(ctx, xc.Extrinsic.Raw, blockHash)
	if err != nil {
		return "", fmt.Errorf("%w: query partial fee: %w", ErrFeeUnavailable, err)
	}
	value, err := amount.ParseString(partial)
	if err != nil {
		return "", fmt.Errorf("%w: parse partial fee: %w", ErrFeeUnavailable, err)
	}
	return amount.Format(value), nil
}

// ChainCalculator returns the first non-zero fee of its members. Member
// errors are reported only when no member produced a fee.
type ChainCalculator []Calculator

func (c ChainCalculator) Fee(ctx context.Context, xc model.ExtrinsicContext, payer string) (string, error) {
	var errs []error
	for _, calc := range c {
		value, err := calc.Fee(ctx, xc, payer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if value != "" && value != "0" {
			return value, nil
		}
	}
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}
	return "0", nil
}
