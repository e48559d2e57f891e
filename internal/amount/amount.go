// Package amount parses on-chain balances carried in decoded call arguments
// and event data.
package amount

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is wrapped by every parse failure.
var ErrInvalidAmount = errors.New("invalid amount")

// Parse accepts a non-negative integer as a JSON number, decimal string or
// 0x-hex string.
func Parse(raw json.RawMessage) (decimal.Decimal, error) {
	value, err := Scalar(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return ParseString(value)
}

// ParseString parses the text form accepted by Parse.
func ParseString(value string) (decimal.Decimal, error) {
	var d decimal.Decimal
	if strings.HasPrefix(value, "0x") {
		n, ok := new(big.Int).SetString(value[2:], 16)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: bad hex %q", ErrInvalidAmount, value)
		}
		d = decimal.NewFromBigInt(n, 0)
	} else {
		var err error
		d, err = decimal.NewFromString(strings.ReplaceAll(value, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, value, err)
		}
	}

	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", ErrInvalidAmount, value)
	}
	if !d.Equal(d.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("%w: fractional %q", ErrInvalidAmount, value)
	}
	return d, nil
}

// Format renders an integer amount in base 10.
func Format(d decimal.Decimal) string {
	return d.Truncate(0).String()
}

// Scalar returns the text of a JSON number or non-empty string.
func Scalar(raw json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	switch typed := value.(type) {
	case json.Number:
		return typed.String(), nil
	case string:
		text := strings.TrimSpace(typed)
		if text == "" {
			return "", fmt.Errorf("%w: empty value", ErrInvalidAmount)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: expected number or string, got %s", ErrInvalidAmount, string(raw))
	}
}
