package calls

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"txhistory/internal/amount"
	"txhistory/internal/model"
)

// ErrMalformedCallArguments reports arguments that do not fit the schema of
// a recognized call.
var ErrMalformedCallArguments = errors.New("malformed call arguments")

// MalformedCallError carries the offending call.
type MalformedCallError struct {
	Module   string
	Function string
	Reason   string
}

func (e *MalformedCallError) Error() string {
	return fmt.Sprintf("%s: %s.%s: %s", ErrMalformedCallArguments, e.Module, e.Function, e.Reason)
}

func (e *MalformedCallError) Unwrap() error {
	return ErrMalformedCallArguments
}

func malformed(call *model.Call, format string, args ...interface{}) error {
	return &MalformedCallError{
		Module:   call.Module,
		Function: call.Function,
		Reason:   fmt.Sprintf(format, args...),
	}
}

// AddressFormatter renders a raw account id in the chain's address format.
type AddressFormatter interface {
	Normalize(raw string) (string, error)
}

type argKind int

const (
	argIgnored argKind = iota
	argDest
	argAmount
	argAssetID
	argCurrencyID
	argPath
	argCalls
	argCall
)

type schema struct {
	args     []argKind
	trailing int
}

var schemas = map[Shape]schema{
	ShapeNativeTransfer:      {args: []argKind{argDest, argAmount}},
	ShapeAssetTransfer:       {args: []argKind{argAssetID, argDest, argAmount}},
	ShapeOrmlTransfer:        {args: []argKind{argDest, argCurrencyID, argAmount}},
	ShapeEquilibriumTransfer: {args: []argKind{argAssetID, argDest, argAmount}},
	ShapeNativeTransferAll:   {args: []argKind{argDest}, trailing: 1},
	ShapeOrmlTransferAll:     {args: []argKind{argDest, argCurrencyID}, trailing: 1},
	ShapeSwapExactIn:         {args: []argKind{argPath, argAmount, argAmount, argDest}, trailing: 1},
	ShapeSwapExactOut:        {args: []argKind{argPath, argAmount, argAmount, argDest}, trailing: 1},
	ShapeBatch:               {args: []argKind{argCalls}},
}

// Proxy calls carry the inner call after a function-specific number of
// actor/type arguments.
var proxySchemas = map[string]schema{
	"proxy":          {args: []argKind{argIgnored, argIgnored, argCall}},
	"proxyAnnounced": {args: []argKind{argIgnored, argIgnored, argIgnored, argCall}},
}

func schemaFor(call *model.Call, shape Shape) (schema, bool) {
	if shape == ShapeProxy {
		s, ok := proxySchemas[call.Function]
		return s, ok
	}
	s, ok := schemas[shape]
	return s, ok
}

// extracted holds the typed arguments of one call in schema order.
type extracted struct {
	dests    []string
	amounts  []string
	assetID  string
	path     []json.RawMessage
	calls    []model.Call
	hasAsset bool
}

func extract(call *model.Call, shape Shape, addrs AddressFormatter) (extracted, error) {
	s, ok := schemaFor(call, shape)
	if !ok {
		return extracted{}, malformed(call, "no argument schema for shape %s", shape)
	}
	if len(call.Args) < len(s.args) || len(call.Args) > len(s.args)+s.trailing {
		return extracted{}, malformed(call, "expected %d arguments, got %d", len(s.args), len(call.Args))
	}

	var out extracted
	for i, kind := range s.args {
		raw := call.Args[i]
		switch kind {
		case argIgnored:
		case argDest:
			dest, err := parseDestination(raw, addrs)
			if err != nil {
				return extracted{}, malformed(call, "argument %d: destination: %v", i, err)
			}
			out.dests = append(out.dests, dest)
		case argAmount:
			value, err := amount.Parse(raw)
			if err != nil {
				return extracted{}, malformed(call, "argument %d: amount: %v", i, err)
			}
			out.amounts = append(out.amounts, amount.Format(value))
		case argAssetID:
			id, err := parseAssetID(raw)
			if err != nil {
				return extracted{}, malformed(call, "argument %d: asset id: %v", i, err)
			}
			out.assetID, out.hasAsset = id, true
		case argCurrencyID:
			id, err := parseCurrencyID(raw)
			if err != nil {
				return extracted{}, malformed(call, "argument %d: currency id: %v", i, err)
			}
			out.assetID, out.hasAsset = id, true
		case argPath:
			var path []json.RawMessage
			if err := json.Unmarshal(raw, &path); err != nil {
				return extracted{}, malformed(call, "argument %d: path: %v", i, err)
			}
			if len(path) == 0 {
				return extracted{}, malformed(call, "argument %d: path is empty", i)
			}
			out.path = path
		case argCalls:
			var inner []model.Call
			if err := json.Unmarshal(raw, &inner); err != nil {
				return extracted{}, malformed(call, "argument %d: calls: %v", i, err)
			}
			for j := range inner {
				if inner[j].Module == "" || inner[j].Function == "" {
					return extracted{}, malformed(call, "argument %d: call %d has no module or function", i, j)
				}
			}
			out.calls = inner
		case argCall:
			var inner model.Call
			if err := json.Unmarshal(raw, &inner); err != nil {
				return extracted{}, malformed(call, "argument %d: call: %v", i, err)
			}
			if inner.Module == "" || inner.Function == "" {
				return extracted{}, malformed(call, "argument %d: call has no module or function", i)
			}
			out.calls = []model.Call{inner}
		}
	}
	return out, nil
}

// TransferArgs are the arguments of a leaf transfer. AssetID is empty for
// the native currency. Amount is "0" for transfer-all calls.
type TransferArgs struct {
	Dest          string
	Amount        string
	AssetID       string
	IsTransferAll bool
}

// ExtractTransfer returns the (destination, amount, asset) tuple of a leaf
// transfer call.
func ExtractTransfer(call *model.Call, addrs AddressFormatter) (TransferArgs, error) {
	shape := ShapeOf(call)
	if !shape.IsTransfer() {
		return TransferArgs{}, fmt.Errorf("extract transfer: %s is not a transfer", call.Name())
	}
	values, err := extract(call, shape, addrs)
	if err != nil {
		return TransferArgs{}, err
	}

	args := TransferArgs{
		Dest:          values.dests[0],
		IsTransferAll: shape.IsTransferAll(),
	}
	if values.hasAsset {
		args.AssetID = values.assetID
	}
	if args.IsTransferAll {
		args.Amount = "0"
	} else {
		args.Amount = values.amounts[0]
	}
	return args, nil
}

// SwapArgs are the arguments of a leaf swap. AmountIn and AmountOut are the
// requested bounds.
type SwapArgs struct {
	Path      []json.RawMessage
	AmountIn  string
	AmountOut string
	Receiver  string
}

// ExtractSwap returns the path, requested amounts and receiver of a swap call.
func ExtractSwap(call *model.Call, addrs AddressFormatter) (SwapArgs, error) {
	shape := ShapeOf(call)
	if !shape.IsSwap() {
		return SwapArgs{}, fmt.Errorf("extract swap: %s is not a swap", call.Name())
	}
	values, err := extract(call, shape, addrs)
	if err != nil {
		return SwapArgs{}, err
	}

	args := SwapArgs{Path: values.path, Receiver: values.dests[0]}
	if shape == ShapeSwapExactIn {
		args.AmountIn, args.AmountOut = values.amounts[0], values.amounts[1]
	} else {
		args.AmountOut, args.AmountIn = values.amounts[0], values.amounts[1]
	}
	return args, nil
}

// ExtractInner returns the nested calls of a batch or proxy call in order.
func ExtractInner(call *model.Call) ([]model.Call, error) {
	shape := ShapeOf(call)
	if !shape.IsWrapper() {
		return nil, fmt.Errorf("extract inner: %s is not a wrapper", call.Name())
	}
	values, err := extract(call, shape, nil)
	if err != nil {
		return nil, err
	}
	return values.calls, nil
}

var multiAddressKeys = map[string]struct{}{
	"id":        {},
	"address32": {},
	"address20": {},
}

func parseDestination(raw json.RawMessage, addrs AddressFormatter) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var multi map[string]json.RawMessage
		if err := json.Unmarshal(raw, &multi); err != nil {
			return "", fmt.Errorf("expected string or multi address")
		}
		if len(multi) != 1 {
			return "", fmt.Errorf("multi address has %d variants", len(multi))
		}
		for key, inner := range multi {
			if _, ok := multiAddressKeys[strings.ToLower(key)]; !ok {
				return "", fmt.Errorf("unsupported multi address variant %q", key)
			}
			if err := json.Unmarshal(inner, &text); err != nil {
				return "", fmt.Errorf("multi address %s is not a string", key)
			}
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty destination")
	}
	if addrs == nil {
		return text, nil
	}
	return addrs.Normalize(text)
}

func parseAssetID(raw json.RawMessage) (string, error) {
	value, err := amount.Scalar(raw)
	if err != nil {
		return "", err
	}
	if n, ok := new(big.Int).SetString(strings.ReplaceAll(value, ",", ""), 10); ok {
		return n.String(), nil
	}
	return value, nil
}

// parseCurrencyID keeps 0x-hex ids (lower-cased). Any other id, numeric and
// plain string ids included, becomes 0x-hex of its canonical JSON text, so 5
// maps to 0x35. Decoded call args carry no type widths, so this is not the
// SCALE encoding of the id; callers that need it must send the hex form.
func parseCurrencyID(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil && strings.HasPrefix(strings.ToLower(text), "0x") {
		if _, err := hexutil.Decode("0x" + text[2:]); err != nil {
			return "", fmt.Errorf("invalid hex currency id %q: %w", text, err)
		}
		return strings.ToLower(text), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return "", err
	}
	if value == nil {
		return "", fmt.Errorf("currency id is null")
	}
	canonical, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(canonical), nil
}
