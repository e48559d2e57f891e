// Package calls classifies decoded runtime calls and recovers the transfers
// and swaps they attempted.
package calls

import "txhistory/internal/model"

// Shape is the recognized kind of a call.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeNativeTransfer
	ShapeAssetTransfer
	ShapeOrmlTransfer
	ShapeEquilibriumTransfer
	ShapeNativeTransferAll
	ShapeOrmlTransferAll
	ShapeSwapExactIn
	ShapeSwapExactOut
	ShapeBatch
	ShapeProxy
)

var shapeNames = map[Shape]string{
	ShapeUnknown:             "unknown",
	ShapeNativeTransfer:      "native_transfer",
	ShapeAssetTransfer:       "asset_transfer",
	ShapeOrmlTransfer:        "orml_transfer",
	ShapeEquilibriumTransfer: "equilibrium_transfer",
	ShapeNativeTransferAll:   "native_transfer_all",
	ShapeOrmlTransferAll:     "orml_transfer_all",
	ShapeSwapExactIn:         "swap_exact_in",
	ShapeSwapExactOut:        "swap_exact_out",
	ShapeBatch:               "batch",
	ShapeProxy:               "proxy",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTransfer reports whether s is a leaf transfer shape.
func (s Shape) IsTransfer() bool {
	switch s {
	case ShapeNativeTransfer, ShapeAssetTransfer, ShapeOrmlTransfer, ShapeEquilibriumTransfer,
		ShapeNativeTransferAll, ShapeOrmlTransferAll:
		return true
	default:
		return false
	}
}

// IsTransferAll reports whether s moves the whole free balance.
func (s Shape) IsTransferAll() bool {
	return s == ShapeNativeTransferAll || s == ShapeOrmlTransferAll
}

// IsSwap reports whether s is a leaf swap shape.
func (s Shape) IsSwap() bool {
	return s == ShapeSwapExactIn || s == ShapeSwapExactOut
}

// IsWrapper reports whether s only carries nested calls.
func (s Shape) IsWrapper() bool {
	return s == ShapeBatch || s == ShapeProxy
}

type callKey struct {
	module   string
	function string
}

var shapes = map[callKey]Shape{
	{"balances", "transfer"}:                        ShapeNativeTransfer,
	{"balances", "transferKeepAlive"}:               ShapeNativeTransfer,
	{"balances", "transferAllowDeath"}:              ShapeNativeTransfer,
	{"assets", "transfer"}:                          ShapeAssetTransfer,
	{"assets", "transferKeepAlive"}:                 ShapeAssetTransfer,
	{"currencies", "transfer"}:                      ShapeOrmlTransfer,
	{"tokens", "transfer"}:                          ShapeOrmlTransfer,
	{"tokens", "transferKeepAlive"}:                 ShapeOrmlTransfer,
	{"eqBalances", "transfer"}:                      ShapeEquilibriumTransfer,
	{"balances", "transferAll"}:                     ShapeNativeTransferAll,
	{"tokens", "transferAll"}:                       ShapeOrmlTransferAll,
	{"assetConversion", "swapExactTokensForTokens"}: ShapeSwapExactIn,
	{"assetConversion", "swapTokensForExactTokens"}: ShapeSwapExactOut,
	{"utility", "batch"}:                            ShapeBatch,
	{"utility", "batchAll"}:                         ShapeBatch,
	{"utility", "forceBatch"}:                       ShapeBatch,
	{"proxy", "proxy"}:                              ShapeProxy,
	{"proxy", "proxyAnnounced"}:                     ShapeProxy,
}

// ShapeOf classifies call by its module and function.
func ShapeOf(call *model.Call) Shape {
	if call == nil {
		return ShapeUnknown
	}
	return shapes[callKey{call.Module, call.Function}]
}

func IsNativeTransfer(call *model.Call) bool      { return ShapeOf(call) == ShapeNativeTransfer }
func IsAssetTransfer(call *model.Call) bool       { return ShapeOf(call) == ShapeAssetTransfer }
func IsOrmlTransfer(call *model.Call) bool        { return ShapeOf(call) == ShapeOrmlTransfer }
func IsEquilibriumTransfer(call *model.Call) bool { return ShapeOf(call) == ShapeEquilibriumTransfer }
func IsNativeTransferAll(call *model.Call) bool   { return ShapeOf(call) == ShapeNativeTransferAll }
func IsOrmlTransferAll(call *model.Call) bool     { return ShapeOf(call) == ShapeOrmlTransferAll }
func IsSwapExactIn(call *model.Call) bool         { return ShapeOf(call) == ShapeSwapExactIn }
func IsSwapExactOut(call *model.Call) bool        { return ShapeOf(call) == ShapeSwapExactOut }
func IsBatch(call *model.Call) bool               { return ShapeOf(call) == ShapeBatch }
func IsProxy(call *model.Call) bool               { return ShapeOf(call) == ShapeProxy }
