package calls

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"txhistory/internal/model"
)

// DefaultMaxDepth bounds batch/proxy nesting.
const DefaultMaxDepth = 32

// ErrCallTreeTooDeep reports a call tree nested deeper than the configured cap.
var ErrCallTreeTooDeep = errors.New("call tree too deep")

// LocationResolver maps a multilocation to an asset id.
type LocationResolver interface {
	Resolve(location json.RawMessage, isSwapEndpoint bool) (string, error)
}

// SwapCall is a recognized swap whose path endpoints resolved.
type SwapCall struct {
	Path       []json.RawMessage
	AssetIDIn  string
	AssetIDOut string
	AmountIn   string
	AmountOut  string
	Receiver   string
}

// CallHandler builds canonical records for leaf calls. Transfer receives an
// empty assetID for native transfers.
type CallHandler struct {
	Transfer func(isTransferAll bool, dest, amount, assetID string) []model.NormalizedUnit
	Swap     func(swap SwapCall) []model.NormalizedUnit
}

// NormalizerConfig wires the collaborators of a Normalizer.
type NormalizerConfig struct {
	Resolver  LocationResolver
	Addresses AddressFormatter
	MaxDepth  int
	Logger    *zap.Logger
	// OnSwapDropped is called for swaps whose path endpoints do not resolve.
	OnSwapDropped func(call *model.Call, err error)
}

// Normalizer walks a call tree depth first.
type Normalizer struct {
	resolver      LocationResolver
	addresses     AddressFormatter
	maxDepth      int
	logger        *zap.Logger
	onSwapDropped func(call *model.Call, err error)
}

func NewNormalizer(cfg NormalizerConfig) (*Normalizer, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("location resolver is required")
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Normalizer{
		resolver:      cfg.Resolver,
		addresses:     cfg.Addresses,
		maxDepth:      cfg.MaxDepth,
		logger:        cfg.Logger,
		onSwapDropped: cfg.OnSwapDropped,
	}, nil
}

// Normalize returns the units produced by handler for every recognized leaf
// of call, in call order. Unrecognized calls contribute nothing.
func (n *Normalizer) Normalize(call *model.Call, handler CallHandler) ([]model.NormalizedUnit, error) {
	if handler.Transfer == nil || handler.Swap == nil {
		return nil, fmt.Errorf("normalize: handler callbacks are required")
	}
	return n.visit(call, handler, 0)
}

func (n *Normalizer) visit(call *model.Call, handler CallHandler, depth int) ([]model.NormalizedUnit, error) {
	if depth > n.maxDepth {
		return nil, fmt.Errorf("%w: %s at depth %d", ErrCallTreeTooDeep, call.Name(), depth)
	}

	shape := ShapeOf(call)
	switch {
	case shape.IsTransfer():
		args, err := ExtractTransfer(call, n.addresses)
		if err != nil {
			return nil, err
		}
		return handler.Transfer(args.IsTransferAll, args.Dest, args.Amount, args.AssetID), nil

	case shape.IsSwap():
		args, err := ExtractSwap(call, n.addresses)
		if err != nil {
			return nil, err
		}
		assetIn, err := n.resolver.Resolve(args.Path[0], true)
		if err == nil {
			var assetOut string
			assetOut, err = n.resolver.Resolve(args.Path[len(args.Path)-1], true)
			if err == nil {
				return handler.Swap(SwapCall{
					Path:       args.Path,
					AssetIDIn:  assetIn,
					AssetIDOut: assetOut,
					AmountIn:   args.AmountIn,
					AmountOut:  args.AmountOut,
					Receiver:   args.Receiver,
				}), nil
			}
		}
		n.logger.Debug("swap dropped", zap.String("call", call.Name()), zap.Error(err))
		if n.onSwapDropped != nil {
			n.onSwapDropped(call, err)
		}
		return nil, nil

	case shape.IsWrapper():
		inner, err := ExtractInner(call)
		if err != nil {
			return nil, err
		}
		var units []model.NormalizedUnit
		for i := range inner {
			found, err := n.visit(&inner[i], handler, depth+1)
			if err != nil {
				return nil, err
			}
			units = append(units, found...)
		}
		return units, nil

	default:
		return nil, nil
	}
}
