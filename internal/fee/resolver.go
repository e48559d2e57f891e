// Package fee attributes the transaction fee of an extrinsic to an amount
// and the asset it was paid in.
package fee

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"txhistory/internal/amount"
	"txhistory/internal/model"
	"txhistory/internal/multilocation"
)

// NativeAssetID is reported when the fee was paid in the native currency.
const NativeAssetID = "native"

// Fee is the amount charged for an extrinsic and the asset it was paid in.
type Fee struct {
	Amount  string
	AssetID string
}

// LocationResolver maps the fee asset multilocation to an asset id.
type LocationResolver interface {
	Resolve(location json.RawMessage, isSwapEndpoint bool) (string, error)
}

// Resolver combines the native fee with the asset fee override.
type Resolver struct {
	calculator Calculator
	locations  LocationResolver
	logger     *zap.Logger
}

func NewResolver(calculator Calculator, locations LocationResolver, logger *zap.Logger) *Resolver {
	if calculator == nil {
		calculator = EventCalculator{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{calculator: calculator, locations: locations, logger: logger}
}

// Resolve returns the fee of the extrinsic. An assetTxPayment.AssetTxFeePaid
// event (who, actualFee, tip, assetId) emitted for this extrinsic overrides
// the native fee when assetId is a location with an interior that resolves.
func (r *Resolver) Resolve(ctx context.Context, xc model.ExtrinsicContext) (Fee, error) {
	if fee, ok := r.assetOverride(xc); ok {
		return fee, nil
	}

	native, err := r.calculator.Fee(ctx, xc, "")
	if err != nil {
		return Fee{}, fmt.Errorf("calculate fee %s: %w", xc.ExtrinsicID(), err)
	}
	return Fee{Amount: native, AssetID: NativeAssetID}, nil
}

// NativeFee returns the native fee charged to payer.
func (r *Resolver) NativeFee(ctx context.Context, xc model.ExtrinsicContext, payer string) (string, error) {
	native, err := r.calculator.Fee(ctx, xc, payer)
	if err != nil {
		return "", fmt.Errorf("calculate fee %s: %w", xc.ExtrinsicID(), err)
	}
	return native, nil
}

func (r *Resolver) assetOverride(xc model.ExtrinsicContext) (Fee, bool) {
	if r.locations == nil || xc.Extrinsic == nil {
		return Fee{}, false
	}

	for _, event := range xc.Events {
		if !event.Is("assetTxPayment", "AssetTxFeePaid") || !event.AppliedTo(xc.Extrinsic.Idx) {
			continue
		}
		if len(event.Data) < 4 {
			r.logger.Warn("asset fee event has too few fields", zap.String("extrinsic", xc.ExtrinsicID()), zap.Int("fields", len(event.Data)))
			return Fee{}, false
		}

		if !multilocation.HasInterior(event.Data[3]) {
			r.logger.Debug("asset fee paid without location", zap.String("extrinsic", xc.ExtrinsicID()))
			return Fee{}, false
		}
		assetID, err := r.locations.Resolve(event.Data[3], false)
		if err != nil {
			r.logger.Debug("asset fee location unresolved", zap.String("extrinsic", xc.ExtrinsicID()), zap.Error(err))
			return Fee{}, false
		}
		actual, err := amount.Parse(event.Data[1])
		if err != nil {
			r.logger.Warn("asset fee amount invalid", zap.String("extrinsic", xc.ExtrinsicID()), zap.Error(err))
			return Fee{}, false
		}
		return Fee{Amount: amount.Format(actual), AssetID: assetID}, true
	}
	return Fee{}, false
}
