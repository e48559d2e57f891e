// Package history records account history entries for decoded extrinsics:
// the attempted value movement of failed signed transfers and swaps, and a
// summary entry for every other signed extrinsic and for EVM transactions.
package history

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"txhistory/internal/calls"
	"txhistory/internal/fee"
	"txhistory/internal/metrics"
	"txhistory/internal/model"
	"txhistory/internal/storage"
)

// FeeResolver prices an extrinsic.
type FeeResolver interface {
	Resolve(ctx context.Context, xc model.ExtrinsicContext) (fee.Fee, error)
	NativeFee(ctx context.Context, xc model.ExtrinsicContext, payer string) (string, error)
}

// Config wires the collaborators of a Handler.
type Config struct {
	Store      storage.HistoryStore
	Fees       FeeResolver
	Normalizer *calls.Normalizer
	// Addresses normalizes the signer so it compares equal to destinations.
	Addresses        calls.AddressFormatter
	LegacyDoubleSave bool
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
}

// Handler is the per-extrinsic entry point.
type Handler struct {
	store        storage.HistoryStore
	fees         FeeResolver
	normalizer   *calls.Normalizer
	addresses    calls.AddressFormatter
	materializer *Materializer
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if cfg.Fees == nil {
		return nil, fmt.Errorf("fee resolver is required")
	}
	if cfg.Normalizer == nil {
		return nil, fmt.Errorf("call normalizer is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	materializer := NewMaterializer(cfg.Store, cfg.LegacyDoubleSave)
	materializer.observe = cfg.Metrics.ObserveEntry

	return &Handler{
		store:        cfg.Store,
		fees:         cfg.Fees,
		normalizer:   cfg.Normalizer,
		addresses:    cfg.Addresses,
		materializer: materializer,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}, nil
}

// HandleExtrinsic records the history entries of one extrinsic and returns
// them in save order. Signed extrinsics take the failed-transfer path when
// they failed and carry at least one recognized transfer or swap, and the
// summary path otherwise. Successful unsigned EVM transactions get an EVM
// summary. Other unsigned extrinsics produce nothing.
func (h *Handler) HandleExtrinsic(ctx context.Context, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error) {
	ext := xc.Extrinsic
	switch {
	case ext.IsSigned:
		return h.handleSigned(ctx, xc)
	case ext.Success && isEvmTransaction(ext.Method):
		return h.handleEvm(ctx, xc)
	default:
		h.metrics.ObserveExtrinsic(metrics.PathSkipped)
		return nil, nil
	}
}

func (h *Handler) handleSigned(ctx context.Context, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error) {
	signer := h.signer(xc)

	var native string
	if !xc.Extrinsic.Success {
		paid, err := h.fees.Resolve(ctx, xc)
		if err != nil {
			return nil, err
		}

		units, err := h.normalizer.Normalize(&xc.Extrinsic.Method, failedCallHandler(signer, paid))
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", xc.ExtrinsicID(), err)
		}
		if len(units) > 0 {
			h.metrics.ObserveExtrinsic(metrics.PathFailedTransfer)
			return h.materializer.Materialize(ctx, units, xc)
		}
		if paid.AssetID == fee.NativeAssetID {
			native = paid.Amount
		}
	}

	if native == "" {
		var err error
		native, err = h.fees.NativeFee(ctx, xc, "")
		if err != nil {
			return nil, err
		}
	}

	entry := SummaryEntry(xc, signer, native)
	if err := h.save(ctx, entry); err != nil {
		return nil, err
	}
	h.metrics.ObserveExtrinsic(metrics.PathSummary)
	return []*model.HistoryEntry{entry}, nil
}

func (h *Handler) handleEvm(ctx context.Context, xc model.ExtrinsicContext) ([]*model.HistoryEntry, error) {
	executed, err := FindExecuted(xc)
	if err != nil {
		return nil, err
	}
	paid, err := h.fees.NativeFee(ctx, xc, executed.From)
	if err != nil {
		return nil, err
	}

	entry := EvmSummaryEntry(xc, executed, paid)
	if err := h.save(ctx, entry); err != nil {
		return nil, err
	}
	h.metrics.ObserveExtrinsic(metrics.PathEvm)
	return []*model.HistoryEntry{entry}, nil
}

func (h *Handler) save(ctx context.Context, entry *model.HistoryEntry) error {
	if err := h.store.Save(ctx, entry); err != nil {
		return fmt.Errorf("save %s: %w", entry.ID, err)
	}
	h.metrics.ObserveEntry(entry.PayloadKind())
	return nil
}

func (h *Handler) signer(xc model.ExtrinsicContext) string {
	raw := xc.Extrinsic.Signer
	if h.addresses == nil || raw == "" {
		return raw
	}
	normalized, err := h.addresses.Normalize(raw)
	if err != nil {
		h.logger.Debug("keep raw signer", zap.String("extrinsic", xc.ExtrinsicID()), zap.String("signer", raw), zap.Error(err))
		return raw
	}
	return normalized
}

// failedCallHandler builds the records of a failed extrinsic. The fee is
// charged once per extrinsic and shared by every record.
func failedCallHandler(signer string, paid fee.Fee) calls.CallHandler {
	return calls.CallHandler{
		Transfer: func(isTransferAll bool, dest, amount, assetID string) []model.NormalizedUnit {
			base := model.NativeTransfer{
				Amount: amount,
				From:   signer,
				To:     dest,
				Fee:    paid.Amount,
			}
			var transfer model.CanonicalTransfer = &base
			if assetID != "" {
				transfer = &model.AssetTransfer{NativeTransfer: base, AssetID: assetID}
			}
			return []model.NormalizedUnit{{IsTransferAll: isTransferAll, Transfer: transfer}}
		},
		Swap: func(swap calls.SwapCall) []model.NormalizedUnit {
			return []model.NormalizedUnit{{Transfer: &model.Swap{
				SenderAddress:   signer,
				ReceiverAddress: swap.Receiver,
				AssetIDIn:       swap.AssetIDIn,
				AmountIn:        swap.AmountIn,
				AssetIDOut:      swap.AssetIDOut,
				AmountOut:       swap.AmountOut,
				AssetIDFee:      paid.AssetID,
				Fee:             paid.Amount,
			}}}
		},
	}
}
