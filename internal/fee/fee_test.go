package fee

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txhistory/internal/model"
	"txhistory/internal/multilocation"
)

func idx(i int) *int { return &i }

func event(section, method string, extrinsicIdx int, data ...string) model.Event {
	raw := make([]json.RawMessage, len(data))
	for i, d := range data {
		raw[i] = json.RawMessage(d)
	}
	return model.Event{Section: section, Method: method, Data: raw, ExtrinsicIdx: idx(extrinsicIdx)}
}

type staticCalculator struct {
	value string
	err   error
	calls int
}

func (s *staticCalculator) Fee(context.Context, model.ExtrinsicContext, string) (string, error) {
	s.calls++
	return s.value, s.err
}

const usdtFeeLocation = `{"parents":0,"interior":{"x2":[{"palletInstance":50},{"generalIndex":1984}]}}`

func TestResolveAssetFeeOverrideIsPerExtrinsic(t *testing.T) {
	block := &model.Block{
		Number:     100,
		Extrinsics: []model.Extrinsic{{Idx: 0, IsSigned: true, Signer: "A"}, {Idx: 1, IsSigned: true, Signer: "B"}},
		Events: []model.Event{
			event("assetTxPayment", "AssetTxFeePaid", 1, `"B"`, `"1500"`, `"0"`, usdtFeeLocation),
		},
	}

	native := &staticCalculator{value: "42"}
	resolver := NewResolver(native, multilocation.NewResolver(nil), nil)

	got, err := resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[1]))
	require.NoError(t, err)
	assert.Equal(t, Fee{Amount: "1500", AssetID: "1984"}, got)
	assert.Equal(t, 0, native.calls)

	got, err = resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[0]))
	require.NoError(t, err)
	assert.Equal(t, Fee{Amount: "42", AssetID: NativeAssetID}, got)
}

func TestResolveUnresolvedFeeAssetFallsBack(t *testing.T) {
	block := &model.Block{
		Number:     7,
		Extrinsics: []model.Extrinsic{{Idx: 0, IsSigned: true, Signer: "A"}},
		Events: []model.Event{
			event("assetTxPayment", "AssetTxFeePaid", 0, `"A"`, `"1500"`, `"0"`, `1984`),
		},
	}

	resolver := NewResolver(&staticCalculator{value: "9"}, multilocation.NewResolver(nil), nil)
	got, err := resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[0]))
	require.NoError(t, err)
	assert.Equal(t, Fee{Amount: "9", AssetID: NativeAssetID}, got)
}

type anyLocation struct {
	calls int
}

func (a *anyLocation) Resolve(json.RawMessage, bool) (string, error) {
	a.calls++
	return "7", nil
}

func TestResolveRequiresLocationInterior(t *testing.T) {
	block := &model.Block{
		Number:     8,
		Extrinsics: []model.Extrinsic{{Idx: 0, IsSigned: true, Signer: "A"}},
		Events: []model.Event{
			event("assetTxPayment", "AssetTxFeePaid", 0, `"A"`, `"1500"`, `"0"`, `{"parents":1}`),
		},
	}

	locations := &anyLocation{}
	resolver := NewResolver(&staticCalculator{value: "9"}, locations, nil)
	got, err := resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[0]))
	require.NoError(t, err)
	assert.Equal(t, Fee{Amount: "9", AssetID: NativeAssetID}, got)
	assert.Equal(t, 0, locations.calls)

	block.Events[0] = event("assetTxPayment", "AssetTxFeePaid", 0, `"A"`, `"1500"`, `"0"`, usdtFeeLocation)
	got, err = resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[0]))
	require.NoError(t, err)
	assert.Equal(t, Fee{Amount: "1500", AssetID: "7"}, got)
	assert.Equal(t, 1, locations.calls)
}

func TestResolvePropagatesCalculatorError(t *testing.T) {
	block := &model.Block{Number: 1, Extrinsics: []model.Extrinsic{{Idx: 0}}}
	resolver := NewResolver(&staticCalculator{err: errors.New("boom")}, nil, nil)

	_, err := resolver.Resolve(context.Background(), model.NewExtrinsicContext(block, &block.Extrinsics[0]))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1-0")
}

func TestEventCalculatorPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		method model.Call
		events []model.Event
		payer  string
		want   string
	}{
		{
			name: "transaction fee paid includes tip",
			events: []model.Event{
				event("balances", "Withdraw", 0, `"A"`, `"999"`),
				event("transactionPayment", "TransactionFeePaid", 0, `"A"`, `"100"`, `"5"`),
			},
			want: "105",
		},
		{
			name: "withdraw by signer",
			events: []model.Event{
				event("balances", "Withdraw", 0, `"X"`, `"1"`),
				event("balances", "Withdraw", 0, `"A"`, `"70"`),
				event("treasury", "Deposit", 0, `"56"`),
			},
			want: "70",
		},
		{
			name:   "evm withdraw less refund",
			method: model.Call{Module: "ethereum", Function: "transact"},
			events: []model.Event{
				event("balances", "Withdraw", 0, `"0xabc"`, `"1000"`),
				event("balances", "Deposit", 0, `"0xabc"`, `"300"`),
			},
			payer: "0xabc",
			want:  "700",
		},
		{
			name: "deposits sum",
			events: []model.Event{
				event("balances", "Deposit", 0, `"V"`, `"20"`),
				event("treasury", "Deposit", 0, `"80"`),
			},
			want: "100",
		},
		{
			name: "nothing matches",
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := &model.Block{
				Number:     3,
				Extrinsics: []model.Extrinsic{{Idx: 0, IsSigned: true, Signer: "A", Method: tt.method}},
				Events:     tt.events,
			}
			xc := model.NewExtrinsicContext(block, &block.Extrinsics[0])

			got, err := EventCalculator{}.Fee(context.Background(), xc, tt.payer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeQuerier struct {
	fee     string
	err     error
	gotRaw  string
	gotHash string
}

func (f *fakeQuerier) QueryPartialFee(_ context.Context, raw, blockHash string) (string, error) {
	f.gotRaw, f.gotHash = raw, blockHash
	return f.fee, f.err
}

func TestChainCalculatorFallsBackToRPC(t *testing.T) {
	block := &model.Block{Number: 5, Hash: "0xblock", Extrinsics: []model.Extrinsic{{Idx: 0, Signer: "A", Raw: "0xdead"}}}
	xc := model.NewExtrinsicContext(block, &block.Extrinsics[0])

	querier := &fakeQuerier{fee: "0x10"}
	calc := ChainCalculator{EventCalculator{}, RPCCalculator{Client: querier}}

	got, err := calc.Fee(context.Background(), xc, "")
	require.NoError(t, err)
	assert.Equal(t, "16", got)
	assert.Equal(t, "0xdead", querier.gotRaw)
	assert.Equal(t, "0xblock", querier.gotHash)
}

func TestChainCalculatorReportsErrorsWithoutFee(t *testing.T) {
	block := &model.Block{Number: 5, Extrinsics: []model.Extrinsic{{Idx: 0, Raw: "0xdead"}}}
	xc := model.NewExtrinsicContext(block, &block.Extrinsics[0])

	calc := ChainCalculator{EventCalculator{}, RPCCalculator{Client: &fakeQuerier{err: errors.New("rpc down")}}}
	_, err := calc.Fee(context.Background(), xc, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFeeUnavailable)
	assert.Contains(t, err.Error(), "rpc down")

	noRaw := model.NewExtrinsicContext(block, &model.Extrinsic{Idx: 0})
	got, err := calc.Fee(context.Background(), noRaw, "")
	require.NoError(t, err)
	assert.Equal(t, "0", got)
}
