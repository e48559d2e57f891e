package calls

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txhistory/internal/model"
	"txhistory/internal/multilocation"
)

const (
	usdtLocation = `{"parents":0,"interior":{"x2":[{"palletInstance":50},{"generalIndex":1984}]}}`
	nativeLoc    = `{"parents":0,"interior":{"here":null}}`
	badLocation  = `{"parents":0}`
)

func recordingHandler(signer, fee string) CallHandler {
	return CallHandler{
		Transfer: func(isTransferAll bool, dest, amount, assetID string) []model.NormalizedUnit {
			base := model.NativeTransfer{From: signer, To: dest, Amount: amount, Fee: fee}
			var transfer model.CanonicalTransfer = &base
			if assetID != "" {
				transfer = &model.AssetTransfer{NativeTransfer: base, AssetID: assetID}
			}
			return []model.NormalizedUnit{{IsTransferAll: isTransferAll, Transfer: transfer}}
		},
		Swap: func(swap SwapCall) []model.NormalizedUnit {
			return []model.NormalizedUnit{{Transfer: &model.Swap{
				SenderAddress:   signer,
				ReceiverAddress: swap.Receiver,
				AssetIDIn:       swap.AssetIDIn,
				AmountIn:        swap.AmountIn,
				AssetIDOut:      swap.AssetIDOut,
				AmountOut:       swap.AmountOut,
				AssetIDFee:      "native",
				Fee:             fee,
			}}}
		},
	}
}

func newTestNormalizer(t *testing.T, cfg NormalizerConfig) *Normalizer {
	t.Helper()
	if cfg.Resolver == nil {
		cfg.Resolver = multilocation.NewResolver(nil)
	}
	n, err := NewNormalizer(cfg)
	require.NoError(t, err)
	return n
}

func TestNormalizeLeafShapes(t *testing.T) {
	tests := []struct {
		call string
		kind model.TransferKind
	}{
		{`{"module":"balances","function":"transfer","args":["B",1]}`, model.KindNative},
		{`{"module":"balances","function":"transferAll","args":["B",true]}`, model.KindNative},
		{`{"module":"assets","function":"transferKeepAlive","args":[1984,"B",1]}`, model.KindAsset},
		{`{"module":"currencies","function":"transfer","args":["B","0x01",1]}`, model.KindAsset},
		{`{"module":"tokens","function":"transferAll","args":["B","0x01",false]}`, model.KindAsset},
		{`{"module":"eqBalances","function":"transfer","args":[1,"B",1]}`, model.KindAsset},
		{`{"module":"assetConversion","function":"swapExactTokensForTokens","args":[[` + nativeLoc + `,` + usdtLocation + `],1,1,"B",false]}`, model.KindSwap},
		{`{"module":"assetConversion","function":"swapTokensForExactTokens","args":[[` + nativeLoc + `,` + usdtLocation + `],1,1,"B",false]}`, model.KindSwap},
	}

	n := newTestNormalizer(t, NormalizerConfig{})
	for _, tt := range tests {
		units, err := n.Normalize(mustCall(t, tt.call), recordingHandler("A", "7"))
		require.NoError(t, err, tt.call)
		require.Len(t, units, 1, tt.call)
		assert.Equal(t, tt.kind, units[0].Transfer.Kind(), tt.call)
	}
}

func TestNormalizeBatchPreservesOrder(t *testing.T) {
	batch := `{"module":"utility","function":"batchAll","args":[[
		{"module":"balances","function":"transfer","args":["B1",1]},
		{"module":"system","function":"remark","args":["0x00"]},
		{"module":"assets","function":"transfer","args":[7,"B2",2]},
		{"module":"staking","function":"chill","args":[]},
		{"module":"balances","function":"transferKeepAlive","args":["B3",3]}
	]]}`

	n := newTestNormalizer(t, NormalizerConfig{})
	units, err := n.Normalize(mustCall(t, batch), recordingHandler("A", "0"))
	require.NoError(t, err)
	require.Len(t, units, 3)

	receivers := make([]string, 0, len(units))
	for _, unit := range units {
		receivers = append(receivers, unit.Transfer.Receiver())
	}
	assert.Equal(t, []string{"B1", "B2", "B3"}, receivers)
}

func wrapInProxies(leaf string, depth int) string {
	call := leaf
	for i := 0; i < depth; i++ {
		call = fmt.Sprintf(`{"module":"proxy","function":"proxy","args":["R%d",null,%s]}`, i, call)
	}
	return call
}

func TestNormalizeProxyIsTransparent(t *testing.T) {
	leaf := `{"module":"balances","function":"transfer","args":["B",100]}`
	n := newTestNormalizer(t, NormalizerConfig{})
	handler := recordingHandler("A", "1")

	direct, err := n.Normalize(mustCall(t, leaf), handler)
	require.NoError(t, err)

	for depth := 1; depth <= 5; depth++ {
		units, err := n.Normalize(mustCall(t, wrapInProxies(leaf, depth)), handler)
		require.NoError(t, err)
		assert.Equal(t, direct, units, "depth %d", depth)
	}
}

func TestNormalizeBatchInsideProxy(t *testing.T) {
	call := wrapInProxies(`{"module":"utility","function":"batch","args":[[{"module":"balances","function":"transfer","args":["B",100]}]]}`, 1)

	n := newTestNormalizer(t, NormalizerConfig{})
	units, err := n.Normalize(mustCall(t, call), recordingHandler("A", "5"))
	require.NoError(t, err)
	require.Len(t, units, 1)

	transfer, ok := units[0].Transfer.(*model.NativeTransfer)
	require.True(t, ok)
	assert.Equal(t, model.NativeTransfer{From: "A", To: "B", Amount: "100", Fee: "5"}, *transfer)
	assert.False(t, units[0].IsTransferAll)
}

func TestNormalizeSwapResolvesEndpoints(t *testing.T) {
	call := `{"module":"assetConversion","function":"swapTokensForExactTokens","args":[[` +
		usdtLocation + `,` + nativeLoc + `,` + `{"parents":1,"interior":{"x1":{"parachain":1000}}}` +
		`],"250","300","C",true]}`

	n := newTestNormalizer(t, NormalizerConfig{})
	units, err := n.Normalize(mustCall(t, call), recordingHandler("A", "9"))
	require.NoError(t, err)
	require.Len(t, units, 1)

	swap := units[0].Transfer.(*model.Swap)
	assert.Equal(t, "1984", swap.AssetIDIn)
	assert.Equal(t, "0x010100a10f", swap.AssetIDOut)
	assert.Equal(t, "300", swap.AmountIn)
	assert.Equal(t, "250", swap.AmountOut)
	assert.Equal(t, "C", swap.ReceiverAddress)
}

func TestNormalizeDropsUnresolvedSwap(t *testing.T) {
	call := `{"module":"assetConversion","function":"swapExactTokensForTokens","args":[[` +
		nativeLoc + `,` + badLocation + `],"1","1","C",true]}`

	dropped := 0
	n := newTestNormalizer(t, NormalizerConfig{
		OnSwapDropped: func(call *model.Call, err error) {
			dropped++
			assert.ErrorIs(t, err, multilocation.ErrUnresolvedLocation)
		},
	})

	units, err := n.Normalize(mustCall(t, call), recordingHandler("A", "1"))
	require.NoError(t, err)
	assert.Empty(t, units)
	assert.Equal(t, 1, dropped)
}

func TestNormalizeMalformedInsideBatchAborts(t *testing.T) {
	call := `{"module":"utility","function":"batch","args":[[
		{"module":"balances","function":"transfer","args":["B",1]},
		{"module":"balances","function":"transfer","args":["B"]}
	]]}`

	n := newTestNormalizer(t, NormalizerConfig{})
	units, err := n.Normalize(mustCall(t, call), recordingHandler("A", "1"))
	assert.ErrorIs(t, err, ErrMalformedCallArguments)
	assert.Nil(t, units)
}

func TestNormalizeDepthCap(t *testing.T) {
	leaf := `{"module":"balances","function":"transfer","args":["B",1]}`
	n := newTestNormalizer(t, NormalizerConfig{MaxDepth: 3})

	units, err := n.Normalize(mustCall(t, wrapInProxies(leaf, 3)), recordingHandler("A", "1"))
	require.NoError(t, err)
	assert.Len(t, units, 1)

	_, err = n.Normalize(mustCall(t, wrapInProxies(leaf, 4)), recordingHandler("A", "1"))
	assert.ErrorIs(t, err, ErrCallTreeTooDeep)
}

func TestNormalizeUnknownCall(t *testing.T) {
	n := newTestNormalizer(t, NormalizerConfig{})
	units, err := n.Normalize(mustCall(t, `{"module":"democracy","function":"vote","args":[1,{"aye":true}]}`), recordingHandler("A", "1"))
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestNewNormalizerRequiresResolver(t *testing.T) {
	_, err := NewNormalizer(NormalizerConfig{})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "resolver"))
}

var _ LocationResolver = (*multilocation.Resolver)(nil)

func TestSwapCallKeepsPath(t *testing.T) {
	var captured SwapCall
	handler := recordingHandler("A", "1")
	inner := handler.Swap
	handler.Swap = func(swap SwapCall) []model.NormalizedUnit {
		captured = swap
		return inner(swap)
	}

	call := `{"module":"assetConversion","function":"swapExactTokensForTokens","args":[[` + nativeLoc + `,` + usdtLocation + `],"1","1","C"]}`
	n := newTestNormalizer(t, NormalizerConfig{})
	_, err := n.Normalize(mustCall(t, call), handler)
	require.NoError(t, err)
	require.Len(t, captured.Path, 2)
	assert.JSONEq(t, usdtLocation, string(captured.Path[1]))
	assert.Equal(t, json.RawMessage(nativeLoc), captured.Path[0])
}
