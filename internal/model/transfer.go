package model

// TransferKind tags the variant of a CanonicalTransfer.
type TransferKind int

const (
	KindNative TransferKind = iota
	KindAsset
	KindSwap
)

func (k TransferKind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindAsset:
		return "asset"
	case KindSwap:
		return "swap"
	default:
		return "unknown"
	}
}

// CanonicalTransfer is the closed set of value movements recorded for a
// failed extrinsic: *NativeTransfer, *AssetTransfer or *Swap.
type CanonicalTransfer interface {
	Kind() TransferKind
	Sender() string
	Receiver() string
	canonicalTransfer()
}

// NativeTransfer moves the chain's native currency.
// EventIdx is nil when no corresponding success event exists.
type NativeTransfer struct {
	Amount   string `json:"amount"`
	From     string `json:"from"`
	To       string `json:"to"`
	Fee      string `json:"fee"`
	EventIdx *int   `json:"eventIdx"`
	Success  bool   `json:"success"`
}

func (t *NativeTransfer) Kind() TransferKind { return KindNative }
func (t *NativeTransfer) Sender() string     { return t.From }
func (t *NativeTransfer) Receiver() string   { return t.To }
func (t *NativeTransfer) canonicalTransfer() {}

// AssetTransfer moves a non-native asset.
type AssetTransfer struct {
	NativeTransfer
	AssetID string `json:"assetId"`
}

func (t *AssetTransfer) Kind() TransferKind { return KindAsset }

// Swap is an asset conversion. AmountIn/AmountOut hold the requested bounds
// for failed swaps.
type Swap struct {
	SenderAddress   string `json:"sender"`
	ReceiverAddress string `json:"receiver"`
	AssetIDIn       string `json:"assetIdIn"`
	AmountIn        string `json:"amountIn"`
	AssetIDOut      string `json:"assetIdOut"`
	AmountOut       string `json:"amountOut"`
	AssetIDFee      string `json:"assetIdFee"`
	Fee             string `json:"fee"`
	EventIdx        *int   `json:"eventIdx"`
	Success         bool   `json:"success"`
}

func (s *Swap) Kind() TransferKind { return KindSwap }
func (s *Swap) Sender() string     { return s.SenderAddress }
func (s *Swap) Receiver() string   { return s.ReceiverAddress }
func (s *Swap) canonicalTransfer() {}

// NormalizedUnit is one canonical transfer recovered from a call tree.
// For transfer-all calls the amount is a "0" placeholder.
type NormalizedUnit struct {
	IsTransferAll bool
	Transfer      CanonicalTransfer
}
