package address

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Encoder renders account ids in the chain's address format.
type Encoder struct {
	Prefix uint16
}

// NewEncoder returns an encoder for the given SS58 network prefix.
func NewEncoder(prefix uint16) Encoder {
	return Encoder{Prefix: prefix}
}

// Normalize accepts an SS58 address, a 0x-hex 32 byte account id or a 0x-hex
// 20 byte account and returns it in canonical form: SS58 with the encoder's
// prefix, or EIP-55 for 20 byte accounts.
func (e Encoder) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		decoded, err := hexutil.Decode("0x" + raw[2:])
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		switch len(decoded) {
		case common.AddressLength:
			return common.BytesToAddress(decoded).Hex(), nil
		default:
			return EncodeSS58(decoded, e.Prefix)
		}
	}

	accountID, _, err := DecodeSS58(raw)
	if err != nil {
		return "", err
	}
	return EncodeSS58(accountID, e.Prefix)
}

// Ethereum returns the EIP-55 checksummed form of a 20 byte hex address.
func Ethereum(raw string) (string, error) {
	if !common.IsHexAddress(raw) {
		return "", fmt.Errorf("%w: not a 20 byte hex address: %q", ErrInvalidAddress, raw)
	}
	return common.HexToAddress(raw).Hex(), nil
}
