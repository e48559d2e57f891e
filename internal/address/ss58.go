package address

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const maxSS58Prefix = 16383

var ss58Salt = []byte("SS58PRE")

// ErrInvalidAddress reports an address that cannot be decoded or re-encoded.
var ErrInvalidAddress = errors.New("invalid address")

// EncodeSS58 encodes a 32 or 33 byte account id with the network prefix.
func EncodeSS58(accountID []byte, prefix uint16) (string, error) {
	if prefix > maxSS58Prefix {
		return "", fmt.Errorf("%w: ss58 prefix %d out of range", ErrInvalidAddress, prefix)
	}
	if len(accountID) != 32 && len(accountID) != 33 {
		return "", fmt.Errorf("%w: account id length %d", ErrInvalidAddress, len(accountID))
	}

	data := make([]byte, 0, 2+len(accountID)+2)
	if prefix < 64 {
		data = append(data, byte(prefix))
	} else {
		data = append(data,
			byte((prefix&0xFC)>>2)|0x40,
			byte(prefix>>8)|byte((prefix&0x03)<<6),
		)
	}
	data = append(data, accountID...)
	checksum := ss58Checksum(data)
	data = append(data, checksum[:2]...)

	return base58.Encode(data), nil
}

// DecodeSS58 returns the account id and network prefix of an SS58 address.
func DecodeSS58(addr string) ([]byte, uint16, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 3 {
		return nil, 0, fmt.Errorf("%w: too short", ErrInvalidAddress)
	}

	var (
		prefix    uint16
		prefixLen int
	)
	switch {
	case raw[0] < 64:
		prefix = uint16(raw[0])
		prefixLen = 1
	case raw[0] < 128:
		lower := (uint16(raw[0]&0x3F) << 2) | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0x3F)
		prefix = lower | upper<<8
		prefixLen = 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte %d", ErrInvalidAddress, raw[0])
	}

	body := len(raw) - prefixLen - 2
	if body != 32 && body != 33 {
		return nil, 0, fmt.Errorf("%w: account id length %d", ErrInvalidAddress, body)
	}

	payload := raw[:len(raw)-2]
	checksum := ss58Checksum(payload)
	if !bytes.Equal(checksum[:2], raw[len(raw)-2:]) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	accountID := make([]byte, body)
	copy(accountID, raw[prefixLen:len(raw)-2])
	return accountID, prefix, nil
}

func ss58Checksum(data []byte) [blake2b.Size]byte {
	input := make([]byte, 0, len(ss58Salt)+len(data))
	input = append(input, ss58Salt...)
	input = append(input, data...)
	return blake2b.Sum512(input)
}
