package multilocation

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// XCM v3 junction discriminants.
const (
	junctionParachain      = 0
	junctionAccountID32    = 1
	junctionAccountIndex64 = 2
	junctionAccountKey20   = 3
	junctionPalletInstance = 4
	junctionGeneralIndex   = 5
	junctionGeneralKey     = 6
	junctionOnlyChild      = 7
)

var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// encodeHex returns the 0x-hex SCALE encoding of loc.
func encodeHex(loc location) (string, error) {
	out, err := encodeLocation(loc)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(out), nil
}

func encodeLocation(loc location) ([]byte, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.PushByte(loc.parents); err != nil {
		return nil, err
	}
	if isHere(loc.interior) {
		if err := enc.PushByte(0); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	list, err := junctions(loc.interior)
	if err != nil {
		return nil, err
	}
	// Junctions is an enum whose discriminant X1..X8 equals the junction count.
	if err := enc.PushByte(byte(len(list))); err != nil {
		return nil, err
	}
	for i, j := range list {
		if err := encodeJunction(enc, j); err != nil {
			return nil, fmt.Errorf("junction %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

func encodeJunction(enc *scale.Encoder, j interface{}) error {
	name, value, err := junctionVariant(j)
	if err != nil {
		return err
	}

	switch name {
	case "parachain":
		n, err := parseUint(value)
		if err != nil {
			return err
		}
		if n.BitLen() > 32 {
			return fmt.Errorf("parachain id out of range: %s", n)
		}
		return pushAll(enc, []byte{junctionParachain}, compact(n))

	case "accountid32":
		fields, err := networkFields(value)
		if err != nil {
			return err
		}
		id, err := parseBytes(fields["id"], 32)
		if err != nil {
			return err
		}
		return pushAll(enc, []byte{junctionAccountID32, 0}, fixed(id))

	case "accountindex64":
		fields, err := networkFields(value)
		if err != nil {
			return err
		}
		n, err := parseUint(fields["index"])
		if err != nil {
			return err
		}
		if n.BitLen() > 64 {
			return fmt.Errorf("account index out of range: %s", n)
		}
		return pushAll(enc, []byte{junctionAccountIndex64, 0}, compact(n))

	case "accountkey20":
		fields, err := networkFields(value)
		if err != nil {
			return err
		}
		key, err := parseBytes(fields["key"], 20)
		if err != nil {
			return err
		}
		return pushAll(enc, []byte{junctionAccountKey20, 0}, fixed(key))

	case "palletinstance":
		n, err := parseUint(value)
		if err != nil {
			return err
		}
		if n.BitLen() > 8 {
			return fmt.Errorf("pallet instance out of range: %s", n)
		}
		return pushAll(enc, []byte{junctionPalletInstance, byte(n.Uint64())})

	case "generalindex":
		n, err := parseUint(value)
		if err != nil {
			return err
		}
		if n.Cmp(maxU128) > 0 {
			return fmt.Errorf("general index out of range: %s", n)
		}
		return pushAll(enc, []byte{junctionGeneralIndex}, compact(n))

	case "generalkey":
		fields, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("general key is not an object")
		}
		length, err := parseUint(fields["length"])
		if err != nil {
			return err
		}
		if length.BitLen() > 8 || length.Uint64() > 32 {
			return fmt.Errorf("general key length out of range: %s", length)
		}
		data, err := parseBytes(fields["data"], 32)
		if err != nil {
			return err
		}
		return pushAll(enc, []byte{junctionGeneralKey, byte(length.Uint64())}, fixed(data))

	case "onlychild":
		return pushAll(enc, []byte{junctionOnlyChild})

	default:
		return fmt.Errorf("unsupported junction %q", name)
	}
}

// pushAll writes the junction prefix bytes followed by each body part.
func pushAll(enc *scale.Encoder, prefix []byte, parts ...func(*scale.Encoder) error) error {
	for _, b := range prefix {
		if err := enc.PushByte(b); err != nil {
			return err
		}
	}
	for _, part := range parts {
		if err := part(enc); err != nil {
			return err
		}
	}
	return nil
}

func compact(n *big.Int) func(*scale.Encoder) error {
	return func(enc *scale.Encoder) error {
		return enc.EncodeUintCompact(*n)
	}
}

func fixed(b []byte) func(*scale.Encoder) error {
	return func(enc *scale.Encoder) error {
		return enc.Write(b)
	}
}

// networkFields returns the junction fields, rejecting a non-null network.
func networkFields(value interface{}) (map[string]interface{}, error) {
	fields, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("junction body is not an object")
	}
	if network, ok := fields["network"]; ok && network != nil {
		return nil, fmt.Errorf("network %v is not supported", network)
	}
	return fields, nil
}
