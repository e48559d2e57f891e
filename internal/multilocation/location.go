package multilocation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// location is a multilocation with lower-cased keys.
type location struct {
	parents  uint8
	interior interface{}
	hasInner bool
}

func decodeLocation(raw json.RawMessage) (location, error) {
	value, err := decodeCanonical(raw)
	if err != nil {
		return location{}, err
	}
	obj, ok := value.(map[string]interface{})
	if !ok {
		return location{}, fmt.Errorf("location is not an object")
	}

	loc := location{}
	if p, ok := obj["parents"]; ok && p != nil {
		n, err := parseUint(p)
		if err != nil {
			return location{}, fmt.Errorf("parse parents: %w", err)
		}
		if !n.IsUint64() || n.Uint64() > 255 {
			return location{}, fmt.Errorf("parents out of range: %s", n)
		}
		loc.parents = uint8(n.Uint64())
	}
	loc.interior, loc.hasInner = obj["interior"]
	if loc.interior == nil {
		loc.hasInner = false
	}
	return loc, nil
}

// HasInterior reports whether raw is an object carrying an interior key.
func HasInterior(raw json.RawMessage) bool {
	loc, err := decodeLocation(raw)
	return err == nil && loc.hasInner
}

// CanonicalKey renders raw as JSON with lower-cased object keys in sorted order.
func CanonicalKey(raw json.RawMessage) (string, error) {
	value, err := decodeCanonical(raw)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal location: %w", err)
	}
	return string(out), nil
}

func decodeCanonical(raw json.RawMessage) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	return lowerKeys(value), nil
}

func lowerKeys(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(typed))
		for k, v := range typed {
			out[strings.ToLower(k)] = lowerKeys(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, v := range typed {
			out[i] = lowerKeys(v)
		}
		return out
	default:
		return typed
	}
}

// isHere matches "Here", {"here": null} and their lower-case forms.
func isHere(interior interface{}) bool {
	switch typed := interior.(type) {
	case string:
		return strings.EqualFold(typed, "here")
	case map[string]interface{}:
		_, ok := typed["here"]
		return ok && len(typed) == 1
	default:
		return false
	}
}

// junctions returns the junction list of an Xn interior.
func junctions(interior interface{}) ([]interface{}, error) {
	obj, ok := interior.(map[string]interface{})
	if !ok || len(obj) != 1 {
		return nil, fmt.Errorf("interior is not a single-variant object")
	}
	for key, value := range obj {
		if len(key) != 2 || key[0] != 'x' || key[1] < '1' || key[1] > '8' {
			return nil, fmt.Errorf("unknown interior variant %q", key)
		}
		want := int(key[1] - '0')
		list, isList := value.([]interface{})
		if !isList {
			if want != 1 {
				return nil, fmt.Errorf("interior %s is not a list", key)
			}
			list = []interface{}{value}
		}
		if len(list) != want {
			return nil, fmt.Errorf("interior %s has %d junctions", key, len(list))
		}
		return list, nil
	}
	return nil, fmt.Errorf("empty interior")
}

// junctionVariant splits {"name": value} or a bare "name".
func junctionVariant(j interface{}) (string, interface{}, error) {
	switch typed := j.(type) {
	case string:
		return strings.ToLower(typed), nil, nil
	case map[string]interface{}:
		if len(typed) != 1 {
			return "", nil, fmt.Errorf("junction has %d variants", len(typed))
		}
		for k, v := range typed {
			return k, v, nil
		}
	}
	return "", nil, fmt.Errorf("junction is not an object")
}

func parseUint(value interface{}) (*big.Int, error) {
	var text string
	switch typed := value.(type) {
	case json.Number:
		text = typed.String()
	case string:
		text = strings.ReplaceAll(strings.TrimSpace(typed), ",", "")
	default:
		return nil, fmt.Errorf("unexpected numeric value %v", value)
	}

	if strings.HasPrefix(text, "0x") {
		n, ok := new(big.Int).SetString(text[2:], 16)
		if !ok {
			return nil, fmt.Errorf("parse hex %q", text)
		}
		return n, nil
	}

	n, ok := new(big.Int).SetString(text, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("parse integer %q", text)
	}
	return n, nil
}

func parseBytes(value interface{}, size int) ([]byte, error) {
	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected hex string, got %v", value)
	}
	decoded, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("parse hex %q: %w", text, err)
	}
	if size > 0 && len(decoded) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(decoded))
	}
	return decoded, nil
}
