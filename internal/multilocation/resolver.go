// Package multilocation turns XCM multilocation descriptors into the flat
// asset identifiers recorded in account history.
package multilocation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NativeAssetID identifies the chain's native currency.
const NativeAssetID = "native"

// ErrUnresolvedLocation reports a multilocation that maps to no asset id.
var ErrUnresolvedLocation = errors.New("unresolved multilocation")

// Resolver maps multilocations to asset ids. A nil *Resolver applies only
// the built-in rules.
type Resolver struct {
	table Table
}

// NewResolver builds a resolver consulting table before the built-in rules.
func NewResolver(table Table) *Resolver {
	return &Resolver{table: table}
}

// Resolve returns the asset id for location. When isSwapEndpoint is set every
// failure is reported as the bare ErrUnresolvedLocation.
func (r *Resolver) Resolve(location json.RawMessage, isSwapEndpoint bool) (string, error) {
	id, err := r.resolve(location)
	if err != nil {
		if isSwapEndpoint {
			return "", ErrUnresolvedLocation
		}
		return "", err
	}
	return id, nil
}

func (r *Resolver) resolve(raw json.RawMessage) (string, error) {
	if r != nil && len(r.table) > 0 {
		if key, err := CanonicalKey(raw); err == nil {
			if id, ok := r.table[key]; ok {
				return id, nil
			}
		}
	}

	loc, err := decodeLocation(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvedLocation, err)
	}
	if !loc.hasInner {
		return "", fmt.Errorf("%w: missing interior", ErrUnresolvedLocation)
	}

	if isHere(loc.interior) {
		return NativeAssetID, nil
	}

	if loc.parents != 0 {
		encoded, err := encodeHex(loc)
		if err != nil {
			return "", fmt.Errorf("%w: encode: %v", ErrUnresolvedLocation, err)
		}
		return encoded, nil
	}

	list, err := junctions(loc.interior)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvedLocation, err)
	}
	if len(list) != 2 {
		return "", fmt.Errorf("%w: expected 2 junctions, got %d", ErrUnresolvedLocation, len(list))
	}
	name, value, err := junctionVariant(list[1])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnresolvedLocation, err)
	}
	if name != "generalindex" {
		return "", fmt.Errorf("%w: second junction is %s", ErrUnresolvedLocation, name)
	}
	index, err := parseUint(value)
	if err != nil {
		return "", fmt.Errorf("%w: general index: %v", ErrUnresolvedLocation, err)
	}
	return index.String(), nil
}
