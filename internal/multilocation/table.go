package multilocation

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Table maps canonical location keys (see CanonicalKey) to asset ids.
type Table map[string]string

type tableFile struct {
	Assets []struct {
		ID       string      `yaml:"id"`
		Location interface{} `yaml:"location"`
	} `yaml:"assets"`
}

// LoadTable reads a YAML asset table:
//
//	assets:
//	  - id: "1984"
//	    location: {parents: 0, interior: {x2: [{palletInstance: 50}, {generalIndex: 1984}]}}
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read asset table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses the YAML asset table format accepted by LoadTable.
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse asset table: %w", err)
	}

	table := make(Table, len(file.Assets))
	for i, asset := range file.Assets {
		if asset.ID == "" {
			return nil, fmt.Errorf("asset table entry %d: id is required", i)
		}
		if asset.Location == nil {
			return nil, fmt.Errorf("asset table entry %d: location is required", i)
		}
		raw, err := json.Marshal(asset.Location)
		if err != nil {
			return nil, fmt.Errorf("asset table entry %d: %w", i, err)
		}
		key, err := CanonicalKey(raw)
		if err != nil {
			return nil, fmt.Errorf("asset table entry %d: %w", i, err)
		}
		table[key] = asset.ID
	}
	return table, nil
}
