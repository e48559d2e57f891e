package model

import (
	"encoding/json"
)

// Call is a decoded runtime call. Nested calls (batch, proxy) are carried
// inside Args and decoded on demand.
type Call struct {
	Module   string            `json:"module"`
	Function string            `json:"function"`
	Args     []json.RawMessage `json:"args"`
}

// UnmarshalJSON accepts both module/function and the polkadot.js
// section/method naming.
func (c *Call) UnmarshalJSON(data []byte) error {
	var raw struct {
		Module   string            `json:"module"`
		Function string            `json:"function"`
		Section  string            `json:"section"`
		Method   string            `json:"method"`
		Args     []json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Module = raw.Module
	if c.Module == "" {
		c.Module = raw.Section
	}
	c.Function = raw.Function
	if c.Function == "" {
		c.Function = raw.Method
	}
	c.Args = raw.Args
	return nil
}

// Name returns "module.function".
func (c *Call) Name() string {
	if c == nil {
		return ""
	}
	return c.Module + "." + c.Function
}
