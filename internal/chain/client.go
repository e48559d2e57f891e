package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"

	"txhistory/internal/amount"
)

// Client wraps a go-ethereum RPC client speaking the Substrate JSON-RPC API.
type Client struct {
	rpcClient *rpc.Client

	mu         sync.RWMutex
	properties *Properties
}

// Properties is the subset of system_properties used by the recorder.
type Properties struct {
	SS58Format    *uint16         `json:"ss58Format"`
	TokenSymbol   json.RawMessage `json:"tokenSymbol"`
	TokenDecimals json.RawMessage `json:"tokenDecimals"`
}

// NewClient creates a new chain client from the RPC URL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient), nil
}

// NewClientFromRPC wraps an already dialed RPC client.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{rpcClient: rpcClient}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// ChainName returns the chain name reported by system_chain.
func (c *Client) ChainName(ctx context.Context) (string, error) {
	var name string
	if err := c.rpcClient.CallContext(ctx, &name, "system_chain"); err != nil {
		return "", fmt.Errorf("system_chain: %w", err)
	}
	return name, nil
}

// Properties returns system_properties, using an in-memory cache.
func (c *Client) Properties(ctx context.Context) (Properties, error) {
	c.mu.RLock()
	cached := c.properties
	c.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	var props Properties
	if err := c.rpcClient.CallContext(ctx, &props, "system_properties"); err != nil {
		return Properties{}, fmt.Errorf("system_properties: %w", err)
	}

	c.mu.Lock()
	c.properties = &props
	c.mu.Unlock()
	return props, nil
}

// SS58Prefix returns the chain's address prefix, or 42 when the node does
// not report one.
func (c *Client) SS58Prefix(ctx context.Context) (uint16, error) {
	props, err := c.Properties(ctx)
	if err != nil {
		return 0, err
	}
	if props.SS58Format == nil {
		return 42, nil
	}
	return *props.SS58Format, nil
}

type runtimeDispatchInfo struct {
	PartialFee json.RawMessage `json:"partialFee"`
}

// QueryPartialFee calls payment_queryInfo for an encoded extrinsic at
// blockHash. An empty blockHash queries the best block.
func (c *Client) QueryPartialFee(ctx context.Context, extrinsic string, blockHash string) (string, error) {
	params := []interface{}{extrinsic}
	if blockHash != "" {
		params = append(params, blockHash)
	}

	var info runtimeDispatchInfo
	if err := c.rpcClient.CallContext(ctx, &info, "payment_queryInfo", params...); err != nil {
		return "", fmt.Errorf("payment_queryInfo: %w", err)
	}
	fee, err := amount.Scalar(info.PartialFee)
	if err != nil {
		return "", fmt.Errorf("payment_queryInfo: partial fee: %w", err)
	}
	return fee, nil
}
