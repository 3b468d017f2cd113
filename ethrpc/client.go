// Package ethrpc is a small JSON-RPC client bound to one endpoint URL, used
// for health probes and read-only contract inspection.
package ethrpc

import (
	"context"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const defaultHTTPTimeout = 15 * time.Second

type Client struct {
	url    string
	http   *http.Client
	nextID atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func NewClient(url string, opts ...Option) *Client {
	c := &Client{url: url, http: &http.Client{Timeout: defaultHTTPTimeout}}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

func (c *Client) ChainIDHex(ctx context.Context) (string, error) {
	var out string
	if err := c.Call(ctx, "eth_chainId", nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	hexID, err := c.ChainIDHex(ctx)
	if err != nil {
		return nil, err
	}
	return HexQuantity(hexID).Big()
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var out string
	if err := c.Call(ctx, "eth_blockNumber", nil, &out); err != nil {
		return 0, err
	}
	return HexQuantity(out).Uint64()
}

// StorageAt reads one 32-byte slot at the latest block.
func (c *Client) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.Call(ctx, "eth_getStorageAt", []any{account, slot, string(BlockLatest)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type callArgs struct {
	To   common.Address `json:"to"`
	Data hexutil.Bytes  `json:"data"`
}

// CallContract runs a read-only eth_call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.Call(ctx, "eth_call", []any{callArgs{To: to, Data: data}, string(BlockLatest)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dialer hands out clients that share one HTTP transport.
type Dialer struct {
	http *http.Client
}

func NewDialer(timeout time.Duration) *Dialer {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Dialer{http: &http.Client{Timeout: timeout}}
}

func (d *Dialer) Dial(url string) *Client {
	return NewClient(url, WithHTTPClient(d.http))
}
