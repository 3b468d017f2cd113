package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// StateReader is the read surface shared by the live and simulated clients.
type StateReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error)
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

var (
	_ StateReader = (*LiveClient)(nil)
	_ StateReader = (*SimulatedChain)(nil)
)

// LiveClient wraps an RPC-backed ethclient.Client (HTTP or WS) and reads at
// the latest block.
type LiveClient struct {
	*ethclient.Client
}

func NewLiveClient(c *ethclient.Client) *LiveClient {
	return &LiveClient{Client: c}
}

func (c *LiveClient) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	return c.Client.StorageAt(ctx, account, slot, nil)
}

func (c *LiveClient) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return call(ctx, c.Client, to, data)
}

func call(ctx context.Context, caller ethereum.ContractCaller, to common.Address, data []byte) ([]byte, error) {
	return caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}
