// Package evm adapts go-ethereum clients, live or simulated, to the narrow
// read surface the proxy detector needs.
package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// SimulatedChainID is the chain id the simulated backend always reports.
const SimulatedChainID = 1337

const defaultBlockGasLimit = 100_000_000

// SimulatedChain is a deterministic in-memory chain for tests and CI. Contract
// state is preset through the genesis allocation rather than deployed.
type SimulatedChain struct {
	backend *simulated.Backend
	client  simulated.Client
	chainID *big.Int
}

type SimOptions struct {
	BlockGasLimit uint64
}

func NewSimulatedChain(alloc types.GenesisAlloc, opts SimOptions) *SimulatedChain {
	if opts.BlockGasLimit == 0 {
		opts.BlockGasLimit = defaultBlockGasLimit
	}
	b := simulated.NewBackend(alloc, simulated.WithBlockGasLimit(opts.BlockGasLimit))
	return &SimulatedChain{
		backend: b,
		client:  b.Client(),
		chainID: big.NewInt(SimulatedChainID),
	}
}

func (c *SimulatedChain) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}

// Commit seals a block and advances the chain.
func (c *SimulatedChain) Commit() common.Hash {
	return c.backend.Commit()
}

func (c *SimulatedChain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *SimulatedChain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

func (c *SimulatedChain) StorageAt(ctx context.Context, account common.Address, slot common.Hash) ([]byte, error) {
	return c.client.StorageAt(ctx, account, slot, nil)
}

func (c *SimulatedChain) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return call(ctx, c.client, to, data)
}
