// Package chaindesc turns network records into wire-ready chain descriptors
// and dials go-ethereum clients for them.
package chaindesc

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/validate"
)

var ErrInvalidRecord = errors.New("invalid network record")

const (
	defaultCurrencyName     = "ETH"
	defaultCurrencySymbol   = "ETH"
	defaultCurrencyDecimals = 18

	standardEIP3091 = "EIP3091"
)

type Explorer struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Explorers struct {
	Default   *Explorer `json:"default,omitempty"`
	Etherscan *Explorer `json:"etherscan,omitempty"`
}

type Transports struct {
	HTTP      []string `json:"http"`
	WebSocket []string `json:"webSocket,omitempty"`
}

type Descriptor struct {
	ID             int64                    `json:"id"`
	ChainID        *big.Int                 `json:"-"`
	Name           string                   `json:"name"`
	Network        string                   `json:"network"`
	NativeCurrency chainlist.NativeCurrency `json:"nativeCurrency"`
	RPC            Transports               `json:"rpcUrls"`
	Explorers      Explorers                `json:"blockExplorers"`
	Testnet        bool                     `json:"testnet"`
}

// Validate reports why a record cannot become a descriptor.
func Validate(n chainlist.Network) error {
	if n.ChainID <= 0 {
		return errors.Wrapf(ErrInvalidRecord, "chain id %d is not positive", n.ChainID)
	}
	if strings.TrimSpace(n.Name) == "" {
		return errors.Wrapf(ErrInvalidRecord, "chain %d has no name", n.ChainID)
	}
	for _, u := range n.RPCURLs {
		if validate.HasHTTPPrefix(u) {
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidRecord, "chain %d (%s) has no http rpc url", n.ChainID, n.Name)
}

// ToChainDescriptor never panics on registry data; an unusable record yields
// false and a warning log line.
func ToChainDescriptor(n chainlist.Network, logger *zap.Logger) (Descriptor, bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := Validate(n); err != nil {
		logger.Warn("skipping network record", zap.Int64("chainId", n.ChainID), zap.Error(err))
		return Descriptor{}, false
	}

	d := Descriptor{
		ID:             n.ChainID,
		ChainID:        big.NewInt(n.ChainID),
		Name:           n.Name,
		Network:        n.ShortName,
		NativeCurrency: currency(n.NativeCurrency),
		RPC: Transports{
			HTTP:      n.HTTPRPCURLs(),
			WebSocket: n.WebSocketRPCURLs(),
		},
		Explorers: explorers(n.BlockExplorers),
		Testnet:   n.Testnet,
	}

	if err := checkIdentity(d, n.ChainID); err != nil {
		logger.Error("descriptor identity check failed", zap.Int64("chainId", n.ChainID), zap.Error(err))
		return Descriptor{}, false
	}
	return d, true
}

// ToChainDescriptors converts what it can and skips the rest.
func ToChainDescriptors(networks []chainlist.Network, logger *zap.Logger) []Descriptor {
	out := make([]Descriptor, 0, len(networks))
	for _, n := range networks {
		if d, ok := ToChainDescriptor(n, logger); ok {
			out = append(out, d)
		}
	}
	return out
}

func checkIdentity(d Descriptor, chainID int64) error {
	if d.ID != chainID {
		return errors.Wrapf(ErrInvalidRecord, "descriptor id %d != chain id %d", d.ID, chainID)
	}
	if d.ChainID == nil || !d.ChainID.IsInt64() || d.ChainID.Int64() != chainID {
		return errors.Wrapf(ErrInvalidRecord, "descriptor chain id %v != chain id %d", d.ChainID, chainID)
	}
	return nil
}

func currency(c chainlist.NativeCurrency) chainlist.NativeCurrency {
	if c.Name == "" {
		c.Name = defaultCurrencyName
	}
	if c.Symbol == "" {
		c.Symbol = defaultCurrencySymbol
	}
	if c.Decimals <= 0 {
		c.Decimals = defaultCurrencyDecimals
	}
	return c
}

func explorers(list []chainlist.Explorer) Explorers {
	var out Explorers
	if len(list) == 0 {
		return out
	}
	first := list[0]
	name := first.Name
	if name == "" {
		name = "Explorer"
	}
	out.Default = &Explorer{Name: name, URL: first.URL}
	for _, e := range list {
		if e.Standard == standardEIP3091 {
			out.Etherscan = &Explorer{Name: e.Name, URL: e.URL}
			break
		}
	}
	return out
}
