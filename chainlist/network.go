// Package chainlist models network records and loads them from a remote
// registry (chainlist.org compatible) or from the bundled default dataset.
package chainlist

import (
	"slices"
	"strconv"
	"strings"

	"github.com/quantumauth-io/quantum-chain-config/validate"
)

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

type Explorer struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Standard string `json:"standard,omitempty"`
	Icon     string `json:"icon,omitempty"`
}

// Network is one chain record. Values are replaced wholesale, never patched;
// use Clone before handing a record to code that may keep it.
type Network struct {
	ChainID        int64          `json:"chainId"`
	Name           string         `json:"name"`
	ShortName      string         `json:"shortName"`
	Chain          string         `json:"chain"`
	NativeCurrency NativeCurrency `json:"nativeCurrency"`
	RPCURLs        []string       `json:"rpcUrls"`
	BlockExplorers []Explorer     `json:"blockExplorers,omitempty"`
	Faucets        []string       `json:"faucets"`
	InfoURL        string         `json:"infoURL"`
	Icon           string         `json:"icon,omitempty"`
	Testnet        bool           `json:"testnet"`
	Status         string         `json:"status,omitempty"`
	RedFlags       []string       `json:"redFlags,omitempty"`
}

// RPCEndpoint is a selectable endpoint for a network, either derived from its
// RPCURLs (IsDefault) or added by the user (IsCustom).
type RPCEndpoint struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	IsDefault bool   `json:"isDefault"`
	IsCustom  bool   `json:"isCustom"`
}

func (n Network) Clone() Network {
	n.RPCURLs = slices.Clone(n.RPCURLs)
	n.BlockExplorers = slices.Clone(n.BlockExplorers)
	n.Faucets = slices.Clone(n.Faucets)
	n.RedFlags = slices.Clone(n.RedFlags)
	return n
}

// Key identifies a network by chain id and short name.
func (n Network) Key() string {
	return strconv.FormatInt(n.ChainID, 10) + "-" + n.ShortName
}

func (n Network) SameNetwork(other Network) bool {
	return n.ChainID == other.ChainID && n.ShortName == other.ShortName
}

// DisplayName appends " (Testnet)" for testnets.
func (n Network) DisplayName() string {
	if n.Testnet {
		return n.Name + " (Testnet)"
	}
	return n.Name
}

// HTTPRPCURLs returns the entries of RPCURLs that start with "http", in order.
func (n Network) HTTPRPCURLs() []string {
	out := make([]string, 0, len(n.RPCURLs))
	for _, u := range n.RPCURLs {
		if validate.HasHTTPPrefix(u) {
			out = append(out, u)
		}
	}
	return out
}

func (n Network) WebSocketRPCURLs() []string {
	var out []string
	for _, u := range n.RPCURLs {
		if validate.IsWebSocket(u) {
			out = append(out, u)
		}
	}
	return out
}

func CloneNetworks(in []Network) []Network {
	if in == nil {
		return nil
	}
	out := make([]Network, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

func FindByChainID(networks []Network, chainID int64) (Network, bool) {
	for _, n := range networks {
		if n.ChainID == chainID {
			return n.Clone(), true
		}
	}
	return Network{}, false
}

var testnetKeywords = []string{
	"test", "testnet", "devnet", "goerli", "sepolia", "mumbai", "fuji",
	"chapel", "rinkeby", "ropsten", "kovan", "dev", "staging",
}

// IsTestnetName is a keyword heuristic over "name shortName". It is best-effort:
// a mainnet whose name contains one of the keywords is misclassified.
func IsTestnetName(name, shortName string) bool {
	s := strings.ToLower(name + " " + shortName)
	for _, kw := range testnetKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// SortNetworks orders mainnets first, then ascending chain id.
func SortNetworks(networks []Network) {
	slices.SortStableFunc(networks, func(a, b Network) int {
		if a.Testnet != b.Testnet {
			if a.Testnet {
				return 1
			}
			return -1
		}
		switch {
		case a.ChainID < b.ChainID:
			return -1
		case a.ChainID > b.ChainID:
			return 1
		}
		return 0
	})
}
