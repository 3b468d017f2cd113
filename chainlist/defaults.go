package chainlist

import (
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"
)

//go:embed default-networks.json
var defaultNetworksJSON []byte

// DefaultNetworks decodes the bundled dataset. It has the same shape as the
// persisted cache (rpcUrls, not registry rpc entries). If the bundle cannot be
// decoded the minimal Ethereum record from FallbackNetworks is returned with the error.
func DefaultNetworks() ([]Network, error) {
	var networks []Network
	if err := json.Unmarshal(defaultNetworksJSON, &networks); err != nil {
		return FallbackNetworks(), errors.Wrap(err, "decode bundled default networks")
	}
	SortNetworks(networks)
	return networks, nil
}

func FallbackNetworks() []Network {
	return []Network{{
		ChainID:   1,
		Name:      "Ethereum Mainnet",
		ShortName: "eth",
		Chain:     "ETH",
		NativeCurrency: NativeCurrency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURLs: []string{
			"https://ethereum.publicnode.com",
			"https://rpc.ankr.com/eth",
		},
		BlockExplorers: []Explorer{{Name: "Etherscan", URL: "https://etherscan.io", Standard: "EIP3091"}},
		Faucets:        []string{},
		InfoURL:        "https://ethereum.org",
		Status:         "active",
	}}
}
