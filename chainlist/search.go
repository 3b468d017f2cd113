package chainlist

import (
	"strconv"
	"strings"
)

// Search matches query case-insensitively against name, short name, chain,
// chain id and currency symbol. A blank query returns networks unchanged.
func Search(networks []Network, query string) []Network {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return networks
	}
	var out []Network
	for _, n := range networks {
		if strings.Contains(strings.ToLower(n.Name), q) ||
			strings.Contains(strings.ToLower(n.ShortName), q) ||
			strings.Contains(strings.ToLower(n.Chain), q) ||
			strings.Contains(strconv.FormatInt(n.ChainID, 10), q) ||
			strings.Contains(strings.ToLower(n.NativeCurrency.Symbol), q) {
			out = append(out, n)
		}
	}
	return out
}

func FilterByType(networks []Network, showTestnets bool) []Network {
	if showTestnets {
		return networks
	}
	var out []Network
	for _, n := range networks {
		if !n.Testnet {
			out = append(out, n)
		}
	}
	return out
}
