package chainlist

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/quantumauth-io/quantum-chain-config/validate"
)

// DefaultEndpoints derives one endpoint per HTTP(S) URL of the network, in order.
// The first one is flagged as the default.
func DefaultEndpoints(n Network) []RPCEndpoint {
	urls := n.HTTPRPCURLs()
	out := make([]RPCEndpoint, 0, len(urls))
	for i, u := range urls {
		out = append(out, RPCEndpoint{
			URL:       u,
			Name:      EndpointName(u, i),
			IsDefault: i == 0,
		})
	}
	return out
}

// EndpointName is the capitalised second-level domain of the URL host,
// or "RPC n" (1-based) when the host has no such label.
func EndpointName(rawURL string, index int) string {
	fallback := fmt.Sprintf("RPC %d", index+1)
	if !validate.HasHTTPPrefix(rawURL) {
		return fallback
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fallback
	}
	parts := strings.Split(u.Hostname(), ".")
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return fallback
	}
	label := parts[len(parts)-2]
	return strings.ToUpper(label[:1]) + label[1:]
}
