package chainlist

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var ErrMalformedPayload = errors.New("registry payload is not a JSON object or array")

// ParseRegistry converts a registry payload (an object keyed by anything, or an
// array of chain records) into sorted networks. Records without a positive chain
// id, a name or a non-empty rpc list are skipped one by one.
func ParseRegistry(body []byte, logger *zap.Logger) ([]Network, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrMalformedPayload, "invalid json")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() && !root.IsObject() {
		return nil, ErrMalformedPayload
	}

	seen := make(map[int64]struct{})
	var networks []Network
	skipped := 0
	root.ForEach(func(_, chain gjson.Result) bool {
		n, ok := parseChain(chain, logger)
		if !ok {
			skipped++
			return true
		}
		if _, dup := seen[n.ChainID]; dup {
			logger.Debug("duplicate chain in registry", zap.Int64("chainId", n.ChainID))
			return true
		}
		seen[n.ChainID] = struct{}{}
		networks = append(networks, n)
		return true
	})

	if skipped > 0 {
		logger.Debug("skipped malformed registry records", zap.Int("count", skipped))
	}
	SortNetworks(networks)
	return networks, nil
}

func parseChain(chain gjson.Result, logger *zap.Logger) (Network, bool) {
	if !chain.IsObject() {
		return Network{}, false
	}
	id := chain.Get("chainId")
	if id.Type != gjson.Number || id.Int() <= 0 {
		return Network{}, false
	}
	name := chain.Get("name").String()
	if name == "" {
		return Network{}, false
	}
	rpc := chain.Get("rpc")
	if !rpc.IsArray() || len(rpc.Array()) == 0 {
		return Network{}, false
	}

	var raw []RawRPC
	for _, e := range rpc.Array() {
		r := rawRPCFromResult(e)
		if r.Kind == RPCKindUnknown {
			logger.Debug("unhandled rpc entry", zap.String("chain", name), zap.Int64("chainId", id.Int()),
				zap.String("raw", e.Raw))
		}
		raw = append(raw, r)
	}
	urls := NormalizeRPCs(raw)
	if len(urls) == 0 {
		logger.Debug("no http rpc urls for chain", zap.String("chain", name), zap.Int64("chainId", id.Int()))
	}

	shortName := chain.Get("shortName").String()
	n := Network{
		ChainID:   id.Int(),
		Name:      name,
		ShortName: shortName,
		Chain:     chain.Get("chain").String(),
		NativeCurrency: NativeCurrency{
			Name:     chain.Get("nativeCurrency.name").String(),
			Symbol:   chain.Get("nativeCurrency.symbol").String(),
			Decimals: int(chain.Get("nativeCurrency.decimals").Int()),
		},
		RPCURLs:  urls,
		Faucets:  stringArray(chain.Get("faucets")),
		InfoURL:  chain.Get("infoURL").String(),
		Icon:     chain.Get("icon").String(),
		Testnet:  IsTestnetName(name, shortName),
		Status:   chain.Get("status").String(),
		RedFlags: stringArray(chain.Get("redFlags")),
	}
	if n.Status == "" {
		n.Status = "active"
	}
	chain.Get("explorers").ForEach(func(_, e gjson.Result) bool {
		if e.IsObject() {
			n.BlockExplorers = append(n.BlockExplorers, Explorer{
				Name:     e.Get("name").String(),
				URL:      e.Get("url").String(),
				Standard: e.Get("standard").String(),
				Icon:     e.Get("icon").String(),
			})
		}
		return true
	})
	return n, true
}

func stringArray(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, e := range v.Array() {
		if e.Type == gjson.String {
			out = append(out, e.Str)
		}
	}
	return out
}
