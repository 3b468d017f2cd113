package prober

import (
	"slices"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
)

// Rank orders endpoints best first: successes before anything else, then the
// higher block height, then the lower latency. Everything that did not succeed
// keeps its input order. Endpoints without a result are reported as pending.
func Rank(endpoints []chainlist.RPCEndpoint, results map[string]Result) []Result {
	out := make([]Result, 0, len(endpoints))
	seen := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		if _, dup := seen[ep.URL]; dup {
			continue
		}
		seen[ep.URL] = struct{}{}
		r, ok := results[ep.URL]
		if !ok {
			r = Result{URL: ep.URL, Outcome: OutcomePending}
		}
		out = append(out, r)
	}
	slices.SortStableFunc(out, compare)
	return out
}

func compare(a, b Result) int {
	aOK, bOK := a.Outcome == OutcomeSuccess, b.Outcome == OutcomeSuccess
	switch {
	case aOK && !bOK:
		return -1
	case !aOK && bOK:
		return 1
	case !aOK && !bOK:
		return 0
	}
	ah, bh := height(a), height(b)
	if ah != bh {
		if ah > bh {
			return -1
		}
		return 1
	}
	switch {
	case a.Latency < b.Latency:
		return -1
	case a.Latency > b.Latency:
		return 1
	}
	return 0
}

func height(r Result) uint64 {
	if r.BlockHeight == nil {
		return 0
	}
	return *r.BlockHeight
}
