// Package permission resolves whether contract interaction is allowed on a
// network, combining system support with user overrides.
package permission

import (
	"slices"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
)

type Source string

const (
	SourceSystem Source = "system"
	SourceUser   Source = "user"
)

const ReasonUnsupported = "Network not supported by system"

// Record is a user decision for one chain. AllowContractInteraction is only
// authoritative when IsUserOverride is set.
type Record struct {
	ChainID                  int64  `json:"chainId"`
	AllowContractInteraction bool   `json:"allowContractInteraction"`
	IsUserOverride           bool   `json:"isUserOverride"`
	Reason                   string `json:"reason,omitempty"`
}

// Patch is a partial update; nil fields keep their previous value.
type Patch struct {
	AllowContractInteraction *bool
	Reason                   *string
}

func (p Patch) Apply(chainID int64, prev Record) Record {
	r := prev
	r.ChainID = chainID
	if p.AllowContractInteraction != nil {
		r.AllowContractInteraction = *p.AllowContractInteraction
	}
	if p.Reason != nil {
		r.Reason = *p.Reason
	}
	r.IsUserOverride = true
	return r
}

type Status struct {
	Allowed bool   `json:"allowed"`
	Source  Source `json:"source"`
	Reason  string `json:"reason,omitempty"`
}

// IsSupported holds when the chain id is positive and the record lists at least one RPC URL.
func IsSupported(n chainlist.Network) bool {
	return n.ChainID > 0 && len(n.RPCURLs) > 0
}

// ResolveStatus lets a user override win in both directions; otherwise system support decides.
func ResolveStatus(n chainlist.Network, rec *Record) Status {
	if rec != nil && rec.IsUserOverride {
		return Status{Allowed: rec.AllowContractInteraction, Source: SourceUser, Reason: rec.Reason}
	}
	if IsSupported(n) {
		return Status{Allowed: true, Source: SourceSystem}
	}
	return Status{Allowed: false, Source: SourceSystem, Reason: ReasonUnsupported}
}

type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

var wellKnownMainnets = []int64{1, 10, 56, 137, 8453, 42161, 43114}

func RiskLevel(n chainlist.Network) Risk {
	switch {
	case len(n.RedFlags) > 0:
		return RiskHigh
	case n.Testnet:
		return RiskMedium
	case slices.Contains(wellKnownMainnets, n.ChainID):
		return RiskLow
	default:
		return RiskMedium
	}
}
