// Package selection owns the user's network choice: the selected network and
// RPC, custom endpoints, permission overrides and the latest probe round.
// State changes are pure reducer transitions; Store serializes them and
// persists the durable subset.
package selection

import (
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/netcache"
	"github.com/quantumauth-io/quantum-chain-config/permission"
	"github.com/quantumauth-io/quantum-chain-config/prober"
)

var (
	ErrDuplicateRPC       = errors.New("rpc url already exists for this chain")
	ErrRPCNotFound        = errors.New("rpc url not found")
	ErrNoNetworkSelected  = errors.New("no network selected")
	ErrRPCIndexOutOfRange = errors.New("rpc index out of range")
	ErrNetworkNotFound    = errors.New("network not found")
	ErrStaleRound         = errors.New("probe round superseded")
)

// ConfigInfo describes the network list currently held in State.
type ConfigInfo struct {
	Source     netcache.Source `json:"source"`
	LastUpdate int64           `json:"lastUpdate"`
}

// Probe is the most recent health-check round. Results of any other round
// are discarded.
type Probe struct {
	Round   string          `json:"round"`
	ChainID int64           `json:"chainId"`
	Running bool            `json:"running"`
	Results []prober.Result `json:"results,omitempty"`
}

type State struct {
	Networks         []chainlist.Network
	Filtered         []chainlist.Network
	Selected         *chainlist.Network
	SelectedRPCIndex int
	ShowTestnets     bool
	SearchQuery      string
	CustomRPCs       map[int64][]chainlist.RPCEndpoint
	Permissions      map[int64]permission.Record

	Loading bool
	Err     string
	Config  *ConfigInfo
	Probe   Probe
}

func InitialState() State {
	return State{
		CustomRPCs:  make(map[int64][]chainlist.RPCEndpoint),
		Permissions: make(map[int64]permission.Record),
	}
}

// Clone returns a State that shares nothing mutable with s.
func (s State) Clone() State {
	s.Networks = chainlist.CloneNetworks(s.Networks)
	s.Filtered = chainlist.CloneNetworks(s.Filtered)
	if s.Selected != nil {
		n := s.Selected.Clone()
		s.Selected = &n
	}
	custom := make(map[int64][]chainlist.RPCEndpoint, len(s.CustomRPCs))
	for id, eps := range s.CustomRPCs {
		custom[id] = slices.Clone(eps)
	}
	s.CustomRPCs = custom
	s.Permissions = maps.Clone(s.Permissions)
	if s.Permissions == nil {
		s.Permissions = make(map[int64]permission.Record)
	}
	if s.Config != nil {
		c := *s.Config
		s.Config = &c
	}
	s.Probe.Results = slices.Clone(s.Probe.Results)
	return s
}

// CurrentRPCs is the selected network's default endpoints followed by the
// custom endpoints of that chain.
func (s State) CurrentRPCs() []chainlist.RPCEndpoint {
	if s.Selected == nil {
		return nil
	}
	defaults := chainlist.DefaultEndpoints(*s.Selected)
	return append(defaults, s.CustomRPCs[s.Selected.ChainID]...)
}

// syncSelected swaps the selection for the loaded record of the same chain,
// so default endpoints follow registry refreshes.
func (s *State) syncSelected() {
	if s.Selected == nil {
		return
	}
	n, ok := chainlist.FindByChainID(s.Networks, s.Selected.ChainID)
	if !ok {
		return
	}
	s.Selected = &n
	if s.SelectedRPCIndex >= len(s.CurrentRPCs()) {
		s.SelectedRPCIndex = 0
	}
}

// CurrentRPC falls back to the first endpoint when the index is stale.
func (s State) CurrentRPC() (chainlist.RPCEndpoint, bool) {
	rpcs := s.CurrentRPCs()
	if len(rpcs) == 0 {
		return chainlist.RPCEndpoint{}, false
	}
	if s.SelectedRPCIndex >= 0 && s.SelectedRPCIndex < len(rpcs) {
		return rpcs[s.SelectedRPCIndex], true
	}
	return rpcs[0], true
}

// Permission returns the stored record, or a non-override default.
func (s State) Permission(chainID int64) permission.Record {
	if rec, ok := s.Permissions[chainID]; ok {
		return rec
	}
	return permission.Record{ChainID: chainID}
}

// Network looks chainID up in the loaded list, then in the selection.
func (s State) Network(chainID int64) (chainlist.Network, bool) {
	if n, ok := chainlist.FindByChainID(s.Networks, chainID); ok {
		return n, true
	}
	if s.Selected != nil && s.Selected.ChainID == chainID {
		return s.Selected.Clone(), true
	}
	return chainlist.Network{}, false
}

func (s State) PermissionStatus(chainID int64) permission.Status {
	n, ok := s.Network(chainID)
	if !ok {
		n = chainlist.Network{ChainID: chainID}
	}
	var rec *permission.Record
	if r, ok := s.Permissions[chainID]; ok {
		rec = &r
	}
	return permission.ResolveStatus(n, rec)
}

func filter(networks []chainlist.Network, query string, showTestnets bool) []chainlist.Network {
	return chainlist.CloneNetworks(chainlist.Search(chainlist.FilterByType(networks, showTestnets), query))
}
