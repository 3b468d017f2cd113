package selection

import (
	"github.com/pkg/errors"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/netcache"
	"github.com/quantumauth-io/quantum-chain-config/permission"
	"github.com/quantumauth-io/quantum-chain-config/prober"
	"github.com/quantumauth-io/quantum-chain-config/validate"
)

type scope uint8

const (
	scopeNone      scope = 0
	scopeSelection scope = 1 << iota
	scopeOverrides
)

// Action is one state transition. apply receives a private copy of the
// current state and may change it freely.
type Action interface {
	apply(s State) (State, error)
	scope() scope
}

// Reduce applies a to s. On error s is returned unchanged.
func Reduce(s State, a Action) (State, error) {
	next, err := a.apply(s.Clone())
	if err != nil {
		return s, err
	}
	return next, nil
}

type NetworksLoading struct{}

func (NetworksLoading) scope() scope { return scopeNone }

func (NetworksLoading) apply(s State) (State, error) {
	s.Loading = true
	s.Err = ""
	return s, nil
}

type NetworksLoaded struct {
	Entry netcache.Entry
}

func (NetworksLoaded) scope() scope { return scopeNone }

func (a NetworksLoaded) apply(s State) (State, error) {
	s.Networks = chainlist.CloneNetworks(a.Entry.Networks)
	s.Filtered = filter(s.Networks, s.SearchQuery, s.ShowTestnets)
	s.Config = &ConfigInfo{Source: a.Entry.Source, LastUpdate: a.Entry.LastUpdate}
	s.syncSelected()
	s.Loading = false
	s.Err = ""
	return s, nil
}

type NetworksFailed struct {
	Err error
}

func (NetworksFailed) scope() scope { return scopeNone }

func (a NetworksFailed) apply(s State) (State, error) {
	s.Loading = false
	if a.Err != nil {
		s.Err = a.Err.Error()
	}
	return s, nil
}

type SelectNetwork struct {
	Network chainlist.Network
}

func (SelectNetwork) scope() scope { return scopeSelection }

func (a SelectNetwork) apply(s State) (State, error) {
	n := a.Network.Clone()
	s.Selected = &n
	s.SelectedRPCIndex = 0
	s.Probe = Probe{}
	return s, nil
}

type SelectRPC struct {
	Index int
}

func (SelectRPC) scope() scope { return scopeSelection }

func (a SelectRPC) apply(s State) (State, error) {
	if s.Selected == nil {
		return s, ErrNoNetworkSelected
	}
	if n := len(s.CurrentRPCs()); a.Index < 0 || a.Index >= n {
		return s, errors.Wrapf(ErrRPCIndexOutOfRange, "index %d, %d endpoints", a.Index, n)
	}
	s.SelectedRPCIndex = a.Index
	return s, nil
}

type SetShowTestnets struct {
	Show bool
}

func (SetShowTestnets) scope() scope { return scopeSelection }

func (a SetShowTestnets) apply(s State) (State, error) {
	s.ShowTestnets = a.Show
	s.Filtered = filter(s.Networks, s.SearchQuery, s.ShowTestnets)
	return s, nil
}

type SetSearchQuery struct {
	Query string
}

func (SetSearchQuery) scope() scope { return scopeNone }

func (a SetSearchQuery) apply(s State) (State, error) {
	s.SearchQuery = a.Query
	s.Filtered = filter(s.Networks, s.SearchQuery, s.ShowTestnets)
	return s, nil
}

type AddCustomRPC struct {
	ChainID  int64
	Endpoint chainlist.RPCEndpoint
}

func (AddCustomRPC) scope() scope { return scopeOverrides }

func (a AddCustomRPC) apply(s State) (State, error) {
	ep, err := customEndpoint(a.Endpoint, len(s.CustomRPCs[a.ChainID]))
	if err != nil {
		return s, err
	}
	if s.hasURL(a.ChainID, ep.URL, -1) {
		return s, errors.Wrapf(ErrDuplicateRPC, "%s on chain %d", ep.URL, a.ChainID)
	}
	s.CustomRPCs[a.ChainID] = append(s.CustomRPCs[a.ChainID], ep)
	return s, nil
}

type RemoveCustomRPC struct {
	ChainID int64
	URL     string
}

func (RemoveCustomRPC) scope() scope { return scopeOverrides }

func (a RemoveCustomRPC) apply(s State) (State, error) {
	list := s.CustomRPCs[a.ChainID]
	i := indexOf(list, a.URL)
	if i < 0 {
		return s, errors.Wrapf(ErrRPCNotFound, "%s on chain %d", a.URL, a.ChainID)
	}
	list = append(list[:i], list[i+1:]...)
	if len(list) == 0 {
		delete(s.CustomRPCs, a.ChainID)
	} else {
		s.CustomRPCs[a.ChainID] = list
	}
	if s.Selected != nil && s.Selected.ChainID == a.ChainID && s.SelectedRPCIndex >= len(s.CurrentRPCs()) {
		s.SelectedRPCIndex = 0
	}
	return s, nil
}

type UpdateCustomRPC struct {
	ChainID  int64
	OldURL   string
	Endpoint chainlist.RPCEndpoint
}

func (UpdateCustomRPC) scope() scope { return scopeOverrides }

func (a UpdateCustomRPC) apply(s State) (State, error) {
	list := s.CustomRPCs[a.ChainID]
	i := indexOf(list, a.OldURL)
	if i < 0 {
		return s, errors.Wrapf(ErrRPCNotFound, "%s on chain %d", a.OldURL, a.ChainID)
	}
	ep, err := customEndpoint(a.Endpoint, i)
	if err != nil {
		return s, err
	}
	if s.hasURL(a.ChainID, ep.URL, i) {
		return s, errors.Wrapf(ErrDuplicateRPC, "%s on chain %d", ep.URL, a.ChainID)
	}
	list[i] = ep
	return s, nil
}

type SetPermission struct {
	ChainID int64
	Patch   permission.Patch
}

func (SetPermission) scope() scope { return scopeOverrides }

func (a SetPermission) apply(s State) (State, error) {
	s.Permissions[a.ChainID] = a.Patch.Apply(a.ChainID, s.Permission(a.ChainID))
	return s, nil
}

type ResetPermissions struct{}

func (ResetPermissions) scope() scope { return scopeOverrides }

func (ResetPermissions) apply(s State) (State, error) {
	s.Permissions = make(map[int64]permission.Record)
	return s, nil
}

type ResetPermission struct {
	ChainID int64
}

func (ResetPermission) scope() scope { return scopeOverrides }

func (a ResetPermission) apply(s State) (State, error) {
	delete(s.Permissions, a.ChainID)
	return s, nil
}

// BulkUpdatePermissions replaces the records of the given chains and keeps
// the rest. Records are stored as given.
type BulkUpdatePermissions struct {
	Records map[int64]permission.Record
}

func (BulkUpdatePermissions) scope() scope { return scopeOverrides }

func (a BulkUpdatePermissions) apply(s State) (State, error) {
	for id, rec := range a.Records {
		rec.ChainID = id
		s.Permissions[id] = rec
	}
	return s, nil
}

type ProbeStarted struct {
	Round   string
	ChainID int64
}

func (ProbeStarted) scope() scope { return scopeNone }

func (a ProbeStarted) apply(s State) (State, error) {
	s.Probe = Probe{Round: a.Round, ChainID: a.ChainID, Running: true}
	return s, nil
}

type ProbeFinished struct {
	Round   string
	Results []prober.Result
}

func (ProbeFinished) scope() scope { return scopeNone }

func (a ProbeFinished) apply(s State) (State, error) {
	if a.Round == "" || a.Round != s.Probe.Round {
		return s, errors.Wrapf(ErrStaleRound, "round %s", a.Round)
	}
	s.Probe.Running = false
	s.Probe.Results = a.Results
	return s, nil
}

// Restore installs a persisted snapshot over the current state.
type Restore struct {
	Snapshot Snapshot
}

func (Restore) scope() scope { return scopeNone }

func (a Restore) apply(s State) (State, error) {
	return a.Snapshot.restore(s), nil
}

type Reset struct{}

func (Reset) scope() scope { return scopeNone }

func (Reset) apply(State) (State, error) {
	return InitialState(), nil
}

func customEndpoint(ep chainlist.RPCEndpoint, index int) (chainlist.RPCEndpoint, error) {
	u, err := validate.RPCDescriptor(ep.URL, ep.Name, true)
	if err != nil {
		return ep, err
	}
	ep.URL = u
	if ep.Name == "" {
		ep.Name = chainlist.EndpointName(u, index)
	}
	ep.IsCustom = true
	ep.IsDefault = false
	return ep, nil
}

func indexOf(list []chainlist.RPCEndpoint, url string) int {
	for i, ep := range list {
		if validate.SameURL(ep.URL, url) {
			return i
		}
	}
	return -1
}

// hasURL checks the chain's custom list, skipping index skip, and the
// chain's default URLs when the network is known.
func (s State) hasURL(chainID int64, url string, skip int) bool {
	for i, ep := range s.CustomRPCs[chainID] {
		if i != skip && validate.SameURL(ep.URL, url) {
			return true
		}
	}
	if n, ok := s.Network(chainID); ok {
		for _, u := range n.HTTPRPCURLs() {
			if validate.SameURL(u, url) {
				return true
			}
		}
	}
	return false
}
