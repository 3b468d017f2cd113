package selection

import (
	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/permission"
)

// OverridesSchemaVersion is bumped when the meaning of persisted overrides
// changes. Overrides written under another version are discarded on load.
const OverridesSchemaVersion = 1

const snapshotKey = "state"

// SelectionSnapshot is what the selection namespace holds.
type SelectionSnapshot struct {
	SelectedNetwork  *chainlist.Network `json:"selectedNetwork"`
	SelectedRPCIndex int                `json:"selectedRpcIndex"`
	ShowTestnets     bool               `json:"showTestnets"`
}

// OverridesSnapshot is what the overrides namespace holds.
type OverridesSnapshot struct {
	Version     int                               `json:"version"`
	CustomRPCs  map[int64][]chainlist.RPCEndpoint `json:"customRpcs"`
	Permissions map[int64]permission.Record       `json:"permissions"`
}

// Snapshot is the persisted subset of State. Probe results, loading flags,
// errors and the search query are not part of it.
type Snapshot struct {
	Selection SelectionSnapshot
	Overrides OverridesSnapshot
}

func (s State) Snapshot() Snapshot {
	c := s.Clone()
	return Snapshot{
		Selection: SelectionSnapshot{
			SelectedNetwork:  c.Selected,
			SelectedRPCIndex: c.SelectedRPCIndex,
			ShowTestnets:     c.ShowTestnets,
		},
		Overrides: OverridesSnapshot{
			Version:     OverridesSchemaVersion,
			CustomRPCs:  c.CustomRPCs,
			Permissions: c.Permissions,
		},
	}
}

func (snap Snapshot) restore(s State) State {
	if n := snap.Selection.SelectedNetwork; n != nil {
		c := n.Clone()
		s.Selected = &c
	} else {
		s.Selected = nil
	}
	s.SelectedRPCIndex = max(snap.Selection.SelectedRPCIndex, 0)
	s.ShowTestnets = snap.Selection.ShowTestnets
	s.Filtered = filter(s.Networks, s.SearchQuery, s.ShowTestnets)

	s.CustomRPCs = make(map[int64][]chainlist.RPCEndpoint, len(snap.Overrides.CustomRPCs))
	for id, eps := range snap.Overrides.CustomRPCs {
		if len(eps) == 0 {
			continue
		}
		out := make([]chainlist.RPCEndpoint, len(eps))
		for i, ep := range eps {
			ep.IsCustom = true
			ep.IsDefault = false
			out[i] = ep
		}
		s.CustomRPCs[id] = out
	}
	s.Permissions = make(map[int64]permission.Record, len(snap.Overrides.Permissions))
	for id, rec := range snap.Overrides.Permissions {
		rec.ChainID = id
		s.Permissions[id] = rec
	}
	s.syncSelected()
	return s
}
