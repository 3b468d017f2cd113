package selection

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/netcache"
	"github.com/quantumauth-io/quantum-chain-config/permission"
	"github.com/quantumauth-io/quantum-chain-config/prober"
	"github.com/quantumauth-io/quantum-chain-config/storage"
	"github.com/quantumauth-io/quantum-chain-config/validate"
)

var (
	mainnet = chainlist.Network{
		ChainID:   1,
		Name:      "Ethereum Mainnet",
		ShortName: "eth",
		RPCURLs:   []string{"https://eth.llamarpc.com", "wss://eth.example.org", "https://cloudflare-eth.com"},
	}
	polygon = chainlist.Network{
		ChainID:   137,
		Name:      "Polygon Mainnet",
		ShortName: "pol",
		RPCURLs:   []string{"https://polygon-rpc.com"},
	}
	sepolia = chainlist.Network{
		ChainID:   11155111,
		Name:      "Sepolia",
		ShortName: "sep",
		RPCURLs:   []string{"https://rpc.sepolia.org"},
		Testnet:   true,
	}
)

func boolPtr(b bool) *bool         { return &b }
func strPtr(s string) *string      { return &s }
func must(t *testing.T, err error) { t.Helper(); require.NoError(t, err) }

func selected(t *testing.T, n chainlist.Network) State {
	t.Helper()
	s, err := Reduce(InitialState(), NetworksLoaded{Entry: netcache.Entry{Networks: []chainlist.Network{mainnet, polygon, sepolia}}})
	require.NoError(t, err)
	s, err = Reduce(s, SelectNetwork{Network: n})
	require.NoError(t, err)
	return s
}

func TestSelectNetworkResetsRPCIndex(t *testing.T) {
	s := selected(t, mainnet)
	s, err := Reduce(s, SelectRPC{Index: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, s.SelectedRPCIndex)

	s, err = Reduce(s, SelectNetwork{Network: polygon})
	require.NoError(t, err)
	assert.Equal(t, 0, s.SelectedRPCIndex)
	assert.Equal(t, int64(137), s.Selected.ChainID)
}

func TestSelectRPCBounds(t *testing.T) {
	_, err := Reduce(InitialState(), SelectRPC{Index: 0})
	assert.ErrorIs(t, err, ErrNoNetworkSelected)

	s := selected(t, mainnet)
	for _, idx := range []int{-1, 2, 10} {
		_, err := Reduce(s, SelectRPC{Index: idx})
		assert.ErrorIs(t, err, ErrRPCIndexOutOfRange, "index %d", idx)
	}
}

func TestNetworksLoadedRefreshesSelectedNetwork(t *testing.T) {
	s := selected(t, mainnet)
	s, err := Reduce(s, SelectRPC{Index: 1})
	require.NoError(t, err)

	refreshed := mainnet.Clone()
	refreshed.RPCURLs = []string{"https://new-rpc.example.org"}
	s, err = Reduce(s, NetworksLoaded{Entry: netcache.Entry{Networks: []chainlist.Network{refreshed, polygon}}})
	require.NoError(t, err)

	rpcs := s.CurrentRPCs()
	require.Len(t, rpcs, 1)
	assert.Equal(t, "https://new-rpc.example.org", rpcs[0].URL)
	assert.Equal(t, 0, s.SelectedRPCIndex)

	_, err = Reduce(s, SelectRPC{Index: 1})
	assert.ErrorIs(t, err, ErrRPCIndexOutOfRange)
}

func TestRestoreUsesLoadedRecordForSelection(t *testing.T) {
	s, err := Reduce(InitialState(), NetworksLoaded{Entry: netcache.Entry{Networks: []chainlist.Network{mainnet, polygon}}})
	require.NoError(t, err)

	stale := mainnet.Clone()
	stale.RPCURLs = []string{"https://old-rpc.example.org"}
	s, err = Reduce(s, Restore{Snapshot: Snapshot{Selection: SelectionSnapshot{SelectedNetwork: &stale}}})
	require.NoError(t, err)

	require.NotNil(t, s.Selected)
	assert.Equal(t, mainnet.RPCURLs, s.Selected.RPCURLs)
}

func TestCurrentRPCsCountsHTTPDefaultsAndCustom(t *testing.T) {
	s := selected(t, mainnet)
	for i := 0; i < 3; i++ {
		var err error
		s, err = Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: fmt.Sprintf("https://custom-%d.example.org", i)}})
		require.NoError(t, err)
	}
	s, err := Reduce(s, AddCustomRPC{ChainID: 137, Endpoint: chainlist.RPCEndpoint{URL: "https://other.example.org"}})
	require.NoError(t, err)

	rpcs := s.CurrentRPCs()
	require.Len(t, rpcs, len(mainnet.HTTPRPCURLs())+3)
	assert.True(t, rpcs[0].IsDefault)
	assert.False(t, rpcs[1].IsDefault)
	assert.False(t, rpcs[1].IsCustom)
	for _, ep := range rpcs[2:] {
		assert.True(t, ep.IsCustom)
		assert.False(t, ep.IsDefault)
	}
	assert.Equal(t, "Example", rpcs[2].Name)
}

func TestAddCustomRPCRejects(t *testing.T) {
	s := selected(t, mainnet)
	s, err := Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: "https://mine.example.org", Name: "Mine"}})
	require.NoError(t, err)

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"duplicate custom", "https://MINE.example.org/", ErrDuplicateRPC},
		{"duplicate default", "https://eth.llamarpc.com", ErrDuplicateRPC},
		{"websocket", "wss://eth.example.org", validate.ErrUnsupportedScheme},
		{"empty", " ", validate.ErrEmptyURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: tt.url}})
			assert.ErrorIs(t, err, tt.want)
			assert.Len(t, next.CustomRPCs[1], 1)
		})
	}

	other, err := Reduce(s, AddCustomRPC{ChainID: 137, Endpoint: chainlist.RPCEndpoint{URL: "https://mine.example.org"}})
	require.NoError(t, err)
	assert.Len(t, other.CustomRPCs[137], 1)
}

func TestUpdateAndRemoveCustomRPC(t *testing.T) {
	s := selected(t, mainnet)
	s, err := Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: "https://a.example.org"}})
	require.NoError(t, err)
	s, err = Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: "https://b.example.org"}})
	require.NoError(t, err)

	_, err = Reduce(s, UpdateCustomRPC{ChainID: 1, OldURL: "https://a.example.org", Endpoint: chainlist.RPCEndpoint{URL: "https://b.example.org"}})
	assert.ErrorIs(t, err, ErrDuplicateRPC)

	_, err = Reduce(s, UpdateCustomRPC{ChainID: 1, OldURL: "https://missing.example.org", Endpoint: chainlist.RPCEndpoint{URL: "https://c.example.org"}})
	assert.ErrorIs(t, err, ErrRPCNotFound)

	s, err = Reduce(s, UpdateCustomRPC{ChainID: 1, OldURL: "https://a.example.org", Endpoint: chainlist.RPCEndpoint{URL: "https://c.example.org", Name: "C", IsDefault: true}})
	require.NoError(t, err)
	assert.Equal(t, chainlist.RPCEndpoint{URL: "https://c.example.org", Name: "C", IsCustom: true}, s.CustomRPCs[1][0])

	s, err = Reduce(s, SelectRPC{Index: 3})
	require.NoError(t, err)
	s, err = Reduce(s, RemoveCustomRPC{ChainID: 1, URL: "https://b.example.org"})
	require.NoError(t, err)
	assert.Equal(t, 0, s.SelectedRPCIndex)

	s, err = Reduce(s, RemoveCustomRPC{ChainID: 1, URL: "https://c.example.org"})
	require.NoError(t, err)
	_, ok := s.CustomRPCs[1]
	assert.False(t, ok)

	_, err = Reduce(s, RemoveCustomRPC{ChainID: 1, URL: "https://c.example.org"})
	assert.ErrorIs(t, err, ErrRPCNotFound)
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := selected(t, mainnet)
	s, err := Reduce(s, AddCustomRPC{ChainID: 1, Endpoint: chainlist.RPCEndpoint{URL: "https://a.example.org"}})
	require.NoError(t, err)

	next, err := Reduce(s, UpdateCustomRPC{ChainID: 1, OldURL: "https://a.example.org", Endpoint: chainlist.RPCEndpoint{URL: "https://z.example.org"}})
	require.NoError(t, err)
	assert.Equal(t, "https://a.example.org", s.CustomRPCs[1][0].URL)
	assert.Equal(t, "https://z.example.org", next.CustomRPCs[1][0].URL)
}

func TestPermissions(t *testing.T) {
	s := selected(t, mainnet)
	assert.Equal(t, permission.Status{Allowed: true, Source: permission.SourceSystem}, s.PermissionStatus(1))
	assert.Equal(t, permission.Status{Allowed: false, Source: permission.SourceSystem, Reason: permission.ReasonUnsupported}, s.PermissionStatus(999))

	s, err := Reduce(s, SetPermission{ChainID: 1, Patch: permission.Patch{AllowContractInteraction: boolPtr(false), Reason: strPtr("paused")}})
	require.NoError(t, err)
	s, err = Reduce(s, SetPermission{ChainID: 999, Patch: permission.Patch{AllowContractInteraction: boolPtr(true)}})
	require.NoError(t, err)

	assert.Equal(t, permission.Status{Allowed: false, Source: permission.SourceUser, Reason: "paused"}, s.PermissionStatus(1))
	assert.Equal(t, permission.Status{Allowed: true, Source: permission.SourceUser}, s.PermissionStatus(999))

	s, err = Reduce(s, SetPermission{ChainID: 1, Patch: permission.Patch{}})
	require.NoError(t, err)
	assert.Equal(t, permission.Record{ChainID: 1, IsUserOverride: true, Reason: "paused"}, s.Permission(1))

	s, err = Reduce(s, ResetPermission{ChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, permission.Record{ChainID: 1}, s.Permission(1))
	assert.True(t, s.Permission(999).IsUserOverride)

	s, err = Reduce(s, BulkUpdatePermissions{Records: map[int64]permission.Record{
		137: {AllowContractInteraction: false, IsUserOverride: true},
	}})
	require.NoError(t, err)
	assert.Equal(t, int64(137), s.Permission(137).ChainID)
	assert.Len(t, s.Permissions, 2)

	s, err = Reduce(s, ResetPermissions{})
	require.NoError(t, err)
	assert.Empty(t, s.Permissions)
}

func TestFilteredNetworks(t *testing.T) {
	s := selected(t, mainnet)
	assert.Len(t, s.Filtered, 2)

	s, err := Reduce(s, SetShowTestnets{Show: true})
	require.NoError(t, err)
	assert.Len(t, s.Filtered, 3)

	s, err = Reduce(s, SetSearchQuery{Query: "sep"})
	require.NoError(t, err)
	require.Len(t, s.Filtered, 1)
	assert.Equal(t, int64(11155111), s.Filtered[0].ChainID)
}

type registryFunc func(ctx context.Context) ([]chainlist.Network, error)

func (f registryFunc) Fetch(ctx context.Context) ([]chainlist.Network, error) { return f(ctx) }

type rankerFunc func(ctx context.Context, n chainlist.Network, eps []chainlist.RPCEndpoint) []prober.Result

func (f rankerFunc) TestAndRank(ctx context.Context, n chainlist.Network, eps []chainlist.RPCEndpoint) []prober.Result {
	return f(ctx, n, eps)
}

func newStore(t *testing.T, backend storage.Store, fetch registryFunc, ranker Ranker) *Store {
	t.Helper()
	cache := netcache.New(fetch, backend)
	return NewStore(cache, ranker, backend, nil)
}

func okRegistry(context.Context) ([]chainlist.Network, error) {
	return []chainlist.Network{mainnet, polygon, sepolia}, nil
}

func TestStoreFetchAndForceUpdate(t *testing.T) {
	ctx := context.Background()
	fail := false
	store := newStore(t, storage.NewMemoryStore(), func(context.Context) ([]chainlist.Network, error) {
		if fail {
			return nil, chainlist.ErrRegistryFetch
		}
		return okRegistry(ctx)
	}, nil)

	must(t, store.FetchNetworks(ctx))
	st := store.State()
	assert.Len(t, st.Networks, 3)
	assert.Len(t, store.FilteredNetworks(), 2)
	require.NotNil(t, st.Config)
	assert.Equal(t, netcache.SourceRemote, st.Config.Source)
	assert.False(t, st.Loading)

	fail = true
	err := store.ForceUpdateNetworks(ctx)
	assert.ErrorIs(t, err, chainlist.ErrRegistryFetch)
	st = store.State()
	assert.NotEmpty(t, st.Err)
	assert.Len(t, st.Networks, 3)

	info, ok := store.NetworkConfigInfo()
	require.True(t, ok)
	assert.Equal(t, 3, info.Networks)

	must(t, store.SelectNetworkByChainID(ctx, 137))
	n, ok := store.SelectedNetwork()
	require.True(t, ok)
	assert.Equal(t, "pol", n.ShortName)
	assert.ErrorIs(t, store.SelectNetworkByChainID(ctx, 42), ErrNetworkNotFound)

	must(t, store.UpdateDefaultNetworks(ctx, []chainlist.Network{polygon}))
	assert.Len(t, store.State().Networks, 1)
	assert.Equal(t, netcache.SourceMerged, store.State().Config.Source)
}

func TestStorePersistedRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	first := newStore(t, backend, okRegistry, nil)

	must(t, first.FetchNetworks(ctx))
	must(t, first.SelectNetwork(ctx, mainnet))
	must(t, first.AddCustomRPC(ctx, 1, chainlist.RPCEndpoint{URL: "https://mine.example.org", Name: "Mine"}))
	must(t, first.SelectRPC(ctx, 2))
	must(t, first.SetShowTestnets(ctx, true))
	must(t, first.SetSearchQuery(ctx, "poly"))
	_, err := first.SetPermission(ctx, 137, permission.Patch{AllowContractInteraction: boolPtr(false)})
	require.NoError(t, err)

	second := newStore(t, backend, okRegistry, nil)
	must(t, second.Load(ctx))

	want, got := first.State(), second.State()
	assert.Equal(t, want.Selected, got.Selected)
	assert.Equal(t, want.SelectedRPCIndex, got.SelectedRPCIndex)
	assert.Equal(t, want.ShowTestnets, got.ShowTestnets)
	assert.Equal(t, want.CustomRPCs, got.CustomRPCs)
	assert.Equal(t, want.Permissions, got.Permissions)
	assert.Equal(t, "", got.SearchQuery)

	rpc, ok := second.CurrentRPC()
	require.True(t, ok)
	assert.Equal(t, "https://mine.example.org", rpc.URL)
}

func TestStoreDiscardsOverridesFromOtherSchema(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	ns := storage.NewNamespace(backend, storage.NamespaceOverrides)
	require.NoError(t, ns.SetJSON(ctx, snapshotKey, OverridesSnapshot{
		Version:     OverridesSchemaVersion + 1,
		Permissions: map[int64]permission.Record{1: {ChainID: 1, IsUserOverride: true}},
	}))

	store := newStore(t, backend, okRegistry, nil)
	must(t, store.Load(ctx))
	assert.Empty(t, store.State().Permissions)

	_, err := backend.Get(ctx, storage.NamespaceOverrides+":"+snapshotKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreReset(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryStore()
	store := newStore(t, backend, okRegistry, nil)
	must(t, store.SelectNetwork(ctx, mainnet))
	_, err := store.SetPermission(ctx, 1, permission.Patch{AllowContractInteraction: boolPtr(true)})
	require.NoError(t, err)

	must(t, store.Reset(ctx))
	_, ok := store.SelectedNetwork()
	assert.False(t, ok)
	keys, err := backend.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTestCurrentRPCsDropsLateRound(t *testing.T) {
	ctx := context.Background()
	var store *Store
	calls := 0
	ranker := rankerFunc(func(ctx context.Context, n chainlist.Network, eps []chainlist.RPCEndpoint) []prober.Result {
		calls++
		if calls == 1 {
			// A newer round starts and finishes while this one is in flight.
			_, err := store.TestCurrentRPCs(ctx)
			if err != nil {
				panic(err)
			}
			return []prober.Result{{URL: "late", Outcome: prober.OutcomeSuccess}}
		}
		return []prober.Result{{URL: eps[0].URL, Outcome: prober.OutcomeSuccess}}
	})
	store = newStore(t, storage.NewMemoryStore(), okRegistry, ranker)
	round := 0
	store.newRound = func() string { round++; return fmt.Sprintf("round-%d", round) }

	_, err := store.TestCurrentRPCs(ctx)
	assert.ErrorIs(t, err, ErrNoNetworkSelected)

	must(t, store.SelectNetwork(ctx, mainnet))
	results, err := store.TestCurrentRPCs(ctx)
	assert.True(t, errors.Is(err, ErrStaleRound))
	assert.Equal(t, "late", results[0].URL)

	kept := store.ProbeResults()
	require.Len(t, kept, 1)
	assert.Equal(t, "https://eth.llamarpc.com", kept[0].URL)
	assert.Equal(t, "round-2", store.State().Probe.Round)
	assert.False(t, store.State().Probe.Running)
}
