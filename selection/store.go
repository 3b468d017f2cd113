package selection

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/netcache"
	"github.com/quantumauth-io/quantum-chain-config/permission"
	"github.com/quantumauth-io/quantum-chain-config/prober"
	"github.com/quantumauth-io/quantum-chain-config/storage"
)

// NetworkSource is the configuration cache as seen by the store.
type NetworkSource interface {
	Get(ctx context.Context) (netcache.Entry, error)
	Refresh(ctx context.Context) (netcache.Entry, error)
	ForceUpdate(ctx context.Context) (netcache.Entry, error)
	UpdateDefaultNetworks(ctx context.Context, networks []chainlist.Network) netcache.Entry
	DefaultNetworks() []chainlist.Network
	Info() (netcache.Info, bool)
}

type Ranker interface {
	TestAndRank(ctx context.Context, network chainlist.Network, endpoints []chainlist.RPCEndpoint) []prober.Result
}

// Store is the single writer of the selection and overrides namespaces.
// Dispatch is serialized; readers see whole states swapped atomically.
type Store struct {
	networks  NetworkSource
	ranker    Ranker
	selection *storage.Namespace
	overrides *storage.Namespace
	logger    *zap.Logger
	newRound  func() string

	mu    sync.Mutex
	state atomic.Pointer[State]
}

func NewStore(networks NetworkSource, ranker Ranker, store storage.Store, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		networks:  networks,
		ranker:    ranker,
		selection: storage.NewNamespace(store, storage.NamespaceSelection),
		overrides: storage.NewNamespace(store, storage.NamespaceOverrides),
		logger:    logger,
		newRound:  uuid.NewString,
	}
	initial := InitialState()
	s.state.Store(&initial)
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	return s.state.Load().Clone()
}

// Dispatch reduces a against the current state, swaps the result in and
// persists the namespaces the action touches. Persistence failures are
// logged; the transition stands.
func (s *Store) Dispatch(ctx context.Context, a Action) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(*s.state.Load(), a)
	if err != nil {
		return next.Clone(), err
	}
	s.state.Store(&next)
	s.persist(ctx, next, a.scope())
	return next.Clone(), nil
}

func (s *Store) persist(ctx context.Context, st State, sc scope) {
	if sc == scopeNone {
		return
	}
	snap := st.Snapshot()
	if sc&scopeSelection != 0 {
		if err := s.selection.SetJSON(ctx, snapshotKey, snap.Selection); err != nil {
			s.logger.Warn("failed to persist selection", zap.Error(err))
		}
	}
	if sc&scopeOverrides != 0 {
		if err := s.overrides.SetJSON(ctx, snapshotKey, snap.Overrides); err != nil {
			s.logger.Warn("failed to persist overrides", zap.Error(err))
		}
	}
}

// Load restores both persisted namespaces. Missing keys leave the defaults;
// overrides from another schema version are dropped.
func (s *Store) Load(ctx context.Context) error {
	var snap Snapshot
	if err := s.selection.GetJSON(ctx, snapshotKey, &snap.Selection); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(err, "load selection")
	}

	switch err := s.overrides.GetJSON(ctx, snapshotKey, &snap.Overrides); {
	case err == nil:
		if snap.Overrides.Version != OverridesSchemaVersion {
			s.logger.Warn("discarding overrides from another schema version",
				zap.Int("version", snap.Overrides.Version),
				zap.Int("want", OverridesSchemaVersion))
			snap.Overrides = OverridesSnapshot{}
			if err := s.overrides.Clear(ctx); err != nil {
				s.logger.Warn("failed to clear stale overrides", zap.Error(err))
			}
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return errors.Wrap(err, "load overrides")
	}

	_, err := s.Dispatch(ctx, Restore{Snapshot: snap})
	return err
}

func (s *Store) FetchNetworks(ctx context.Context) error {
	return s.loadNetworks(ctx, s.networks.Get)
}

// RefreshNetworks bypasses the cache once.
func (s *Store) RefreshNetworks(ctx context.Context) error {
	return s.loadNetworks(ctx, s.networks.Refresh)
}

// ForceUpdateNetworks asks the registry directly and returns its error.
func (s *Store) ForceUpdateNetworks(ctx context.Context) error {
	return s.loadNetworks(ctx, s.networks.ForceUpdate)
}

func (s *Store) loadNetworks(ctx context.Context, get func(context.Context) (netcache.Entry, error)) error {
	_, _ = s.Dispatch(ctx, NetworksLoading{})
	entry, err := get(ctx)
	if err != nil {
		_, _ = s.Dispatch(ctx, NetworksFailed{Err: err})
		return err
	}
	_, err = s.Dispatch(ctx, NetworksLoaded{Entry: entry})
	return err
}

func (s *Store) SelectNetwork(ctx context.Context, n chainlist.Network) error {
	_, err := s.Dispatch(ctx, SelectNetwork{Network: n})
	return err
}

// SelectNetworkByChainID selects a network from the loaded list.
func (s *Store) SelectNetworkByChainID(ctx context.Context, chainID int64) error {
	n, ok := chainlist.FindByChainID(s.state.Load().Networks, chainID)
	if !ok {
		return errors.Wrapf(ErrNetworkNotFound, "chain %d", chainID)
	}
	return s.SelectNetwork(ctx, n)
}

func (s *Store) SelectRPC(ctx context.Context, index int) error {
	_, err := s.Dispatch(ctx, SelectRPC{Index: index})
	return err
}

func (s *Store) AddCustomRPC(ctx context.Context, chainID int64, ep chainlist.RPCEndpoint) error {
	_, err := s.Dispatch(ctx, AddCustomRPC{ChainID: chainID, Endpoint: ep})
	return err
}

func (s *Store) RemoveCustomRPC(ctx context.Context, chainID int64, url string) error {
	_, err := s.Dispatch(ctx, RemoveCustomRPC{ChainID: chainID, URL: url})
	return err
}

func (s *Store) UpdateCustomRPC(ctx context.Context, chainID int64, oldURL string, ep chainlist.RPCEndpoint) error {
	_, err := s.Dispatch(ctx, UpdateCustomRPC{ChainID: chainID, OldURL: oldURL, Endpoint: ep})
	return err
}

func (s *Store) SetPermission(ctx context.Context, chainID int64, patch permission.Patch) (permission.Record, error) {
	st, err := s.Dispatch(ctx, SetPermission{ChainID: chainID, Patch: patch})
	if err != nil {
		return permission.Record{}, err
	}
	return st.Permission(chainID), nil
}

func (s *Store) GetPermission(chainID int64) permission.Record {
	return s.state.Load().Permission(chainID)
}

func (s *Store) ResetPermissions(ctx context.Context) error {
	_, err := s.Dispatch(ctx, ResetPermissions{})
	return err
}

func (s *Store) ResetPermission(ctx context.Context, chainID int64) error {
	_, err := s.Dispatch(ctx, ResetPermission{ChainID: chainID})
	return err
}

func (s *Store) BulkUpdatePermissions(ctx context.Context, records map[int64]permission.Record) error {
	_, err := s.Dispatch(ctx, BulkUpdatePermissions{Records: records})
	return err
}

func (s *Store) PermissionStatus(chainID int64) permission.Status {
	return s.state.Load().PermissionStatus(chainID)
}

func (s *Store) CurrentNetworkRPCs() []chainlist.RPCEndpoint {
	return s.state.Load().CurrentRPCs()
}

func (s *Store) CurrentRPC() (chainlist.RPCEndpoint, bool) {
	return s.state.Load().CurrentRPC()
}

func (s *Store) SelectedNetwork() (chainlist.Network, bool) {
	st := s.state.Load()
	if st.Selected == nil {
		return chainlist.Network{}, false
	}
	return st.Selected.Clone(), true
}

func (s *Store) SetShowTestnets(ctx context.Context, show bool) error {
	_, err := s.Dispatch(ctx, SetShowTestnets{Show: show})
	return err
}

func (s *Store) SetSearchQuery(ctx context.Context, query string) error {
	_, err := s.Dispatch(ctx, SetSearchQuery{Query: query})
	return err
}

func (s *Store) FilteredNetworks() []chainlist.Network {
	return chainlist.CloneNetworks(s.state.Load().Filtered)
}

func (s *Store) DefaultNetworks() []chainlist.Network {
	return s.networks.DefaultNetworks()
}

// UpdateDefaultNetworks installs a caller supplied list as source "merged".
func (s *Store) UpdateDefaultNetworks(ctx context.Context, networks []chainlist.Network) error {
	entry := s.networks.UpdateDefaultNetworks(ctx, networks)
	_, err := s.Dispatch(ctx, NetworksLoaded{Entry: entry})
	return err
}

func (s *Store) NetworkConfigInfo() (netcache.Info, bool) {
	return s.networks.Info()
}

// TestCurrentRPCs probes and ranks the current endpoints. When another round
// started meanwhile the results are returned but not kept, with ErrStaleRound.
func (s *Store) TestCurrentRPCs(ctx context.Context) ([]prober.Result, error) {
	st := s.state.Load()
	if st.Selected == nil {
		return nil, ErrNoNetworkSelected
	}
	network := st.Selected.Clone()
	endpoints := st.CurrentRPCs()

	round := s.newRound()
	if _, err := s.Dispatch(ctx, ProbeStarted{Round: round, ChainID: network.ChainID}); err != nil {
		return nil, err
	}
	s.logger.Debug("probe round started", zap.String("round", round), zap.Int64("chainId", network.ChainID))

	results := s.ranker.TestAndRank(ctx, network, endpoints)
	if _, err := s.Dispatch(ctx, ProbeFinished{Round: round, Results: results}); err != nil {
		s.logger.Debug("dropping late probe results", zap.String("round", round))
		return results, err
	}
	return results, nil
}

func (s *Store) ProbeResults() []prober.Result {
	st := s.State()
	return st.Probe.Results
}

// Reset returns to the initial state and clears both persisted namespaces.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.Dispatch(ctx, Reset{}); err != nil {
		return err
	}
	if err := s.selection.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear selection")
	}
	if err := s.overrides.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear overrides")
	}
	return nil
}
