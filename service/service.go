// Package service wires the network configuration core together: one Service
// per process owns the cache, the selection store and the detectors built on
// them.
package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/chaindesc"
	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/ethrpc"
	"github.com/quantumauth-io/quantum-chain-config/log"
	"github.com/quantumauth-io/quantum-chain-config/metrics"
	"github.com/quantumauth-io/quantum-chain-config/netcache"
	"github.com/quantumauth-io/quantum-chain-config/permission"
	"github.com/quantumauth-io/quantum-chain-config/prober"
	"github.com/quantumauth-io/quantum-chain-config/proxy"
	"github.com/quantumauth-io/quantum-chain-config/selection"
	"github.com/quantumauth-io/quantum-chain-config/storage"
)

type options struct {
	registry   chainlist.Registry
	store      storage.Store
	logger     *zap.Logger
	registerer prometheus.Registerer
}

type Option func(*options)

// WithRegistry replaces the HTTP registry fetcher.
func WithRegistry(r chainlist.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithStore replaces the configured storage backend. The caller keeps
// ownership of it.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsRegisterer is used when metrics are enabled; the default is a
// private registry exposed through Gatherer.
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

type Service struct {
	cfg    Config
	logger *zap.Logger

	store      storage.Store
	closeStore func() error
	gatherer   prometheus.Gatherer

	cache     *netcache.Cache
	prober    *prober.Prober
	selection *selection.Store
	detector  *proxy.Detector
	clients   *chaindesc.ClientCache
}

// New builds the service and restores persisted selection state.
func New(ctx context.Context, cfg Config, opts ...Option) (*Service, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		if err := log.Configure(cfg.Log.Level, cfg.Log.JSON); err != nil {
			return nil, errors.Wrap(err, "configure logging")
		}
		logger = log.Logger()
	}

	s := &Service{cfg: cfg, logger: logger, clients: chaindesc.NewClientCache()}

	s.store, s.closeStore = o.store, func() error { return nil }
	if s.store == nil {
		store, closeFn, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, errors.Wrap(err, "open storage")
		}
		s.store, s.closeStore = store, closeFn
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Enabled {
		reg := o.registerer
		if reg == nil {
			r := prometheus.NewRegistry()
			reg, s.gatherer = r, r
		} else if g, ok := reg.(prometheus.Gatherer); ok {
			s.gatherer = g
		}
		p, err := metrics.NewPrometheus(reg)
		if err != nil {
			_ = s.closeStore()
			return nil, errors.Wrap(err, "register metrics")
		}
		recorder = p
	}

	registry := o.registry
	if registry == nil {
		registry = chainlist.NewFetcher(chainlist.FetcherConfig{
			URL:        cfg.Registry.URL,
			Timeout:    cfg.Registry.Timeout,
			MaxRetries: cfg.Registry.MaxRetries,
			MaxBackoff: cfg.Registry.MaxBackoff,
		}, logger.Named("registry"))
	}

	s.cache = netcache.New(registry, s.store,
		netcache.WithTTL(cfg.Cache.TTL),
		netcache.WithLogger(logger.Named("netcache")))

	dialer := ethrpc.NewDialer(cfg.Probe.HTTPTimeout)
	s.prober = prober.New(prober.HTTPDialer(dialer), prober.Config{
		ProbeTimeout:   cfg.Probe.Timeout,
		BlockTimeout:   cfg.Probe.BlockTimeout,
		RecheckTimeout: cfg.Probe.RecheckTimeout,
	}, recorder, logger.Named("prober"))

	s.selection = selection.NewStore(s.cache, s.prober, s.store, logger.Named("selection"))
	if err := s.selection.Load(ctx); err != nil {
		_ = s.closeStore()
		return nil, errors.Wrap(err, "restore selection")
	}

	s.detector = proxy.NewDetector(s.proxyScope, proxy.HTTPDialer(dialer), recorder, logger.Named("proxy"),
		proxy.WithCallTimeout(cfg.Proxy.CallTimeout))

	logger.Info("network configuration service ready",
		zap.String("storage", s.cfg.Storage.Backend),
		zap.Bool("metrics", cfg.Metrics.Enabled))
	return s, nil
}

func (s *Service) Close() error {
	s.clients.Close()
	return s.closeStore()
}

// Gatherer is nil unless metrics are enabled.
func (s *Service) Gatherer() prometheus.Gatherer { return s.gatherer }

func (s *Service) Selection() *selection.Store { return s.selection }

func (s *Service) proxyScope(context.Context) (proxy.Scope, error) {
	st := s.selection.State()
	if st.Selected == nil {
		return proxy.Scope{}, selection.ErrNoNetworkSelected
	}
	scope := proxy.Scope{ChainID: st.Selected.ChainID}
	if rpc, ok := st.CurrentRPC(); ok {
		scope.Selected = rpc.URL
	}
	for _, ep := range st.CurrentRPCs() {
		scope.RPCs = append(scope.RPCs, ep.URL)
	}
	if n, ok := chainlist.FindByChainID(s.cache.DefaultNetworks(), st.Selected.ChainID); ok {
		scope.Defaults = n.HTTPRPCURLs()
	}
	return scope, nil
}

func (s *Service) FetchNetworks(ctx context.Context) error {
	return s.selection.FetchNetworks(ctx)
}

func (s *Service) RefreshNetworks(ctx context.Context) error {
	return s.selection.RefreshNetworks(ctx)
}

func (s *Service) ForceUpdateNetworks(ctx context.Context) error {
	return s.selection.ForceUpdateNetworks(ctx)
}

// EnsureLoaded resolves the network list once no matter how many callers
// ask concurrently.
func (s *Service) EnsureLoaded(ctx context.Context) (netcache.Entry, error) {
	return s.cache.EnsureLoaded(ctx)
}

func (s *Service) ClearNetworkConfig(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *Service) Networks() []chainlist.Network {
	return s.selection.State().Networks
}

func (s *Service) FilteredNetworks() []chainlist.Network {
	return s.selection.FilteredNetworks()
}

func (s *Service) SetShowTestnets(ctx context.Context, show bool) error {
	return s.selection.SetShowTestnets(ctx, show)
}

func (s *Service) SetSearchQuery(ctx context.Context, query string) error {
	return s.selection.SetSearchQuery(ctx, query)
}

func (s *Service) DefaultNetworks() []chainlist.Network {
	return s.selection.DefaultNetworks()
}

func (s *Service) UpdateDefaultNetworks(ctx context.Context, networks []chainlist.Network) error {
	return s.selection.UpdateDefaultNetworks(ctx, networks)
}

func (s *Service) NetworkConfigInfo() (netcache.Info, bool) {
	return s.selection.NetworkConfigInfo()
}

func (s *Service) SelectNetwork(ctx context.Context, n chainlist.Network) error {
	return s.selection.SelectNetwork(ctx, n)
}

func (s *Service) SelectNetworkByChainID(ctx context.Context, chainID int64) error {
	return s.selection.SelectNetworkByChainID(ctx, chainID)
}

func (s *Service) SelectRPC(ctx context.Context, index int) error {
	return s.selection.SelectRPC(ctx, index)
}

func (s *Service) CurrentNetworkRPCs() []chainlist.RPCEndpoint {
	return s.selection.CurrentNetworkRPCs()
}

func (s *Service) CurrentRPC() (chainlist.RPCEndpoint, bool) {
	return s.selection.CurrentRPC()
}

// AddCustomRPC adds an endpoint to chainID. With verify set the endpoint must
// first answer eth_chainId with chainID.
func (s *Service) AddCustomRPC(ctx context.Context, chainID int64, ep chainlist.RPCEndpoint, verify bool) error {
	if verify {
		if err := s.prober.ValidateRPCURL(ctx, ep.URL, chainID); err != nil {
			return err
		}
	}
	return s.selection.AddCustomRPC(ctx, chainID, ep)
}

func (s *Service) RemoveCustomRPC(ctx context.Context, chainID int64, url string) error {
	return s.selection.RemoveCustomRPC(ctx, chainID, url)
}

func (s *Service) UpdateCustomRPC(ctx context.Context, chainID int64, oldURL string, ep chainlist.RPCEndpoint) error {
	return s.selection.UpdateCustomRPC(ctx, chainID, oldURL, ep)
}

func (s *Service) ValidateRPCURL(ctx context.Context, rawURL string, chainID int64) error {
	return s.prober.ValidateRPCURL(ctx, rawURL, chainID)
}

func (s *Service) TestCurrentRPCs(ctx context.Context) ([]prober.Result, error) {
	return s.selection.TestCurrentRPCs(ctx)
}

func (s *Service) SetPermission(ctx context.Context, chainID int64, patch permission.Patch) (permission.Record, error) {
	return s.selection.SetPermission(ctx, chainID, patch)
}

func (s *Service) GetPermission(chainID int64) permission.Record {
	return s.selection.GetPermission(chainID)
}

func (s *Service) ResetPermissions(ctx context.Context) error {
	return s.selection.ResetPermissions(ctx)
}

func (s *Service) ResetPermission(ctx context.Context, chainID int64) error {
	return s.selection.ResetPermission(ctx, chainID)
}

func (s *Service) BulkUpdatePermissions(ctx context.Context, records map[int64]permission.Record) error {
	return s.selection.BulkUpdatePermissions(ctx, records)
}

func (s *Service) PermissionStatus(chainID int64) permission.Status {
	return s.selection.PermissionStatus(chainID)
}

// RiskLevel is RiskHigh for chains that are not in the loaded list.
func (s *Service) RiskLevel(chainID int64) permission.Risk {
	n, ok := s.selection.State().Network(chainID)
	if !ok {
		return permission.RiskHigh
	}
	return permission.RiskLevel(n)
}

func (s *Service) DetectProxy(ctx context.Context, address common.Address) proxy.Info {
	return s.detector.DetectProxy(ctx, address)
}

// Descriptors converts the loaded list, skipping unusable records.
func (s *Service) Descriptors() []chaindesc.Descriptor {
	return chaindesc.ToChainDescriptors(s.selection.State().Networks, s.logger.Named("chaindesc"))
}

// CurrentDescriptor is the descriptor of the selected network, with the
// selected RPC moved to the front of its HTTP transports.
func (s *Service) CurrentDescriptor() (chaindesc.Descriptor, error) {
	n, ok := s.selection.SelectedNetwork()
	if !ok {
		return chaindesc.Descriptor{}, selection.ErrNoNetworkSelected
	}
	d, ok := chaindesc.ToChainDescriptor(n, s.logger.Named("chaindesc"))
	if !ok {
		return chaindesc.Descriptor{}, errors.Wrapf(chaindesc.ErrInvalidRecord, "chain %d", n.ChainID)
	}
	if rpc, ok := s.selection.CurrentRPC(); ok {
		http := []string{rpc.URL}
		for _, u := range d.RPC.HTTP {
			if u != rpc.URL {
				http = append(http, u)
			}
		}
		d.RPC.HTTP = http
	}
	return d, nil
}

// Client dials, or reuses, a go-ethereum client for the current selection.
func (s *Service) Client(ctx context.Context) (*ethclient.Client, error) {
	d, err := s.CurrentDescriptor()
	if err != nil {
		return nil, err
	}
	return s.clients.Get(ctx, d, d.RPC.HTTP[0])
}

// Reset clears the selection, overrides and the cached network list.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.selection.Reset(ctx); err != nil {
		return err
	}
	return s.cache.Clear(ctx)
}
