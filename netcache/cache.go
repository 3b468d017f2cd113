// Package netcache keeps the network list fresh: memory, then persisted
// storage, then the remote registry, then the bundled defaults.
package netcache

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/storage"
)

const (
	DefaultTTL = 24 * time.Hour

	entryKey = "cache"
	loadKey  = "load"
)

type Source string

const (
	SourceRemote  Source = "remote"
	SourceDefault Source = "default"
	SourceMerged  Source = "merged"
)

// Entry is the persisted cache value. LastUpdate is wall clock epoch millis.
type Entry struct {
	Networks   []chainlist.Network `json:"networks"`
	LastUpdate int64               `json:"lastUpdate"`
	Source     Source              `json:"source"`
}

func (e Entry) Valid(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli()-e.LastUpdate < ttl.Milliseconds()
}

func (e Entry) Clone() Entry {
	e.Networks = chainlist.CloneNetworks(e.Networks)
	return e
}

type Info struct {
	Source     Source
	LastUpdate time.Time
	Networks   int
	Valid      bool
	Age        time.Duration
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDefaults replaces the bundled dataset loader.
func WithDefaults(fn func() ([]chainlist.Network, error)) Option {
	return func(c *Cache) { c.defaults = fn }
}

type Cache struct {
	registry chainlist.Registry
	ns       *storage.Namespace
	ttl      time.Duration
	now      func() time.Time
	defaults func() ([]chainlist.Network, error)
	logger   *zap.Logger

	mu    sync.RWMutex
	mem   *Entry
	group singleflight.Group
}

func New(registry chainlist.Registry, store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		registry: registry,
		ns:       storage.NewNamespace(store, storage.NamespaceNetworkConfig),
		ttl:      DefaultTTL,
		now:      time.Now,
		defaults: chainlist.DefaultNetworks,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get resolves the network list. It only fails when ctx is done before the
// list is available; registry failures degrade to a stale entry or the bundled defaults.
func (c *Cache) Get(ctx context.Context) (Entry, error) {
	if e, ok := c.memory(); ok && e.Valid(c.now(), c.ttl) {
		return e.Clone(), nil
	}
	return c.load(ctx)
}

// EnsureLoaded returns whatever is loaded, or performs a single shared load.
func (c *Cache) EnsureLoaded(ctx context.Context) (Entry, error) {
	if e, ok := c.memory(); ok {
		return e.Clone(), nil
	}
	return c.load(ctx)
}

// ForceUpdate always asks the registry and surfaces its error. The current
// cache is left untouched on failure.
func (c *Cache) ForceUpdate(ctx context.Context) (Entry, error) {
	networks, err := c.registry.Fetch(ctx)
	if err != nil {
		c.logger.Error("force update of network config failed", zap.Error(err))
		return Entry{}, err
	}
	e := c.store(ctx, networks, SourceRemote)
	return e.Clone(), nil
}

// Refresh drops the memory and persisted entries once, then resolves again.
func (c *Cache) Refresh(ctx context.Context) (Entry, error) {
	if err := c.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear network config before refresh", zap.Error(err))
	}
	return c.Get(ctx)
}

func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.mem = nil
	c.mu.Unlock()
	if err := c.ns.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear network config cache")
	}
	return nil
}

// DefaultNetworks returns the bundled dataset, or the minimal fallback when it is unreadable.
func (c *Cache) DefaultNetworks() []chainlist.Network {
	networks, err := c.defaults()
	if err != nil {
		c.logger.Error("failed to load default networks", zap.Error(err))
		if len(networks) == 0 {
			networks = chainlist.FallbackNetworks()
		}
	}
	return networks
}

// UpdateDefaultNetworks replaces the cached list with a caller supplied one.
func (c *Cache) UpdateDefaultNetworks(ctx context.Context, networks []chainlist.Network) Entry {
	e := c.store(ctx, chainlist.CloneNetworks(networks), SourceMerged)
	return e.Clone()
}

func (c *Cache) Info() (Info, bool) {
	e, ok := c.memory()
	if !ok {
		return Info{}, false
	}
	now := c.now()
	updated := time.UnixMilli(e.LastUpdate)
	return Info{
		Source:     e.Source,
		LastUpdate: updated,
		Networks:   len(e.Networks),
		Valid:      e.Valid(now, c.ttl),
		Age:        now.Sub(updated),
	}, true
}

func (c *Cache) memory() (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.mem == nil {
		return Entry{}, false
	}
	return *c.mem, true
}

// load runs one shared resolution per cache. The shared work is detached from
// the caller's cancellation; a caller that gives up gets its ctx error and
// nothing is stored on its behalf.
func (c *Cache) load(ctx context.Context) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	ch := c.group.DoChan(loadKey, func() (interface{}, error) {
		return c.resolve(context.WithoutCancel(ctx)), nil
	})
	select {
	case <-ctx.Done():
		c.logger.Debug("network config load abandoned by caller", zap.Error(ctx.Err()))
		return Entry{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Entry{}, r.Err
		}
		if r.Shared {
			c.logger.Debug("joined in-flight network config load")
		}
		return r.Val.(Entry).Clone(), nil
	}
}

func (c *Cache) resolve(ctx context.Context) Entry {
	now := c.now()

	var persisted *Entry
	var stored Entry
	switch err := c.ns.GetJSON(ctx, entryKey, &stored); {
	case err == nil:
		if stored.Valid(now, c.ttl) {
			c.setMemory(stored)
			c.logger.Debug("network config served from storage", zap.String("source", string(stored.Source)))
			return stored
		}
		persisted = &stored
	case errors.Is(err, storage.ErrNotFound):
	default:
		c.logger.Warn("failed to read persisted network config", zap.Error(err))
	}

	networks, err := c.registry.Fetch(ctx)
	if err == nil {
		return c.store(ctx, networks, SourceRemote)
	}
	c.logger.Warn("failed to fetch network registry, falling back", zap.Error(err))

	if persisted != nil {
		c.setMemory(*persisted)
		c.logger.Info("serving stale network config",
			zap.String("source", string(persisted.Source)),
			zap.Time("lastUpdate", time.UnixMilli(persisted.LastUpdate)))
		return *persisted
	}
	if mem, ok := c.memory(); ok {
		return mem
	}
	return c.store(ctx, c.DefaultNetworks(), SourceDefault)
}

func (c *Cache) store(ctx context.Context, networks []chainlist.Network, source Source) Entry {
	e := Entry{Networks: networks, LastUpdate: c.now().UnixMilli(), Source: source}
	if err := c.ns.SetJSON(ctx, entryKey, e); err != nil {
		c.logger.Warn("failed to persist network config", zap.Error(err))
	}
	c.setMemory(e)
	return e
}

func (c *Cache) setMemory(e Entry) {
	c.mu.Lock()
	c.mem = &e
	c.mu.Unlock()
}
