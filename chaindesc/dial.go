package chaindesc

import (
	"context"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

var ErrNoTransport = errors.New("descriptor has no http transport")

// Dial connects to rpcURL, or to the first HTTP transport when rpcURL is empty,
// and verifies the endpoint reports the descriptor's chain id.
func (d Descriptor) Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" {
		if len(d.RPC.HTTP) == 0 {
			return nil, ErrNoTransport
		}
		rpcURL = d.RPC.HTTP[0]
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", rpcURL)
	}
	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "chain id from %s", rpcURL)
	}
	if got.Cmp(d.ChainID) != 0 {
		client.Close()
		return nil, errors.Errorf("rpc %s serves chain %s, expected %d", rpcURL, got, d.ID)
	}
	return client, nil
}

// ClientCache keeps one dialed client per chain id and RPC URL. Dials run
// outside the lock, one per key at a time.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*ethclient.Client
	dials   singleflight.Group
}

func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[string]*ethclient.Client)}
}

func cacheKey(chainID int64, url string) string {
	return strconv.FormatInt(chainID, 10) + "|" + url
}

func (c *ClientCache) Get(ctx context.Context, d Descriptor, rpcURL string) (*ethclient.Client, error) {
	if rpcURL == "" && len(d.RPC.HTTP) > 0 {
		rpcURL = d.RPC.HTTP[0]
	}
	key := cacheKey(d.ID, rpcURL)
	if cl, ok := c.lookup(key); ok {
		return cl, nil
	}

	v, err, _ := c.dials.Do(key, func() (interface{}, error) {
		if cl, ok := c.lookup(key); ok {
			return cl, nil
		}
		cl, err := d.Dial(ctx, rpcURL)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if existing, ok := c.clients[key]; ok {
			cl.Close()
			return existing, nil
		}
		c.clients[key] = cl
		return cl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ethclient.Client), nil
}

func (c *ClientCache) lookup(key string) (*ethclient.Client, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[key]
	return cl, ok
}

func (c *ClientCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *ClientCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, cl := range c.clients {
		cl.Close()
		delete(c.clients, k)
	}
}
