package chaindesc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/ethrpc/ethrpctest"
)

var polygon = chainlist.Network{
	ChainID:   137,
	Name:      "Polygon Mainnet",
	ShortName: "pol",
	RPCURLs:   []string{"wss://polygon.example.org", "https://polygon-rpc.com", "https://rpc.ankr.com/polygon"},
	BlockExplorers: []chainlist.Explorer{
		{Name: "blockscout", URL: "https://polygon.blockscout.com"},
		{Name: "polygonscan", URL: "https://polygonscan.com", Standard: "EIP3091"},
	},
}

func TestToChainDescriptor(t *testing.T) {
	d, ok := ToChainDescriptor(polygon, nil)
	require.True(t, ok)

	assert.Equal(t, int64(137), d.ID)
	assert.Equal(t, int64(137), d.ChainID.Int64())
	assert.Equal(t, "pol", d.Network)
	assert.Equal(t, []string{"https://polygon-rpc.com", "https://rpc.ankr.com/polygon"}, d.RPC.HTTP)
	assert.Equal(t, []string{"wss://polygon.example.org"}, d.RPC.WebSocket)
	assert.Equal(t, chainlist.NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18}, d.NativeCurrency)
	require.NotNil(t, d.Explorers.Default)
	assert.Equal(t, "blockscout", d.Explorers.Default.Name)
	require.NotNil(t, d.Explorers.Etherscan)
	assert.Equal(t, "https://polygonscan.com", d.Explorers.Etherscan.URL)
}

func TestToChainDescriptorIsIdempotent(t *testing.T) {
	a, ok := ToChainDescriptor(polygon, nil)
	require.True(t, ok)
	b, ok := ToChainDescriptor(polygon, nil)
	require.True(t, ok)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Name, b.Name)
	assert.ElementsMatch(t, a.RPC.HTTP, b.RPC.HTTP)
}

func TestToChainDescriptorRejects(t *testing.T) {
	tests := []struct {
		name string
		n    chainlist.Network
	}{
		{"zero chain id", chainlist.Network{Name: "x", RPCURLs: []string{"https://x.io"}}},
		{"negative chain id", chainlist.Network{ChainID: -1, Name: "x", RPCURLs: []string{"https://x.io"}}},
		{"empty name", chainlist.Network{ChainID: 5, Name: "  ", RPCURLs: []string{"https://x.io"}}},
		{"websocket only", chainlist.Network{ChainID: 5, Name: "x", RPCURLs: []string{"wss://x.io"}}},
		{"no rpc", chainlist.Network{ChainID: 5, Name: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := ToChainDescriptor(tt.n, nil)
			assert.False(t, ok)
			assert.ErrorIs(t, Validate(tt.n), ErrInvalidRecord)
		})
	}
}

func TestToChainDescriptorsSkipsInvalid(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	out := ToChainDescriptors([]chainlist.Network{
		{ChainID: 0, Name: "broken"},
		polygon,
		{ChainID: 10, Name: "OP Mainnet", RPCURLs: []string{"https://mainnet.optimism.io"},
			NativeCurrency: chainlist.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18}},
	}, zap.New(core))
	require.Len(t, out, 2)
	skipped := logs.FilterMessage("skipping network record").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, int64(0), skipped[0].ContextMap()["chainId"])
	assert.Equal(t, int64(137), out[0].ID)
	assert.Equal(t, "Ether", out[1].NativeCurrency.Name)
	assert.Nil(t, out[1].Explorers.Default)
}

func TestDialVerifiesChainID(t *testing.T) {
	srv := ethrpctest.NewServer().Result("eth_chainId", "0x89")
	defer srv.Close()
	other := ethrpctest.NewServer().Result("eth_chainId", "0x1")
	defer other.Close()

	d, ok := ToChainDescriptor(chainlist.Network{ChainID: 137, Name: "Polygon", RPCURLs: []string{srv.URL}}, nil)
	require.True(t, ok)

	cl, err := d.Dial(context.Background(), "")
	require.NoError(t, err)
	cl.Close()

	_, err = d.Dial(context.Background(), other.URL)
	assert.ErrorContains(t, err, "expected 137")

	cache := NewClientCache()
	defer cache.Close()
	first, err := cache.Get(context.Background(), d, srv.URL)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), d, "")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestClientCacheDialsOutsideLock(t *testing.T) {
	slow := ethrpctest.NewServer().Result("eth_chainId", "0x89").Delay(500 * time.Millisecond)
	defer slow.Close()
	fast := ethrpctest.NewServer().Result("eth_chainId", "0x1")
	defer fast.Close()

	slowDesc, ok := ToChainDescriptor(chainlist.Network{ChainID: 137, Name: "Polygon", RPCURLs: []string{slow.URL}}, nil)
	require.True(t, ok)
	fastDesc, ok := ToChainDescriptor(chainlist.Network{ChainID: 1, Name: "Ethereum", RPCURLs: []string{fast.URL}}, nil)
	require.True(t, ok)

	cache := NewClientCache()
	defer cache.Close()

	var wg sync.WaitGroup
	clients := make([]*ethclient.Client, 4)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cl, err := cache.Get(context.Background(), slowDesc, "")
			assert.NoError(t, err)
			clients[i] = cl
		}(i)
	}
	require.Eventually(t, func() bool { return slow.Calls() >= 1 }, time.Second, time.Millisecond)

	start := time.Now()
	_, err := cache.Get(context.Background(), fastDesc, "")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	wg.Wait()
	for _, cl := range clients[1:] {
		assert.Same(t, clients[0], cl)
	}
	assert.Equal(t, int64(1), slow.Calls())
	assert.Equal(t, 2, cache.Len())
}
