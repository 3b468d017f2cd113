// Package prober checks RPC endpoints for liveness and chain identity and
// ranks them for selection.
package prober

import (
	"context"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/chainlist"
	"github.com/quantumauth-io/quantum-chain-config/ethrpc"
	"github.com/quantumauth-io/quantum-chain-config/metrics"
	"github.com/quantumauth-io/quantum-chain-config/validate"
)

const (
	DefaultProbeTimeout   = 10 * time.Second
	DefaultBlockTimeout   = 5 * time.Second
	DefaultRecheckTimeout = 5 * time.Second
)

var ErrChainIDMismatch = errors.New("chain id mismatch")

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeTimeout Outcome = "timeout"
)

// Result is the transient outcome of probing one URL.
type Result struct {
	URL         string        `json:"url"`
	Outcome     Outcome       `json:"outcome"`
	Latency     time.Duration `json:"-"`
	LatencyMs   int64         `json:"latencyMs"`
	BlockHeight *uint64       `json:"blockHeight,omitempty"`
	Err         string        `json:"error,omitempty"`
}

// Client is the part of an RPC client the prober needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type DialFunc func(url string) Client

// HTTPDialer adapts an ethrpc.Dialer.
func HTTPDialer(d *ethrpc.Dialer) DialFunc {
	return func(url string) Client { return d.Dial(url) }
}

type Config struct {
	ProbeTimeout   time.Duration
	BlockTimeout   time.Duration
	RecheckTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = DefaultBlockTimeout
	}
	if c.RecheckTimeout <= 0 {
		c.RecheckTimeout = DefaultRecheckTimeout
	}
}

type Prober struct {
	dial     DialFunc
	cfg      Config
	recorder metrics.Recorder
	logger   *zap.Logger
}

func New(dial DialFunc, cfg Config, recorder metrics.Recorder, logger *zap.Logger) *Prober {
	cfg.setDefaults()
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{dial: dial, cfg: cfg, recorder: recorder, logger: logger}
}

// TestEndpoints probes every distinct endpoint URL concurrently and returns
// results keyed by URL. Probe failures are outcomes, never errors.
func (p *Prober) TestEndpoints(ctx context.Context, network chainlist.Network, endpoints []chainlist.RPCEndpoint) map[string]Result {
	results := make(map[string]Result, len(endpoints))
	var mu sync.Mutex
	var wg conc.WaitGroup

	seen := make(map[string]struct{}, len(endpoints))
	for _, ep := range endpoints {
		if _, dup := seen[ep.URL]; dup {
			continue
		}
		seen[ep.URL] = struct{}{}
		url := ep.URL
		wg.Go(func() {
			r := p.probe(ctx, network.ChainID, url, p.cfg.ProbeTimeout, true)
			mu.Lock()
			results[url] = r
			mu.Unlock()
		})
	}
	wg.Wait()

	healthy := 0
	for _, r := range results {
		if r.Outcome == OutcomeSuccess {
			healthy++
		}
	}
	p.logger.Info("probed rpc endpoints",
		zap.Int64("chainId", network.ChainID),
		zap.Int("endpoints", len(results)),
		zap.Int("healthy", healthy))
	return results
}

// TestAndRank probes endpoints and returns them best first.
func (p *Prober) TestAndRank(ctx context.Context, network chainlist.Network, endpoints []chainlist.RPCEndpoint) []Result {
	return Rank(endpoints, p.TestEndpoints(ctx, network, endpoints))
}

// Recheck is the lightweight eth_chainId re-check of a single URL.
func (p *Prober) Recheck(ctx context.Context, network chainlist.Network, url string) Result {
	return p.probe(ctx, network.ChainID, url, p.cfg.RecheckTimeout, false)
}

// ValidateRPCURL checks the URL shape and that the endpoint serves chainID.
func (p *Prober) ValidateRPCURL(ctx context.Context, rawURL string, chainID int64) error {
	u, err := validate.RPCURL(rawURL)
	if err != nil {
		return err
	}
	r := p.probe(ctx, chainID, u, p.cfg.ProbeTimeout, false)
	if r.Outcome != OutcomeSuccess {
		return errors.Errorf("rpc %s is not usable: %s (%s)", u, r.Err, r.Outcome)
	}
	return nil
}

func (p *Prober) probe(ctx context.Context, chainID int64, url string, timeout time.Duration, withBlock bool) Result {
	client := p.dial(url)
	res := Result{URL: url, Outcome: OutcomePending}

	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	got, err := client.ChainID(callCtx)
	cancel()
	res.Latency = time.Since(start)
	res.LatencyMs = res.Latency.Milliseconds()

	switch {
	case err != nil:
		res.Outcome = classify(err)
		res.Err = err.Error()
	case got == nil || got.Cmp(big.NewInt(chainID)) != 0:
		res.Outcome = OutcomeFailure
		res.Err = errors.Wrapf(ErrChainIDMismatch, "expected %d, got %s", chainID, fmtChainID(got)).Error()
	default:
		res.Outcome = OutcomeSuccess
	}

	if res.Outcome == OutcomeSuccess && withBlock {
		blockCtx, cancel := context.WithTimeout(ctx, p.cfg.BlockTimeout)
		height, err := client.BlockNumber(blockCtx)
		cancel()
		if err != nil {
			p.logger.Debug("block number probe failed", zap.String("url", url), zap.Error(err))
		} else {
			res.BlockHeight = &height
		}
	}

	var height uint64
	if res.BlockHeight != nil {
		height = *res.BlockHeight
	}
	p.recorder.ObserveProbe(chainID, url, string(res.Outcome), res.Latency, height)
	if res.Outcome == OutcomeSuccess {
		p.logger.Debug("rpc probe ok", zap.Int64("chainId", chainID), zap.String("url", url),
			zap.Duration("latency", res.Latency), zap.Uint64("block", height))
	} else {
		p.logger.Warn("rpc probe failed", zap.Int64("chainId", chainID), zap.String("url", url),
			zap.String("outcome", string(res.Outcome)), zap.String("error", res.Err))
	}
	return res
}

func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeFailure
}

func fmtChainID(id *big.Int) string {
	if id == nil {
		return "nothing"
	}
	return fmt.Sprint(id)
}
