package chainlist

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quantumauth-io/quantum-chain-config/retry"
)

const DefaultRegistryURL = "https://chainlist.org/rpcs.json"

// ErrRegistryFetch wraps every failure to obtain or parse the remote registry.
var ErrRegistryFetch = errors.New("registry fetch failed")

// Registry is anything that can produce the canonical network list.
type Registry interface {
	Fetch(ctx context.Context) ([]Network, error)
}

type FetcherConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int32
	MaxBackoff time.Duration
}

type Fetcher struct {
	url    string
	http   *http.Client
	retry  *retry.Config
	logger *zap.Logger
}

func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.URL == "" {
		cfg.URL = DefaultRegistryURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Fetcher{
		url:    cfg.URL,
		http:   &http.Client{Timeout: cfg.Timeout},
		retry:  retry.BoundedConfig(cfg.MaxRetries, cfg.MaxBackoff),
		logger: logger,
	}
}

type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string {
	return "unexpected status " + e.status
}

func (f *Fetcher) Fetch(ctx context.Context) ([]Network, error) {
	start := time.Now()
	body, err := retry.Do(ctx, f.retry, f.get, shouldRetry, "fetch network registry")
	if err != nil {
		f.logger.Warn("registry fetch failed", zap.String("url", f.url), zap.Error(err))
		return nil, errors.Wrapf(ErrRegistryFetch, "%s: %v", f.url, err)
	}

	networks, err := ParseRegistry(body, f.logger)
	if err != nil {
		return nil, errors.Wrapf(ErrRegistryFetch, "%s: %v", f.url, err)
	}
	f.logger.Info("fetched network registry",
		zap.String("url", f.url),
		zap.Int("networks", len(networks)),
		zap.Duration("took", time.Since(start)))
	return networks, nil
}

func (f *Fetcher) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status}
	}
	return io.ReadAll(resp.Body)
}

// 4xx answers will not change on retry.
func shouldRetry(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
