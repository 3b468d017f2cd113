package service

import (
	_ "embed"
	"time"

	"github.com/quantumauth-io/quantum-chain-config/config"
	"github.com/quantumauth-io/quantum-chain-config/storage"
)

//go:embed config.yaml
var defaultConfigYAML []byte

type Config struct {
	Log      LogConfig
	Registry RegistryConfig
	Cache    CacheConfig
	Probe    ProbeConfig
	Proxy    ProxyConfig
	Storage  storage.Config
	Metrics  MetricsConfig
}

type LogConfig struct {
	Level string
	JSON  bool
}

type RegistryConfig struct {
	URL        string
	Timeout    time.Duration
	MaxRetries int32
	MaxBackoff time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

type ProbeConfig struct {
	Timeout        time.Duration
	BlockTimeout   time.Duration
	RecheckTimeout time.Duration
	// HTTPTimeout is the transport ceiling shared by every JSON-RPC request.
	HTTPTimeout time.Duration
}

type ProxyConfig struct {
	// CallTimeout bounds each slot read and view call during detection.
	CallTimeout time.Duration
}

type MetricsConfig struct {
	Enabled bool
}

// LoadConfig reads config.yaml from paths, falling back to the embedded
// defaults. Environment variables such as STORAGE_BACKEND override both.
func LoadConfig(paths ...string) (*Config, error) {
	return config.ParseConfigWithEmbedded[Config](paths, defaultConfigYAML)
}

// DefaultConfig is the embedded configuration with environment overrides.
func DefaultConfig() (*Config, error) {
	return LoadConfig()
}
