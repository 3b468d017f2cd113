// Package metrics exports probe and detection counters to prometheus.
package metrics

import (
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Recorder interface {
	ObserveProbe(chainID int64, rpcURL, outcome string, latency time.Duration, blockHeight uint64)
	ObserveProxyDetection(chainID int64, result string)
}

type Nop struct{}

func (Nop) ObserveProbe(int64, string, string, time.Duration, uint64) {}
func (Nop) ObserveProxyDetection(int64, string)                       {}

type Prometheus struct {
	probeCount      *prometheus.CounterVec
	probeLatency    *prometheus.HistogramVec
	rpcBlockHeight  *prometheus.GaugeVec
	proxyDetections *prometheus.CounterVec
}

// NewPrometheus builds and registers the collectors on reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		probeCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_config_rpc_probe_count",
				Help: "RPC health probes by chain id, rpc host and outcome",
			},
			[]string{"chain_id", "host", "outcome"},
		),
		probeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_config_rpc_probe_latency_seconds",
				Help:    "Latency of eth_chainId probes by chain id and rpc host",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"chain_id", "host"},
		),
		rpcBlockHeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chain_config_rpc_block_height",
				Help: "Latest block height observed per chain id and rpc host",
			},
			[]string{"chain_id", "host"},
		),
		proxyDetections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chain_config_proxy_detection_count",
				Help: "Proxy detections by chain id and result (proxy type, none or error)",
			},
			[]string{"chain_id", "result"},
		),
	}
	for _, c := range []prometheus.Collector{p.probeCount, p.probeLatency, p.rpcBlockHeight, p.proxyDetections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveProbe(chainID int64, rpcURL, outcome string, latency time.Duration, blockHeight uint64) {
	id := strconv.FormatInt(chainID, 10)
	host := hostLabel(rpcURL)
	p.probeCount.WithLabelValues(id, host, outcome).Inc()
	p.probeLatency.WithLabelValues(id, host).Observe(latency.Seconds())
	if blockHeight > 0 {
		p.rpcBlockHeight.WithLabelValues(id, host).Set(float64(blockHeight))
	}
}

func (p *Prometheus) ObserveProxyDetection(chainID int64, result string) {
	p.proxyDetections.WithLabelValues(strconv.FormatInt(chainID, 10), result).Inc()
}

// RPC URLs often embed api keys in the path; only the host is used as a label.
func hostLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
