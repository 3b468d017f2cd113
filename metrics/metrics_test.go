package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.ObserveProbe(1, "https://mainnet.infura.io/v3/secret", "success", 120*time.Millisecond, 19000000)
	p.ObserveProbe(1, "https://mainnet.infura.io/v3/secret", "timeout", 10*time.Second, 0)
	p.ObserveProbe(1, "::bad::", "failure", time.Millisecond, 0)
	p.ObserveProxyDetection(1, "Transparent")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.probeCount.WithLabelValues("1", "mainnet.infura.io", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.probeCount.WithLabelValues("1", "mainnet.infura.io", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.probeCount.WithLabelValues("1", "unknown", "failure")))
	assert.Equal(t, 19000000.0, testutil.ToFloat64(p.rpcBlockHeight.WithLabelValues("1", "mainnet.infura.io")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.proxyDetections.WithLabelValues("1", "Transparent")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.probeLatency))
}

func TestPrometheusDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)
	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestNopRecorder(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveProbe(1, "https://x.io", "success", time.Second, 1)
	r.ObserveProxyDetection(1, "none")
}
