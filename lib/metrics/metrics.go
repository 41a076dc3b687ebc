// Package metrics wraps github.com/armon/go-metrics with the fixed
// set of counters this proxy reports through UMCTL INFO: requests
// routed locally, forwarded, redirected, rejected for overload, and
// backend reconnect attempts.
//
// Grounded on Numenort-MyRedis's go.mod, which lists
// github.com/armon/go-metrics among its dependencies for exactly this
// kind of counter/gauge reporting; the teacher itself (
// chuimengdaoxizhou-go-redis) has no metrics layer at all, so this
// package is new rather than adapted, following the pack's own usage
// of the library instead of rolling a bespoke counter map.
package metrics

import (
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
)

var (
	mu      sync.RWMutex
	sink    = gometrics.NewInmemSink(10*time.Second, time.Minute)
	handle  *gometrics.Metrics
	started bool
)

// Init installs the process-wide metrics sink. Safe to call more than
// once; only the first call takes effect.
func Init(serviceName string) {
	mu.Lock()
	defer mu.Unlock()
	if started {
		return
	}
	cfg := gometrics.DefaultConfig(serviceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	m, err := gometrics.New(cfg, sink)
	if err == nil {
		handle = m
		gometrics.DefaultInmemSignal(sink)
	}
	started = true
}

// IncrCounter bumps a named counter by val. A no-op before Init.
func IncrCounter(name string, val float32) {
	mu.RLock()
	h := handle
	mu.RUnlock()
	if h == nil {
		return
	}
	h.IncrCounter([]string{name}, val)
}

// SetGauge records an instantaneous value for name.
func SetGauge(name string, val float32) {
	mu.RLock()
	h := handle
	mu.RUnlock()
	if h == nil {
		return
	}
	h.SetGauge([]string{name}, val)
}

// Snapshot returns the latest interval's counter totals and gauge
// values, keyed by metric name, for UMCTL INFO to render.
func Snapshot() map[string]float64 {
	out := make(map[string]float64)
	data := sink.Data()
	if len(data) == 0 {
		return out
	}
	interval := data[len(data)-1]
	interval.RLock()
	defer interval.RUnlock()
	for name, c := range interval.Counters {
		out[name] = c.Sum
	}
	for name, g := range interval.Gauges {
		out[name] = float64(g.Value)
	}
	return out
}
