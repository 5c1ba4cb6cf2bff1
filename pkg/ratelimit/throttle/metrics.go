package throttle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/volqos/pkg/metrics"
)

// MetricsThrottle wraps a Throttle with Prometheus metrics collection.
type MetricsThrottle struct {
	*Throttle

	registry atomic.Pointer[metrics.Registry]
	enabled  atomic.Bool
}

var _ metrics.Instrumentable = (*MetricsThrottle)(nil)

// NewWithMetrics creates a new Throttle with metrics enabled. If
// metricsConfig.Registry is nil a separate Prometheus registry is used.
// Throttles sharing a registerer share its collectors and are told apart by
// their Name.
func NewWithMetrics(config Config, metricsConfig metrics.Config) (*MetricsThrottle, error) {
	if metricsConfig.Registry == nil {
		metricsConfig.Registry = prometheus.NewRegistry()
	}

	mt := &MetricsThrottle{}
	mt.registry.Store(metrics.Shared(metricsConfig))
	mt.enabled.Store(metricsConfig.Enabled)

	t, err := newThrottle(config, mt.observeRefill)
	if err != nil {
		return nil, err
	}
	mt.Throttle = t
	mt.observeState(t)
	return mt, nil
}

// observeRefill runs on the refill goroutine, so it works from the
// throttle it is handed rather than from mt.Throttle.
func (mt *MetricsThrottle) observeRefill(t *Throttle, added int64) {
	if !mt.enabled.Load() {
		return
	}
	reg := mt.registry.Load()
	reg.RefillTicks.WithLabelValues(t.name).Inc()
	if added > 0 {
		reg.RefillUnits.WithLabelValues(t.name).Add(float64(added))
	}
	mt.observeState(t)
}

func (mt *MetricsThrottle) observeState(t *Throttle) {
	if !mt.enabled.Load() {
		return
	}
	reg := mt.registry.Load()
	reg.ThrottleAvailable.WithLabelValues(t.name).Set(float64(t.Available()))
	reg.ThrottleCapacity.WithLabelValues(t.name).Set(float64(t.Capacity()))
	reg.ThrottleAverage.WithLabelValues(t.name).Set(float64(t.Average()))
	reg.ThrottleWaiting.WithLabelValues(t.name).Set(float64(t.Waiting()))
}

func (mt *MetricsThrottle) observeRequest(op string) *metrics.Registry {
	if !mt.enabled.Load() {
		return nil
	}
	reg := mt.registry.Load()
	reg.ThrottleRequests.WithLabelValues(mt.name, op).Inc()
	return reg
}

// Acquire blocks until units can be taken and reports whether it had to block.
func (mt *MetricsThrottle) Acquire(units int64) bool {
	blocked, _ := mt.AcquireContext(context.Background(), units)
	return blocked
}

// AcquireContext is Acquire with cancellation.
func (mt *MetricsThrottle) AcquireContext(ctx context.Context, units int64) (bool, error) {
	start := time.Now()
	reg := mt.observeRequest("acquire")

	blocked, err := mt.Throttle.AcquireContext(ctx, units)

	if reg != nil {
		if blocked {
			reg.ThrottleBlocked.WithLabelValues(mt.name).Inc()
			reg.ThrottleWaitTime.WithLabelValues(mt.name).Observe(time.Since(start).Seconds())
		}
		if err == nil {
			reg.ThrottleGranted.WithLabelValues(mt.name, "acquire").Inc()
			reg.ThrottleUnits.WithLabelValues(mt.name, "acquire").Add(float64(units))
		} else {
			reg.ThrottleDenied.WithLabelValues(mt.name, "acquire").Inc()
		}
		mt.observeState(mt.Throttle)
	}
	return blocked, err
}

// AcquireNonBlocking takes units only if they are available now and nobody
// is queued.
func (mt *MetricsThrottle) AcquireNonBlocking(units int64) bool {
	reg := mt.observeRequest("try")

	granted := mt.Throttle.AcquireNonBlocking(units)

	if reg != nil {
		if granted {
			reg.ThrottleGranted.WithLabelValues(mt.name, "try").Inc()
			reg.ThrottleUnits.WithLabelValues(mt.name, "try").Add(float64(units))
		} else {
			reg.ThrottleDenied.WithLabelValues(mt.name, "try").Inc()
		}
		mt.observeState(mt.Throttle)
	}
	return granted
}

// ForceConsume takes units unconditionally and returns the remaining count.
func (mt *MetricsThrottle) ForceConsume(units int64) int64 {
	reg := mt.observeRequest("force")

	remaining := mt.Throttle.ForceConsume(units)

	if reg != nil {
		reg.ThrottleGranted.WithLabelValues(mt.name, "force").Inc()
		reg.ThrottleUnits.WithLabelValues(mt.name, "force").Add(float64(units))
		mt.observeState(mt.Throttle)
	}
	return remaining
}

// Release returns units and returns the remaining count.
func (mt *MetricsThrottle) Release(units int64) int64 {
	remaining := mt.Throttle.Release(units)
	mt.observeState(mt.Throttle)
	return remaining
}

// SetCapacity changes the burst capacity without refilling.
func (mt *MetricsThrottle) SetCapacity(capacity int64) {
	mt.Throttle.SetCapacity(capacity)
	mt.observeState(mt.Throttle)
}

// SetAverage changes the per-tick refill.
func (mt *MetricsThrottle) SetAverage(average int64) {
	mt.Throttle.SetAverage(average)
	mt.observeState(mt.Throttle)
}

// Reset refills the bucket, optionally to a new capacity.
func (mt *MetricsThrottle) Reset(capacity int64) {
	mt.Throttle.Reset(capacity)
	mt.observeState(mt.Throttle)
}

// EnableMetrics enables metrics collection.
func (mt *MetricsThrottle) EnableMetrics(config metrics.Config) error {
	if config.Registry != nil {
		mt.registry.Store(metrics.Shared(config))
	}
	mt.enabled.Store(config.Enabled)
	return nil
}

// DisableMetrics disables metrics collection.
func (mt *MetricsThrottle) DisableMetrics() {
	mt.enabled.Store(false)
}

// MetricsEnabled returns true if metrics are currently enabled.
func (mt *MetricsThrottle) MetricsEnabled() bool {
	return mt.enabled.Load()
}
