package throttle

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vnykmshr/volqos/internal/testutil"
	"github.com/vnykmshr/volqos/pkg/metrics"
	"github.com/vnykmshr/volqos/pkg/scheduling/scheduler"
)

func newMetricsThrottle(t *testing.T, reg *prometheus.Registry, name string) (*MetricsThrottle, *scheduler.Manual) {
	t.Helper()
	m := scheduler.NewManual()
	mt, err := NewWithMetrics(Config{
		Name:     name,
		Capacity: 10,
		Average:  4,
		Periodic: m,
	}, metrics.Config{Enabled: true, Registry: reg})
	testutil.AssertNoError(t, err)
	t.Cleanup(mt.Shutdown)
	return mt, m
}

func TestMetricsThrottleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, m := newMetricsThrottle(t, reg, "vol1-iops")
	r := metrics.Shared(metrics.Config{Registry: reg})

	testutil.AssertEqual(t, mt.AcquireNonBlocking(6), true)
	testutil.AssertEqual(t, mt.ForceConsume(6), int64(-2))
	testutil.AssertEqual(t, mt.AcquireNonBlocking(1), false)

	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleGranted.WithLabelValues("vol1-iops", "try")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleDenied.WithLabelValues("vol1-iops", "try")), 1.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleUnits.WithLabelValues("vol1-iops", "force")), 6.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleAvailable.WithLabelValues("vol1-iops")), -2.0)

	m.Tick()
	testutil.AssertEqual(t, promtest.ToFloat64(r.RefillTicks.WithLabelValues("vol1-iops")), 2.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.RefillUnits.WithLabelValues("vol1-iops")), 4.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleAvailable.WithLabelValues("vol1-iops")), 2.0)

	blocked, err := mt.AcquireContext(context.Background(), 1)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, blocked, false)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleGranted.WithLabelValues("vol1-iops", "acquire")), 1.0)
}

func TestMetricsThrottleSharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, _ := newMetricsThrottle(t, reg, "vol1-iops")
	b, _ := newMetricsThrottle(t, reg, "vol1-bps")

	a.ForceConsume(1)
	b.ForceConsume(2)

	r := metrics.Shared(metrics.Config{Registry: reg})
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleAvailable.WithLabelValues("vol1-iops")), 9.0)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleAvailable.WithLabelValues("vol1-bps")), 8.0)
}

func TestMetricsThrottleDisable(t *testing.T) {
	reg := prometheus.NewRegistry()
	mt, _ := newMetricsThrottle(t, reg, "quiet")
	r := metrics.Shared(metrics.Config{Registry: reg})

	mt.DisableMetrics()
	testutil.AssertEqual(t, mt.MetricsEnabled(), false)
	mt.AcquireNonBlocking(1)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleRequests.WithLabelValues("quiet", "try")), 0.0)

	testutil.AssertNoError(t, mt.EnableMetrics(metrics.Config{Enabled: true}))
	testutil.AssertEqual(t, mt.MetricsEnabled(), true)
	mt.AcquireNonBlocking(1)
	testutil.AssertEqual(t, promtest.ToFloat64(r.ThrottleRequests.WithLabelValues("quiet", "try")), 1.0)
}
