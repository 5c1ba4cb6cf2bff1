// Package throttle provides a token-bucket throttle refilled at a fixed
// cadence.
//
// A Throttle owns one bucket.Bucket and a scheduler.Periodic task that adds
// Average units every tick, never beyond Capacity. Callers take units with
// Acquire (blocking, FIFO), AcquireNonBlocking or ForceConsume, which may
// drive the balance negative; the deficit is repaid by later ticks.
//
// # Lifecycle
//
// A throttle moves through Created, Running, ShuttingDown and Stopped.
// Construction performs one refill synchronously and starts the periodic
// task. Shutdown cancels future ticks and waits for a tick in progress;
// it is idempotent and leaves blocked acquirers queued.
//
//	t, err := throttle.NewWithConfigSafe(throttle.Config{
//		Name:     "vol1-iops",
//		Capacity: 1000,
//		Average:  200,
//		Interval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	defer t.Shutdown()
//
//	t.Acquire(1)
//
// Tests and simulations pass a scheduler.Manual as Periodic and step the
// refill with Tick.
//
// # Metrics
//
// NewWithMetrics returns a MetricsThrottle that reports admission and
// refill activity through pkg/metrics.
package throttle
