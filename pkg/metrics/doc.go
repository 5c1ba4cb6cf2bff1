// Package metrics provides Prometheus instrumentation for volqos components.
//
// The registry covers three areas:
//   - Throttle admission (requests, grants, refusals, units, wait times)
//   - Throttle state (available units, capacity, average, queue depth)
//   - Volume QoS configuration (config changes, failed steps, write blocking)
//
// # Quick Start
//
// Enable metrics by using the metrics-enabled constructors:
//
//	t, err := throttle.NewWithMetrics(throttle.Config{
//		Name:     "vol1-iops",
//		Capacity: 1000,
//		Average:  200,
//	}, metrics.DefaultConfig())
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":9090", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	cfg := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//
// # Available Metrics
//
// Throttle:
//
//   - volqos_throttle_requests_total{throttle,op}
//   - volqos_throttle_granted_total{throttle,op}
//   - volqos_throttle_denied_total{throttle,op}
//   - volqos_throttle_units_total{throttle,op}
//   - volqos_throttle_blocked_total{throttle}
//   - volqos_throttle_wait_duration_seconds{throttle}
//   - volqos_throttle_units_available{throttle}
//   - volqos_throttle_capacity{throttle}
//   - volqos_throttle_average{throttle}
//   - volqos_throttle_waiting{throttle}
//
// Refill:
//
//   - volqos_refill_ticks_total{throttle}
//   - volqos_refill_units_total{throttle}
//
// Configuration:
//
//   - volqos_qos_config_changes_total{volume,result}
//   - volqos_qos_step_failures_total{step}
//   - volqos_volume_writes_blocked{volume}
package metrics
