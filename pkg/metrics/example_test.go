package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// Example_basicUsage demonstrates basic metrics configuration.
func Example_basicUsage() {
	// Create a separate registry for this example
	testRegistry := prometheus.NewRegistry()
	registry := NewRegistry(testRegistry)

	registry.ThrottleRequests.WithLabelValues("vol1-iops", "acquire").Add(10)
	registry.ThrottleGranted.WithLabelValues("vol1-iops", "acquire").Add(8)
	registry.ThrottleDenied.WithLabelValues("vol1-iops", "try").Add(2)
	registry.ThrottleCapacity.WithLabelValues("vol1-iops").Set(100)

	fmt.Println(promtest.ToFloat64(registry.ThrottleGranted.WithLabelValues("vol1-iops", "acquire")))
	fmt.Println(promtest.ToFloat64(registry.ThrottleCapacity.WithLabelValues("vol1-iops")))

	// Output:
	// 8
	// 100
}

// Example_customNamespace demonstrates overriding the namespace and adding constant labels.
func Example_customNamespace() {
	reg := prometheus.NewRegistry()
	registry := NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "storage",
		Labels:    prometheus.Labels{"cluster": "east"},
	})

	registry.RefillTicks.WithLabelValues("vol1-bps").Inc()

	families, _ := reg.Gather()
	for _, f := range families {
		fmt.Println(f.GetName())
	}

	// Output:
	// storage_refill_ticks_total
}

// Example_metricsServer demonstrates setting up a metrics HTTP server.
func Example_metricsServer() {
	// In a real application, you would start a metrics server:
	//
	// http.Handle("/metrics", promhttp.Handler())
	// log.Fatal(http.ListenAndServe(":9090", nil))
	//
	// Available metrics include:
	// - volqos_throttle_requests_total{throttle="vol1-iops",op="acquire"}
	// - volqos_throttle_units_available{throttle="vol1-iops"}
	// - volqos_refill_ticks_total{throttle="vol1-iops"}
	// - volqos_qos_config_changes_total{volume="vol1",result="ok"}

	fmt.Println("Metrics available at /metrics endpoint")
	fmt.Println("See cmd/qosctl watch for a complete setup")

	// Output:
	// Metrics available at /metrics endpoint
	// See cmd/qosctl watch for a complete setup
}
