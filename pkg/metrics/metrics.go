package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for volqos components.
type Registry struct {
	// Throttle admission
	ThrottleRequests *prometheus.CounterVec
	ThrottleGranted  *prometheus.CounterVec
	ThrottleDenied   *prometheus.CounterVec
	ThrottleUnits    *prometheus.CounterVec
	ThrottleBlocked  *prometheus.CounterVec
	ThrottleWaitTime *prometheus.HistogramVec

	// Throttle state
	ThrottleAvailable *prometheus.GaugeVec
	ThrottleCapacity  *prometheus.GaugeVec
	ThrottleAverage   *prometheus.GaugeVec
	ThrottleWaiting   *prometheus.GaugeVec

	// Refill
	RefillTicks *prometheus.CounterVec
	RefillUnits *prometheus.CounterVec

	// Volume QoS configuration
	ConfigChanges *prometheus.CounterVec
	StepFailures  *prometheus.CounterVec
	WritesBlocked *prometheus.GaugeVec
}

// DefaultRegistry is the default metrics registry used by volqos components.
var DefaultRegistry *Registry

var (
	sharedMu sync.Mutex
	shared   = map[sharedKey]*Registry{}
)

type sharedKey struct {
	reg prometheus.Registerer
	ns  string
}

func init() {
	DefaultRegistry = Shared(Config{Registry: prometheus.DefaultRegisterer})
}

// Shared returns the registry for the registerer and namespace of cfg,
// creating it on first use. Components reporting into the same Prometheus
// registerer must go through Shared: registering the collectors twice panics.
// Constant labels are taken from the first call.
func Shared(cfg Config) *Registry {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	key := sharedKey{reg: cfg.Registry, ns: cfg.Namespace}

	sharedMu.Lock()
	defer sharedMu.Unlock()
	if r, ok := shared[key]; ok {
		return r
	}
	r := NewRegistryWithConfig(cfg)
	shared[key] = r
	return r
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return NewRegistryWithConfig(Config{Registry: reg})
}

// NewRegistryWithConfig creates a registry honouring the namespace and
// constant labels of cfg.
func NewRegistryWithConfig(cfg Config) *Registry {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	factory := promauto.With(reg)

	throttleLabels := []string{"throttle"}
	opLabels := []string{"throttle", "op"}

	return &Registry{
		ThrottleRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "requests_total",
				Help:        "Total number of admission requests",
				ConstLabels: cfg.Labels,
			},
			opLabels,
		),

		ThrottleGranted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "granted_total",
				Help:        "Total number of granted admission requests",
				ConstLabels: cfg.Labels,
			},
			opLabels,
		),

		ThrottleDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "denied_total",
				Help:        "Total number of requests that were refused or canceled before being granted, by op",
				ConstLabels: cfg.Labels,
			},
			opLabels,
		),

		ThrottleUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "units_total",
				Help:        "Total number of units consumed",
				ConstLabels: cfg.Labels,
			},
			opLabels,
		),

		ThrottleBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "blocked_total",
				Help:        "Total number of acquisitions that had to queue",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ThrottleWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "wait_duration_seconds",
				Help:        "Time spent queued for admission",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ThrottleAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "units_available",
				Help:        "Units currently available; negative while in debt",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ThrottleCapacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "capacity",
				Help:        "Configured burst capacity; 0 when throttling is disabled",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ThrottleAverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "average",
				Help:        "Units injected per refill tick",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ThrottleWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "throttle",
				Name:        "waiting",
				Help:        "Number of callers queued for admission",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		RefillTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "refill",
				Name:        "ticks_total",
				Help:        "Total number of refill ticks executed",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		RefillUnits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "refill",
				Name:        "units_total",
				Help:        "Total number of units added by refill ticks",
				ConstLabels: cfg.Labels,
			},
			throttleLabels,
		),

		ConfigChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "qos",
				Name:        "config_changes_total",
				Help:        "Total number of QoS configuration requests by result",
				ConstLabels: cfg.Labels,
			},
			[]string{"volume", "result"},
		),

		StepFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   "qos",
				Name:        "step_failures_total",
				Help:        "Total number of failed QoS configuration steps",
				ConstLabels: cfg.Labels,
			},
			[]string{"step"},
		),

		WritesBlocked: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   ns,
				Subsystem:   "volume",
				Name:        "writes_blocked",
				Help:        "1 while writes to the volume are blocked",
				ConstLabels: cfg.Labels,
			},
			[]string{"volume"},
		),
	}
}
