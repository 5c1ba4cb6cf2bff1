package volume

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/common/validation"
	"github.com/vnykmshr/volqos/pkg/metrics"
	"github.com/vnykmshr/volqos/pkg/ratelimit/throttle"
	"github.com/vnykmshr/volqos/pkg/scheduling/scheduler"
)

// Throttle is the part of a throttle.Throttle a Gate drives.
type Throttle interface {
	AcquireContext(ctx context.Context, units int64) (bool, error)
	AcquireNonBlocking(units int64) bool
	ForceConsume(units int64) int64
	Release(units int64) int64
	Capacity() int64
	SetCapacity(capacity int64)
	Average() int64
	SetAverage(average int64)
	Reset(capacity int64)
	Shutdown()
}

var (
	_ Throttle = (*throttle.Throttle)(nil)
	_ Throttle = (*throttle.MetricsThrottle)(nil)
)

// Config holds configuration options for creating a new Gate.
type Config struct {
	// Name identifies the volume. Throttles are named Name+"-iops" and
	// Name+"-bps".
	Name string

	// Limits is the initial QoS configuration.
	Limits Limits

	// Interval between refill ticks. Defaults to scheduler.DefaultInterval.
	Interval time.Duration

	// NewPeriodic, if set, supplies the refill runner for each throttle.
	// dim is "iops" or "bps".
	NewPeriodic func(dim string) scheduler.Periodic

	// Metrics, if set, instruments both throttles and the write-block gauge.
	Metrics *metrics.Config

	// Logger receives gate records. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Gate admits I/O to one volume under an IOPS and a BPS throttle and can
// hold back writes while its configuration changes.
type Gate struct {
	name     string
	logger   *slog.Logger
	registry *metrics.Registry

	iops Throttle
	bps  Throttle

	mu     sync.Mutex
	limits Limits
	writes writeState

	closeOnce sync.Once
}

// New creates a Gate for the named volume with the given limits.
func New(name string, limits Limits) (*Gate, error) {
	return NewWithConfig(Config{Name: name, Limits: limits})
}

// NewWithConfig creates a Gate with custom configuration.
func NewWithConfig(cfg Config) (*Gate, error) {
	if err := validation.ValidateNotEmpty("volume", "name", cfg.Name); err != nil {
		return nil, err
	}
	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	if cfg.Limits.Type == "" {
		cfg.Limits.Type = OpAll
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gate{
		name:   cfg.Name,
		logger: cfg.Logger.With("volume", cfg.Name),
		limits: cfg.Limits,
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		mc := *cfg.Metrics
		if mc.Registry == nil {
			mc.Registry = prometheus.DefaultRegisterer
		}
		cfg.Metrics = &mc
		g.registry = metrics.Shared(mc)
	}

	var err error
	g.iops, err = newThrottle(cfg, "iops", cfg.Limits.IOPSBurst, cfg.Limits.IOPSAvg)
	if err != nil {
		return nil, err
	}
	g.bps, err = newThrottle(cfg, "bps", cfg.Limits.BPSBurst, cfg.Limits.BPSAvg)
	if err != nil {
		g.iops.Shutdown()
		return nil, err
	}

	g.logger.Info("volume gate created", "limits", cfg.Limits.String())
	return g, nil
}

func newThrottle(cfg Config, dim string, burst, avg uint64) (Throttle, error) {
	tc := throttle.Config{
		Name:     cfg.Name + "-" + dim,
		Capacity: int64(burst),
		Average:  int64(avg),
		Interval: cfg.Interval,
		Logger:   cfg.Logger,
	}
	if cfg.NewPeriodic != nil {
		tc.Periodic = cfg.NewPeriodic(dim)
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		return throttle.NewWithMetrics(tc, *cfg.Metrics)
	}
	return throttle.NewWithConfigSafe(tc)
}

// Name returns the volume name.
func (g *Gate) Name() string {
	return g.name
}

// Limits returns the limits currently in force.
func (g *Gate) Limits() Limits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limits
}

// Apply reconfigures both throttles. A changed burst refills the throttle
// to the new capacity; a zero burst disables it and releases its waiters.
// Averages take effect on the next refill tick.
func (g *Gate) Apply(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	if limits.Type == "" {
		limits.Type = OpAll
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	apply(g.iops, g.limits.IOPSBurst, limits.IOPSBurst, limits.IOPSAvg)
	apply(g.bps, g.limits.BPSBurst, limits.BPSBurst, limits.BPSAvg)

	old := g.limits
	g.limits = limits
	g.logger.Info("qos limits applied", "old", old.String(), "new", limits.String())
	return nil
}

func apply(t Throttle, oldBurst, burst, avg uint64) {
	t.SetAverage(int64(avg))
	if burst == oldBurst {
		return
	}
	if burst == 0 {
		t.SetCapacity(0)
	}
	t.Reset(int64(burst))
}

// Admit waits until a request of kind op and size bytes may proceed. The
// returned done func must be called once the request has completed; it
// ends the in-flight accounting used by BlockWrites.
//
// A request larger than the BPS burst waits for a single unit and is then
// charged in full, leaving the bucket in debt.
func (g *Gate) Admit(ctx context.Context, op Op, bytes int) (done func(), err error) {
	if op == Write {
		if err := g.waitWritable(ctx); err != nil {
			return nil, err
		}
	}

	if err := g.throttle(ctx, op, int64(bytes)); err != nil {
		return nil, err
	}

	if op != Write {
		return func() {}, nil
	}
	return g.beginWrite(ctx)
}

func (g *Gate) throttle(ctx context.Context, op Op, bytes int64) error {
	g.mu.Lock()
	typ := g.limits.Type
	g.mu.Unlock()

	if !typ.Matches(op) {
		return nil
	}

	if _, err := g.iops.AcquireContext(ctx, 1); err != nil {
		return err
	}
	if bytes <= 0 {
		return nil
	}

	if burst := g.bps.Capacity(); burst > 0 && bytes > burst {
		if _, err := g.bps.AcquireContext(ctx, 1); err != nil {
			g.iops.Release(1)
			return err
		}
		remaining := g.bps.ForceConsume(bytes - 1)
		g.logger.Debug("oversized request charged", "op", op.String(), "bytes", bytes, "burst", burst, "remaining", remaining)
		return nil
	}

	if _, err := g.bps.AcquireContext(ctx, bytes); err != nil {
		// The request is not admitted; its operation is not charged.
		g.iops.Release(1)
		return err
	}
	return nil
}

// TryAdmit is the non-blocking form of Admit. It fails with
// errors.ErrWritesBlocked while writes are blocked and with
// errors.ErrRateLimited when either throttle would have to wait; in both
// cases nothing is charged.
func (g *Gate) TryAdmit(op Op, bytes int) (done func(), err error) {
	if op == Write {
		end, ok := g.tryBeginWrite()
		if !ok {
			return nil, qoserrors.ErrWritesBlocked
		}
		if err := g.tryThrottle(op, int64(bytes)); err != nil {
			end()
			return nil, err
		}
		return end, nil
	}

	if err := g.tryThrottle(op, int64(bytes)); err != nil {
		return nil, err
	}
	return func() {}, nil
}

func (g *Gate) tryThrottle(op Op, bytes int64) error {
	g.mu.Lock()
	typ := g.limits.Type
	g.mu.Unlock()

	if !typ.Matches(op) {
		return nil
	}
	if !g.iops.AcquireNonBlocking(1) {
		return qoserrors.ErrRateLimited
	}
	if bytes <= 0 {
		return nil
	}

	oversized := false
	if burst := g.bps.Capacity(); burst > 0 && bytes > burst {
		oversized = true
	}
	want := bytes
	if oversized {
		want = 1
	}
	if !g.bps.AcquireNonBlocking(want) {
		g.iops.Release(1)
		return qoserrors.ErrRateLimited
	}
	if oversized {
		g.bps.ForceConsume(bytes - 1)
	}
	return nil
}

// Close shuts down both throttles. Requests already queued stay queued.
func (g *Gate) Close() error {
	g.closeOnce.Do(func() {
		g.iops.Shutdown()
		g.bps.Shutdown()
		g.logger.Info("volume gate closed")
	})
	return nil
}
