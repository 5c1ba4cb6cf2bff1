package throttle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vnykmshr/volqos/pkg/common/validation"
	"github.com/vnykmshr/volqos/pkg/ratelimit/bucket"
	"github.com/vnykmshr/volqos/pkg/scheduling/scheduler"
)

// State is the lifecycle state of a Throttle.
type State int32

const (
	// Created means the throttle exists but its refill task is not running yet.
	Created State = iota
	// Running means the refill task is scheduled.
	Running
	// ShuttingDown means Shutdown is waiting for an in-flight refill.
	ShuttingDown
	// Stopped means no refill will ever run again.
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds configuration options for creating a new Throttle.
type Config struct {
	// Name identifies the throttle in log records and metrics.
	Name string

	// Capacity is the burst size. Zero disables throttling.
	Capacity int64

	// Average is the number of units added on every refill tick.
	Average int64

	// Interval between refill ticks. Defaults to scheduler.DefaultInterval.
	// Ignored when Periodic is set.
	Interval time.Duration

	// Periodic drives the refill ticks. If nil, a cron-backed runner with
	// Interval is created.
	Periodic scheduler.Periodic

	// Logger receives throttle records. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Throttle pairs a Bucket with a periodic refill of Average units per tick.
//
// The throttle owns its refill task: construction runs one refill
// synchronously and then starts the task, Shutdown stops it and waits for a
// tick that is in progress. Shutdown never releases callers blocked in
// Acquire.
type Throttle struct {
	name     string
	logger   *slog.Logger
	bucket   *bucket.Bucket
	periodic scheduler.Periodic
	average  atomic.Int64
	state    atomic.Int32

	onRefill     func(t *Throttle, added int64)
	shutdownOnce sync.Once
}

// New creates a Throttle with the given burst capacity and per-tick average,
// refilled every scheduler.DefaultInterval. It panics on invalid arguments.
func New(capacity, average int64) *Throttle {
	t, err := NewSafe(capacity, average)
	if err != nil {
		panic(err)
	}
	return t
}

// NewSafe creates a new Throttle with validation that returns an error instead of panicking.
func NewSafe(capacity, average int64) (*Throttle, error) {
	return NewWithConfigSafe(Config{
		Capacity: capacity,
		Average:  average,
	})
}

// NewWithConfigSafe creates a new Throttle with validation that returns an error instead of panicking.
func NewWithConfigSafe(config Config) (*Throttle, error) {
	return newThrottle(config, nil)
}

func newThrottle(config Config, onRefill func(*Throttle, int64)) (*Throttle, error) {
	config, err := applyConfigDefaults(config)
	if err != nil {
		return nil, err
	}

	b, err := bucket.NewWithConfigSafe(bucket.Config{
		Name:         config.Name,
		Capacity:     config.Capacity,
		InitialUnits: -1,
		Logger:       config.Logger,
	})
	if err != nil {
		return nil, err
	}

	t := &Throttle{
		name:     config.Name,
		logger:   config.Logger.With("throttle", config.Name),
		bucket:   b,
		periodic: config.Periodic,
		onRefill: onRefill,
	}
	t.average.Store(config.Average)

	t.refill()
	if err := t.periodic.Start(t.refill); err != nil {
		return nil, fmt.Errorf("throttle: start refill: %w", err)
	}
	t.state.Store(int32(Running))

	t.logger.Debug("throttle started", "capacity", config.Capacity, "average", config.Average)
	return t, nil
}

func applyConfigDefaults(config Config) (Config, error) {
	if err := validation.ValidateNonNegative("throttle", "capacity", config.Capacity); err != nil {
		return config, err
	}
	if err := validation.ValidateNonNegative("throttle", "average", config.Average); err != nil {
		return config, err
	}

	if config.Name == "" {
		config.Name = "throttle"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Periodic == nil {
		p, err := scheduler.NewCronWithConfig(scheduler.Config{
			Interval: config.Interval,
			Logger:   config.Logger,
		})
		if err != nil {
			return config, err
		}
		config.Periodic = p
	}
	return config, nil
}

// refill runs one tick. Ticks observed after Shutdown began are ignored.
func (t *Throttle) refill() {
	if t.State() >= ShuttingDown {
		return
	}

	avg := t.average.Load()
	added := t.bucket.Refill(avg)
	if t.onRefill != nil {
		t.onRefill(t, added)
	}
	if added != 0 {
		t.logger.Debug("refill", "average", avg, "added", added)
	}
}

// Name returns the name the throttle was created with.
func (t *Throttle) Name() string {
	return t.name
}

// State returns the current lifecycle state.
func (t *Throttle) State() State {
	return State(t.state.Load())
}

// Acquire blocks until units can be taken and reports whether it had to block.
func (t *Throttle) Acquire(units int64) bool {
	return t.bucket.Get(units)
}

// AcquireContext is Acquire with cancellation.
func (t *Throttle) AcquireContext(ctx context.Context, units int64) (bool, error) {
	return t.bucket.GetContext(ctx, units)
}

// AcquireNonBlocking takes units only if they are available now and nobody
// is queued.
func (t *Throttle) AcquireNonBlocking(units int64) bool {
	return t.bucket.GetOrFail(units)
}

// ForceConsume takes units unconditionally and returns the remaining count,
// which may be negative.
func (t *Throttle) ForceConsume(units int64) int64 {
	return t.bucket.Take(units)
}

// Release returns units and returns the remaining count.
func (t *Throttle) Release(units int64) int64 {
	return t.bucket.Put(units)
}

// Available returns the number of units currently available.
func (t *Throttle) Available() int64 {
	return t.bucket.Current()
}

// Capacity returns the burst capacity.
func (t *Throttle) Capacity() int64 {
	return t.bucket.Capacity()
}

// Waiting returns the number of callers queued in Acquire.
func (t *Throttle) Waiting() int {
	return t.bucket.Waiting()
}

// SetCapacity changes the burst capacity without refilling.
func (t *Throttle) SetCapacity(capacity int64) {
	t.bucket.SetCapacity(capacity)
}

// Average returns the number of units added per tick.
func (t *Throttle) Average() int64 {
	return t.average.Load()
}

// SetAverage changes the per-tick refill. It takes effect on the next tick.
// It panics if average is negative.
func (t *Throttle) SetAverage(average int64) {
	if average < 0 {
		panic(fmt.Sprintf("throttle: SetAverage called with negative value %d", average))
	}
	t.average.Store(average)
}

// Reset refills the bucket, optionally to a new capacity. See bucket.Reset.
func (t *Throttle) Reset(capacity int64) {
	t.bucket.Reset(capacity)
}

// Shutdown cancels future refill ticks and blocks until a tick in progress
// has completed. It is safe to call more than once and from several
// goroutines; every call returns after the throttle is Stopped.
func (t *Throttle) Shutdown() {
	t.shutdownOnce.Do(func() {
		t.state.Store(int32(ShuttingDown))
		<-t.periodic.Stop()
		t.state.Store(int32(Stopped))
		t.logger.Debug("throttle stopped")
	})
}
