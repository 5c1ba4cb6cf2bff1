package qos

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/common/validation"
	"github.com/vnykmshr/volqos/pkg/metrics"
	"github.com/vnykmshr/volqos/pkg/qos/store"
	"github.com/vnykmshr/volqos/pkg/volume"
)

// Dimension is one of the two throttled quantities of a volume.
type Dimension string

const (
	IOPS Dimension = "iops"
	BPS  Dimension = "bps"
)

// ParseDimension parses "iops" or "bps".
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(strings.ToLower(s)); d {
	case IOPS, BPS:
		return d, nil
	default:
		return "", qoserrors.NewValidationError("qos", "dimension", s, "unknown dimension").
			WithHint("use iops or bps")
	}
}

// Applier takes effect of new limits locally.
type Applier interface {
	Apply(limits volume.Limits) error
}

// WriteBlocker holds back writes while a change is in progress.
type WriteBlocker interface {
	BlockWrites(ctx context.Context) error
	UnblockWrites()
}

// Target is a locally open volume, such as a *volume.Gate.
type Target interface {
	Applier
	WriteBlocker
}

var _ Target = (*volume.Gate)(nil)

// Config holds configuration options for creating a new Coordinator.
type Config struct {
	// Store persists limits. Required.
	Store store.Store

	// Locker, if set, serializes changes to a volume across processes.
	Locker store.Locker

	// Notifier, if set, announces committed changes.
	Notifier Notifier

	// Origin identifies this coordinator in updates. Defaults to a random UUID.
	Origin string

	// Metrics, if set and enabled, counts requests and failed steps.
	Metrics *metrics.Config

	// Logger receives request records. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Coordinator runs configuration requests against volumes:
// lock, block writes, persist, notify, apply, then release in reverse.
// A failing step rolls back the steps before it.
type Coordinator struct {
	store    store.Store
	locker   store.Locker
	notifier Notifier
	origin   string
	logger   *slog.Logger
	registry *metrics.Registry

	mu      sync.RWMutex
	targets map[string]Target
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if err := validation.ValidateNotNil("qos", "store", cfg.Store); err != nil {
		return nil, err
	}
	if cfg.Origin == "" {
		cfg.Origin = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Coordinator{
		store:    cfg.Store,
		locker:   cfg.Locker,
		notifier: cfg.Notifier,
		origin:   cfg.Origin,
		logger:   cfg.Logger.With("component", "qos"),
		targets:  make(map[string]Target),
	}
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		c.registry = metrics.Shared(*cfg.Metrics)
	}
	return c, nil
}

// Origin returns the identifier this coordinator stamps on updates.
func (c *Coordinator) Origin() string {
	return c.origin
}

// Attach registers a locally open volume. Requests for it block its writes
// and apply the new limits to it.
func (c *Coordinator) Attach(name string, t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[name] = t
}

// Detach forgets a locally open volume.
func (c *Coordinator) Detach(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.targets, name)
}

func (c *Coordinator) target(name string) Target {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.targets[name]
}

// Get returns the stored limits of a volume.
func (c *Coordinator) Get(ctx context.Context, name string) (volume.Limits, error) {
	if err := ValidateVolumeName(name); err != nil {
		return volume.Limits{}, err
	}
	return c.store.Get(ctx, name)
}

// Set changes a volume's limits. Zero fields keep the stored value. It
// returns the limits now in force.
func (c *Coordinator) Set(ctx context.Context, name string, limits volume.Limits) (volume.Limits, error) {
	return c.run(ctx, name, func(prev volume.Limits) volume.Limits {
		return limits.Merge(prev)
	})
}

// Clear disables one dimension of a volume and returns the limits now in force.
func (c *Coordinator) Clear(ctx context.Context, name string, dim Dimension) (volume.Limits, error) {
	if _, err := ParseDimension(string(dim)); err != nil {
		return volume.Limits{}, err
	}
	return c.run(ctx, name, func(prev volume.Limits) volume.Limits {
		next := prev
		switch dim {
		case IOPS:
			next.IOPSBurst, next.IOPSAvg = 0, 0
		case BPS:
			next.BPSBurst, next.BPSAvg = 0, 0
		}
		return next
	})
}

// request is the state of one run, used to undo completed steps.
type request struct {
	id      string
	volume  string
	logger  *slog.Logger
	lock    store.Lock
	target  Target
	blocked bool
	prev    volume.Limits
	hadPrev bool
	stored  bool
	// announced is set once any notifier may have seen the new limits.
	announced bool
}

func (c *Coordinator) run(ctx context.Context, name string, mutate func(volume.Limits) volume.Limits) (volume.Limits, error) {
	if err := ValidateVolumeName(name); err != nil {
		return volume.Limits{}, err
	}

	r := &request{
		id:     uuid.NewString(),
		volume: name,
		target: c.target(name),
	}
	r.logger = c.logger.With("volume", name, "request_id", r.id)

	next, err := c.execute(ctx, r, mutate)
	c.finish(r)

	result := "ok"
	if err != nil {
		result = "failed"
		if step := FailedStep(err); step != "" {
			c.countStepFailure(step)
		}
		r.logger.Error("qos request failed", "error", err)
	} else {
		r.logger.Info("qos request completed", "limits", next.String())
	}
	if c.registry != nil {
		c.registry.ConfigChanges.WithLabelValues(name, result).Inc()
	}
	return next, err
}

func (c *Coordinator) execute(ctx context.Context, r *request, mutate func(volume.Limits) volume.Limits) (volume.Limits, error) {
	fail := func(step Step, err error) (volume.Limits, error) {
		c.rollback(r)
		return volume.Limits{}, &StepError{Step: step, Volume: r.volume, RequestID: r.id, Err: err}
	}

	if c.locker != nil {
		lock, err := c.locker.TryAcquire(ctx, r.volume)
		if err != nil {
			return fail(StepLock, err)
		}
		r.lock = lock
	}

	prev, err := c.store.Get(ctx, r.volume)
	switch {
	case err == nil:
		r.prev, r.hadPrev = prev, true
	case errors.Is(err, qoserrors.ErrNotFound):
	default:
		return fail(StepLoad, err)
	}

	next := mutate(r.prev)
	if next.Type == "" {
		next.Type = volume.OpAll
	}
	if err := next.Validate(); err != nil {
		c.rollback(r)
		return volume.Limits{}, err
	}

	if r.target != nil {
		if err := r.target.BlockWrites(ctx); err != nil {
			return fail(StepBlockWrites, err)
		}
		r.blocked = true
	}

	if err := c.store.Set(ctx, r.volume, next); err != nil {
		return fail(StepPersist, err)
	}
	r.stored = true

	if c.notifier != nil {
		r.announced = true
		if err := c.notifier.Notify(ctx, c.update(r, next)); err != nil {
			return fail(StepNotify, err)
		}
	}

	if r.target != nil {
		if err := r.target.Apply(next); err != nil {
			return fail(StepApply, err)
		}
	}
	return next, nil
}

func (c *Coordinator) update(r *request, l volume.Limits) Update {
	return Update{
		RequestID: r.id,
		Volume:    r.volume,
		Limits:    l,
		Origin:    c.origin,
		Time:      time.Now().UTC(),
	}
}

// rollback restores the stored limits if they were changed and, when peers
// may already hold the new limits, announces the restored ones. Lock and
// write block are released by finish.
func (c *Coordinator) rollback(r *request) {
	if !r.stored {
		return
	}
	// The request context may be what failed; restore regardless.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if r.hadPrev {
		err = c.store.Set(ctx, r.volume, r.prev)
	} else {
		err = c.store.Delete(ctx, r.volume)
	}
	if err != nil {
		r.logger.Error("rollback of stored limits failed", "error", err)
		return
	}
	r.stored = false
	r.logger.Debug("stored limits rolled back")

	if !r.announced {
		return
	}
	prev := r.prev
	if prev.Type == "" {
		prev.Type = volume.OpAll
	}
	if err := c.notifier.Notify(ctx, c.update(r, prev)); err != nil {
		r.logger.Error("announce of rolled back limits failed", "error", err)
		return
	}
	r.logger.Debug("rolled back limits announced")
}

// finish releases the write block and the lock, in that order.
func (c *Coordinator) finish(r *request) {
	if r.blocked {
		r.target.UnblockWrites()
		r.blocked = false
	}
	if r.lock != nil {
		if err := r.lock.Close(); err != nil {
			r.logger.Error("release lock failed", "error", err)
		}
		r.lock = nil
	}
}

func (c *Coordinator) countStepFailure(step Step) {
	if c.registry != nil {
		c.registry.StepFailures.WithLabelValues(string(step)).Inc()
	}
}

// Load applies the stored limits of a volume to a local target, for use
// when a volume is opened. A volume with nothing stored is left unlimited.
func (c *Coordinator) Load(ctx context.Context, name string, t Applier) (volume.Limits, error) {
	l, err := c.Get(ctx, name)
	if errors.Is(err, qoserrors.ErrNotFound) {
		return volume.Limits{}, nil
	}
	if err != nil {
		return volume.Limits{}, qoserrors.NewOperationError("qos", "load", err).WithContext("volume " + name)
	}
	if err := t.Apply(l); err != nil {
		return volume.Limits{}, qoserrors.NewOperationError("qos", "apply", err).WithContext("volume " + name)
	}
	return l, nil
}
