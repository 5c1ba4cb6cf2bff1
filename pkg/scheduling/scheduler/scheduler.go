package scheduler

import (
	"log/slog"
	"time"

	"github.com/vnykmshr/volqos/pkg/common/validation"
)

// DefaultInterval is the refill cadence used when none is configured.
const DefaultInterval = time.Second

// Periodic runs a single task repeatedly at a fixed interval.
//
// Runs never overlap: a run that is still executing when the next one is due
// causes that next run to be skipped. Stop cancels all future runs and the
// returned channel closes once any in-flight run has returned. Stop may be
// called more than once; every call returns the same channel.
type Periodic interface {
	// Start begins invoking task. It returns an error if called twice.
	Start(task func()) error

	// Stop cancels future runs. The returned channel closes when the last
	// in-flight run has completed.
	Stop() <-chan struct{}
}

// Config holds configuration for a cron-backed Periodic.
type Config struct {
	// Interval between runs. Defaults to DefaultInterval. The cron backend
	// works in whole seconds: shorter intervals run once a second.
	Interval time.Duration

	// Location is used to evaluate the schedule. Defaults to time.Local.
	Location *time.Location

	// Logger receives scheduler records. If nil, slog.Default() is used.
	Logger *slog.Logger
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func validateConfig(cfg Config) error {
	return validation.ValidatePositiveDuration("scheduler", "interval", cfg.Interval)
}

// closedChan is returned by Stop when nothing was ever started.
func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
