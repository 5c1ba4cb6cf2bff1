package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CronPeriodic is a Periodic driven by a robfig/cron runner with a
// constant-delay schedule.
type CronPeriodic struct {
	interval time.Duration
	logger   *slog.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	started bool
	stopped <-chan struct{}
}

var _ Periodic = (*CronPeriodic)(nil)

// NewCron creates a cron-backed Periodic with the given interval.
func NewCron(interval time.Duration) (*CronPeriodic, error) {
	return NewCronWithConfig(Config{Interval: interval})
}

// NewCronWithConfig creates a cron-backed Periodic with custom configuration.
func NewCronWithConfig(cfg Config) (*CronPeriodic, error) {
	cfg = applyConfigDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := cronLogger{l: cfg.Logger.With("component", "scheduler")}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	return &CronPeriodic{
		interval: cfg.Interval,
		logger:   cfg.Logger,
		cron:     c,
	}, nil
}

// Interval returns the configured interval.
func (p *CronPeriodic) Interval() time.Duration {
	return p.interval
}

// Start schedules task every interval and starts the cron runner.
func (p *CronPeriodic) Start(task func()) error {
	if task == nil {
		return errors.New("scheduler: task cannot be nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("scheduler: already started")
	}
	p.started = true

	p.cron.Schedule(cron.Every(p.interval), cron.FuncJob(task))
	p.cron.Start()
	p.logger.Debug("periodic task started", "interval", p.interval)
	return nil
}

// Stop cancels future runs and returns a channel that closes once any
// in-flight run has completed.
func (p *CronPeriodic) Stop() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped != nil {
		return p.stopped
	}
	if !p.started {
		p.stopped = closedChan()
		return p.stopped
	}

	p.stopped = p.cron.Stop().Done()
	p.logger.Debug("periodic task stopped")
	return p.stopped
}

// cronLogger adapts slog to cron.Logger. Cron's info records (wake, run,
// schedule) are per-tick noise and go to debug.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
