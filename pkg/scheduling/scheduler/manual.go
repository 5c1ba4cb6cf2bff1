package scheduler

import (
	"errors"
	"sync"
)

// Manual is a Periodic that only runs when Tick is called. It lets tests and
// simulations step a periodic task deterministically.
type Manual struct {
	mu      sync.Mutex
	task    func()
	stopped bool
	ticks   int
}

var _ Periodic = (*Manual)(nil)

// NewManual creates a Manual periodic.
func NewManual() *Manual {
	return &Manual{}
}

// Start records the task. It returns an error if called twice.
func (m *Manual) Start(task func()) error {
	if task == nil {
		return errors.New("scheduler: task cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.task != nil {
		return errors.New("scheduler: already started")
	}
	m.task = task
	return nil
}

// Tick runs the task once, synchronously. It reports false, and runs
// nothing, if the task was never started or has been stopped.
func (m *Manual) Tick() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.task == nil || m.stopped {
		return false
	}
	m.task()
	m.ticks++
	return true
}

// Ticks returns how many times the task ran.
func (m *Manual) Ticks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks
}

// Stop prevents further runs. Because Tick holds the lock while running,
// acquiring it here waits out an in-flight run.
func (m *Manual) Stop() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return closedChan()
}
