package bucket

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/vnykmshr/volqos/pkg/common/validation"
)

// Config holds configuration options for creating a new Bucket.
type Config struct {
	// Name identifies the bucket in log records.
	Name string

	// Capacity is the maximum number of units the bucket can hold.
	// Zero disables throttling: every operation is granted immediately.
	Capacity int64

	// InitialUnits is the number of units to start with.
	// If negative, starts with full capacity.
	InitialUnits int64

	// Logger receives debug records about queueing. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Bucket is a capacity-bounded counter of available units with a strict
// FIFO queue of blocked callers.
//
// All state is guarded by a single mutex. A caller that has to wait parks on
// its own wake channel; only the goroutine holding the mutex ever signals a
// channel, and only the head of the queue is signalled. A head that gets its
// units pops itself and relays the wakeup to the next waiter.
//
// The remaining count may go negative through Take, and through Get when a
// request is larger than what is left: the deficit is repaid by later Put or
// Refill calls before anyone else is admitted.
type Bucket struct {
	name   string
	logger *slog.Logger

	mu        sync.Mutex
	remaining int64
	capacity  int64
	waiters   []*waiter
}

// New creates a Bucket holding capacity units.
// It panics if capacity is negative.
func New(capacity int64) *Bucket {
	b, err := NewSafe(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// NewSafe creates a new Bucket with validation that returns an error instead of panicking.
func NewSafe(capacity int64) (*Bucket, error) {
	return NewWithConfigSafe(Config{
		Capacity:     capacity,
		InitialUnits: -1, // Start with full capacity
	})
}

// NewWithConfigSafe creates a new Bucket with validation that returns an error instead of panicking.
func NewWithConfigSafe(config Config) (*Bucket, error) {
	if err := validation.ValidateNonNegative("bucket", "capacity", config.Capacity); err != nil {
		return nil, err
	}

	initial := config.InitialUnits
	if initial < 0 || initial > config.Capacity {
		initial = config.Capacity
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := config.Name
	if name == "" {
		name = "bucket"
	}

	return &Bucket{
		name:      name,
		logger:    logger.With("bucket", name),
		remaining: initial,
		capacity:  config.Capacity,
	}, nil
}

// Name returns the name the bucket was created with.
func (b *Bucket) Name() string {
	return b.name
}

func mustNonNegative(op string, units int64) {
	if units < 0 {
		panic(fmt.Sprintf("bucket: %s called with negative unit count %d", op, units))
	}
}
