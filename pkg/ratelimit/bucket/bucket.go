package bucket

import (
	"context"
	"math"
)

// Current returns the number of units currently available.
// The value may be negative after forced consumption.
func (b *Bucket) Current() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Capacity returns the maximum number of units the bucket can hold.
func (b *Bucket) Capacity() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Waiting returns the number of callers currently queued.
func (b *Bucket) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

// Disabled reports whether throttling is off (capacity is zero).
func (b *Bucket) Disabled() bool {
	return b.Capacity() == 0
}

// SetCapacity changes the capacity. The remaining count is left as is and
// no waiter is woken; the next Put, Refill or Reset settles both.
func (b *Bucket) SetCapacity(capacity int64) {
	mustNonNegative("SetCapacity", capacity)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.capacity = capacity
}

// Reset refills the bucket. With capacity zero the bucket is refilled to its
// current capacity; otherwise both capacity and remaining are set to the new
// value. The head waiter is always woken to re-evaluate.
func (b *Bucket) Reset(capacity int64) {
	mustNonNegative("Reset", capacity)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.wakeHead()
	if capacity == 0 {
		b.remaining = b.capacity
		return
	}
	b.capacity = capacity
	b.remaining = capacity
}

// Wait blocks until units are available and no earlier caller is queued,
// without taking anything. It reports whether the caller had to block.
func (b *Bucket) Wait() bool {
	blocked, _ := b.WaitContext(context.Background())
	return blocked
}

// WaitContext is Wait with cancellation. On cancellation the caller is
// removed from the queue and ctx.Err() is returned.
func (b *Bucket) WaitContext(ctx context.Context) (bool, error) {
	return b.acquire(ctx, "Wait", 0)
}

// Take subtracts units unconditionally and returns the new remaining count,
// which may be negative down to math.MinInt64. It never blocks and never
// queues.
// A disabled bucket returns 0.
func (b *Bucket) Take(units int64) int64 {
	mustNonNegative("Take", units)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 {
		return 0
	}
	b.sub(units)
	return b.remaining
}

// Get blocks until the caller is first in line and units are available, then
// subtracts units. It reports whether the caller had to block.
// A disabled bucket returns false immediately.
func (b *Bucket) Get(units int64) bool {
	blocked, _ := b.GetContext(context.Background(), units)
	return blocked
}

// GetContext is Get with cancellation. On cancellation nothing is taken, the
// caller is removed from the queue wherever it is, and ctx.Err() is returned.
func (b *Bucket) GetContext(ctx context.Context, units int64) (bool, error) {
	mustNonNegative("Get", units)
	return b.acquire(ctx, "Get", units)
}

// GetOrFail takes units only if they are available right now and nobody is
// queued; it never jumps the queue and never blocks.
// A disabled bucket always grants.
func (b *Bucket) GetOrFail(units int64) bool {
	mustNonNegative("GetOrFail", units)

	b.mu.Lock()
	if b.capacity == 0 {
		b.mu.Unlock()
		return true
	}
	if b.mustQueue() {
		remaining, queued := b.remaining, len(b.waiters)
		b.mu.Unlock()
		b.logger.Debug("get_or_fail denied", "units", units, "remaining", remaining, "waiting", queued)
		return false
	}
	b.sub(units)
	b.mu.Unlock()
	return true
}

// Put returns units to the bucket, clamped at capacity, and wakes the head
// waiter. It returns the resulting remaining count.
// A disabled bucket returns 0.
func (b *Bucket) Put(units int64) int64 {
	mustNonNegative("Put", units)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 {
		// Waiters queued before throttling was disabled are let through.
		b.wakeHead()
		return 0
	}
	if units == 0 {
		return b.remaining
	}
	b.add(units)
	b.wakeHead()
	return b.remaining
}

// Refill adds units for one refill tick: the full amount if it fits,
// otherwise exactly what tops the bucket up to capacity. Nothing carries
// over. It returns the number of units actually added, which is negative
// when a lowered capacity trimmed the bucket.
func (b *Bucket) Refill(units int64) int64 {
	mustNonNegative("Refill", units)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.capacity == 0 {
		b.wakeHead()
		return 0
	}
	before := b.remaining
	b.add(units)
	b.wakeHead()
	return b.remaining - before
}

// add increases remaining by units, clamped at capacity.
// Must be called with b.mu held.
func (b *Bucket) add(units int64) {
	// A negative remaining plus a non-negative units cannot overflow.
	if b.remaining < 0 || units <= b.capacity-b.remaining {
		b.remaining += units
	} else {
		b.remaining = b.capacity
	}
	if b.remaining > b.capacity {
		b.remaining = b.capacity
	}
}

// sub decreases remaining by units, saturating at math.MinInt64.
// Must be called with b.mu held.
func (b *Bucket) sub(units int64) {
	if b.remaining < math.MinInt64+units {
		b.remaining = math.MinInt64
		return
	}
	b.remaining -= units
}

// acquire implements Get and Wait.
func (b *Bucket) acquire(ctx context.Context, op string, units int64) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	b.mu.Lock()

	if b.capacity == 0 {
		b.mu.Unlock()
		return false, nil
	}

	// Fast path: units available and nobody ahead
	if !b.mustQueue() {
		b.sub(units)
		b.mu.Unlock()
		return false, nil
	}

	ahead := len(b.waiters)
	if canceled := b.park(ctx.Done()); canceled {
		b.mu.Unlock()
		b.logger.Debug("wait canceled", "op", op, "units", units, "ahead", ahead)
		return true, ctx.Err()
	}

	// Throttling may have been disabled while parked.
	if b.capacity != 0 {
		b.sub(units)
	}
	remaining := b.remaining
	b.mu.Unlock()

	b.logger.Debug("finished waiting", "op", op, "units", units, "ahead", ahead, "remaining", remaining)
	return true, nil
}
