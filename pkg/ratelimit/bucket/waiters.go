package bucket

// waiter is the parking spot of one blocked caller.
type waiter struct {
	wake chan struct{} // buffered 1; pending wakeups coalesce
}

func newWaiter() *waiter {
	return &waiter{wake: make(chan struct{}, 1)}
}

// signal wakes the waiter without blocking.
func (w *waiter) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Must be called with b.mu held.
func (b *Bucket) shouldWait() bool {
	return b.capacity != 0 && b.remaining <= 0
}

// wakeHead signals the first queued waiter, if any.
// Must be called with b.mu held.
func (b *Bucket) wakeHead() {
	if len(b.waiters) > 0 {
		b.waiters[0].signal()
	}
}

// mustQueue reports whether the caller has to queue: either the bucket is
// empty or somebody is already waiting.
// Must be called with b.mu held.
func (b *Bucket) mustQueue() bool {
	return b.shouldWait() || len(b.waiters) > 0
}

// park queues the caller and blocks until it is at the head of the queue
// and units are available, or until done is closed. It returns with b.mu
// held in both cases. A nil done channel never fires.
//
// Must be called with b.mu held.
func (b *Bucket) park(done <-chan struct{}) (canceled bool) {
	w := newWaiter()
	b.waiters = append(b.waiters, w)

	for b.shouldWait() || b.waiters[0] != w {
		b.mu.Unlock()
		select {
		case <-w.wake:
			b.mu.Lock()
		case <-done:
			b.mu.Lock()
			b.removeWaiter(w)
			return true
		}
	}

	b.waiters[0] = nil
	b.waiters = b.waiters[1:]
	// Relay to the next waiter; it re-checks the predicate itself.
	b.wakeHead()
	return false
}

// removeWaiter drops w from any position of the queue. If w was the head,
// the new head is woken so that a wakeup meant for w is not lost.
// Must be called with b.mu held.
func (b *Bucket) removeWaiter(w *waiter) {
	for i, q := range b.waiters {
		if q != w {
			continue
		}
		copy(b.waiters[i:], b.waiters[i+1:])
		b.waiters[len(b.waiters)-1] = nil
		b.waiters = b.waiters[:len(b.waiters)-1]
		if i == 0 {
			b.wakeHead()
		}
		return
	}
}
