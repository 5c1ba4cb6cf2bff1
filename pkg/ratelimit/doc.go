/*
Package ratelimit provides the throttling primitives used for volume QoS.

  - bucket: a counting bucket. Takers queue in FIFO order; a waiter is
    woken only when it reaches the head of the queue and units are left.
  - throttle: a bucket refilled with a fixed number of units on every tick
    of a scheduler.Periodic, never beyond its capacity.

A bucket may be driven below zero by forced takes. The debt is repaid by
later refills before anyone else is served:

	t := throttle.New(100, 20) // capacity 100, +20 per tick
	defer t.Shutdown()

	t.ForceConsume(150) // balance now negative
	t.Acquire(10)       // blocks until refills bring it back above zero

A capacity of zero disables a bucket: every take succeeds immediately.

All types are safe for concurrent use and integrate with the context
package for cancellation of blocked takes.
*/
package ratelimit
