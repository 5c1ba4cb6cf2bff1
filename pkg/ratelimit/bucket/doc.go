/*
Package bucket provides the admission primitive behind volume QoS: a
capacity-bounded counter of units with a strict FIFO queue of blocked callers.

A Bucket does not refill itself. Units come back through Put, through Refill
(called once per tick by package throttle) or through Reset. Callers take
units in one of four ways:

	b := bucket.New(100)

	b.Get(n)        // block, first come first served, then take n
	b.GetOrFail(n)  // take n only if nothing is queued and units are available
	b.Take(n)       // take n unconditionally; the balance may go negative
	b.Wait()        // block like Get but take nothing

A request is admitted as soon as the balance is positive, even if it asks for
more than is left; the resulting debt is repaid before the next caller gets
in. Callers that arrive while others are queued always queue behind them, so
a small request never overtakes a large one.

A capacity of zero disables throttling: every call is granted at once.

Negative unit counts are programming errors and panic.
*/
package bucket
