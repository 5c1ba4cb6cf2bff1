package bucket

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vnykmshr/volqos/internal/testutil"
	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
)

func newBucket(t *testing.T, capacity, initial int64) *Bucket {
	t.Helper()
	b, err := NewWithConfigSafe(Config{
		Name:         t.Name(),
		Capacity:     capacity,
		InitialUnits: initial,
	})
	testutil.AssertNoError(t, err)
	return b
}

// waitQueued blocks until n callers are parked in b.
func waitQueued(t *testing.T, b *Bucket, n int) {
	t.Helper()
	testutil.AssertEventually(t, func() bool { return b.Waiting() == n })
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int64
		wantErr  bool
	}{
		{"positive capacity", 10, false},
		{"zero capacity disables", 0, false},
		{"negative capacity", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewSafe(tt.capacity)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for invalid capacity")
				}
				if !errors.Is(err, qoserrors.ErrInvalidConfiguration) {
					t.Errorf("error %v should wrap ErrInvalidConfiguration", err)
				}
				if b != nil {
					t.Error("expected nil bucket on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, b.Capacity(), tt.capacity)
			testutil.AssertEqual(t, b.Current(), tt.capacity)
			testutil.AssertEqual(t, b.Disabled(), tt.capacity == 0)
		})
	}
}

func TestNewPanicsOnNegativeCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(-1) should panic")
		}
	}()
	New(-1)
}

func TestInitialUnits(t *testing.T) {
	testutil.AssertEqual(t, newBucket(t, 10, 3).Current(), int64(3))
	testutil.AssertEqual(t, newBucket(t, 10, -1).Current(), int64(10))
	testutil.AssertEqual(t, newBucket(t, 10, 50).Current(), int64(10))
}

func TestForcedConsumptionScenario(t *testing.T) {
	b := New(10)

	testutil.AssertEqual(t, b.Take(15), int64(-5))
	testutil.AssertEqual(t, b.Put(3), int64(-2))

	if b.GetOrFail(1) {
		t.Fatal("GetOrFail(1) should fail while remaining is negative")
	}
	testutil.AssertEqual(t, b.Current(), int64(-2))

	testutil.AssertEqual(t, b.Put(5), int64(3))

	if !b.GetOrFail(2) {
		t.Fatal("GetOrFail(2) should succeed with 3 remaining")
	}
	testutil.AssertEqual(t, b.Current(), int64(1))
}

func TestTakeSaturatesDeficit(t *testing.T) {
	b := New(10)

	b.Take(math.MaxInt64)
	testutil.AssertEqual(t, b.Take(math.MaxInt64), int64(math.MinInt64))
	testutil.AssertEqual(t, b.Take(1), int64(math.MinInt64))

	if b.GetOrFail(0) {
		t.Fatal("GetOrFail should fail while the deficit is outstanding")
	}
	testutil.AssertEqual(t, b.Put(5), int64(math.MinInt64+5))
}

func TestPutClampsAtCapacity(t *testing.T) {
	b := newBucket(t, 10, 0)

	testutil.AssertEqual(t, b.Put(4), int64(4))
	testutil.AssertEqual(t, b.Put(4), int64(8))
	testutil.AssertEqual(t, b.Put(4), int64(10))
	testutil.AssertEqual(t, b.Put(1000), int64(10))
	testutil.AssertEqual(t, b.Put(0), int64(10))
}

func TestCapacityInvariant(t *testing.T) {
	b := newBucket(t, 7, 0)
	ops := []int64{1, 5, 2, 9, 0, 3, 7, 100}

	for i, units := range ops {
		if i%2 == 0 {
			b.Put(units)
		} else {
			b.Refill(units)
		}
		if got := b.Current(); got > b.Capacity() {
			t.Fatalf("after op %d remaining %d exceeds capacity %d", i, got, b.Capacity())
		}
		b.Take(units / 2)
	}
}

func TestRefill(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int64
		remaining int64
		units     int64
		wantAdded int64
		wantAfter int64
	}{
		{"fits", 100, 0, 20, 20, 20},
		{"exactly fits", 100, 80, 20, 20, 100},
		{"tops up", 100, 90, 20, 10, 100},
		{"already full", 100, 100, 20, 0, 100},
		{"from debt", 100, -30, 20, 20, -10},
		{"huge average", 100, 40, 1 << 50, 60, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBucket(t, tt.capacity, tt.capacity)
			b.Take(tt.capacity - tt.remaining)
			testutil.AssertEqual(t, b.Current(), tt.remaining)

			testutil.AssertEqual(t, b.Refill(tt.units), tt.wantAdded)
			testutil.AssertEqual(t, b.Current(), tt.wantAfter)
		})
	}
}

func TestRefillTrimsAfterCapacityDrop(t *testing.T) {
	b := New(100)
	b.SetCapacity(40)

	// SetCapacity leaves remaining alone.
	testutil.AssertEqual(t, b.Current(), int64(100))
	testutil.AssertEqual(t, b.Capacity(), int64(40))

	testutil.AssertEqual(t, b.Refill(10), int64(-60))
	testutil.AssertEqual(t, b.Current(), int64(40))
}

func TestReset(t *testing.T) {
	b := New(10)
	b.Take(8)

	b.Reset(0)
	testutil.AssertEqual(t, b.Current(), int64(10))
	testutil.AssertEqual(t, b.Capacity(), int64(10))

	b.Take(8)
	b.Reset(50)
	testutil.AssertEqual(t, b.Current(), int64(50))
	testutil.AssertEqual(t, b.Capacity(), int64(50))
}

func TestGetDoesNotBlockWhenAvailable(t *testing.T) {
	b := New(10)

	if b.Get(4) {
		t.Error("Get should not block with units available")
	}
	testutil.AssertEqual(t, b.Current(), int64(6))

	// The predicate only asks for a positive balance; the request may overdraw.
	if b.Get(9) {
		t.Error("Get should not block with a positive balance")
	}
	testutil.AssertEqual(t, b.Current(), int64(-3))
}

func TestGetBlocksUntilPut(t *testing.T) {
	b := newBucket(t, 10, 0)

	result := make(chan bool, 1)
	go func() {
		result <- b.Get(2)
	}()
	waitQueued(t, b, 1)

	select {
	case <-result:
		t.Fatal("Get returned before units were put")
	default:
	}

	b.Put(5)

	select {
	case blocked := <-result:
		if !blocked {
			t.Error("Get should report that it blocked")
		}
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Get did not return after Put")
	}
	testutil.AssertEqual(t, b.Current(), int64(3))
	testutil.AssertEqual(t, b.Waiting(), 0)
}

func TestFIFOFairness(t *testing.T) {
	b := newBucket(t, 10, 0)
	rec := testutil.NewRecorder()

	callers := []struct {
		label string
		units int64
	}{
		{"A", 3},
		{"B", 1},
		{"C", 2},
	}

	var wg sync.WaitGroup
	for i, c := range callers {
		wg.Add(1)
		go func(label string, units int64) {
			defer wg.Done()
			b.Get(units)
			rec.Record(label)
		}(c.label, c.units)
		waitQueued(t, b, i+1)
	}

	// A gets in with 1 unit and overdraws to -2; B stays parked behind the debt.
	b.Put(1)
	testutil.AssertEventually(t, func() bool { return rec.Len() == 1 })
	testutil.AssertEqual(t, b.Current(), int64(-2))

	b.Put(3)
	testutil.AssertEventually(t, func() bool { return rec.Len() == 2 })
	testutil.AssertEqual(t, b.Current(), int64(0))

	b.Put(2)
	wg.Wait()

	rec.AssertOrder(t, "A", "B", "C")
	testutil.AssertEqual(t, b.Current(), int64(0))
}

func TestFIFOFairnessLargeRequestFirst(t *testing.T) {
	b := newBucket(t, 100, 0)
	rec := testutil.NewRecorder()

	var wg sync.WaitGroup
	for i, units := range []int64{50, 1, 1, 1} {
		units := units
		label := string(rune('A' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Get(units)
			rec.Record(label)
		}()
		waitQueued(t, b, i+1)
	}

	// Release units one at a time; the 50-unit request must still go first.
	for rec.Len() < 4 {
		b.Put(1)
		time.Sleep(time.Millisecond)
	}
	wg.Wait()

	rec.AssertOrder(t, "A", "B", "C", "D")
}

func TestGetOrFailDoesNotJumpQueue(t *testing.T) {
	b := newBucket(t, 10, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Get(1)
	}()
	waitQueued(t, b, 1)

	b.Put(1)
	// Either the waiter is still queued or it already took the unit.
	if b.GetOrFail(1) {
		t.Fatal("GetOrFail must not take units ahead of a queued caller")
	}

	<-done
	testutil.AssertEqual(t, b.Current(), int64(0))
}

func TestGetOrFailNeverBlocks(t *testing.T) {
	b := newBucket(t, 10, 0)

	go b.Get(1)
	waitQueued(t, b, 1)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		if b.GetOrFail(1) {
			t.Fatal("GetOrFail should fail on an empty bucket")
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("GetOrFail took %v", elapsed)
	}

	b.Put(1)
	testutil.AssertEventually(t, func() bool { return b.Waiting() == 0 })
}

func TestWait(t *testing.T) {
	b := newBucket(t, 10, 0)

	result := make(chan bool, 1)
	go func() {
		result <- b.Wait()
	}()
	waitQueued(t, b, 1)

	b.Put(2)
	if !<-result {
		t.Error("Wait should report that it blocked")
	}
	// Wait takes nothing.
	testutil.AssertEqual(t, b.Current(), int64(2))

	if b.Wait() {
		t.Error("Wait should not block with units available")
	}
}

func TestResetWakesWaiter(t *testing.T) {
	b := newBucket(t, 10, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Get(4)
	}()
	waitQueued(t, b, 1)

	b.Reset(20)

	select {
	case <-done:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("Reset did not wake the waiter")
	}
	testutil.AssertEqual(t, b.Current(), int64(16))
	testutil.AssertEqual(t, b.Capacity(), int64(20))
}

func TestRelayWakeDrainsQueue(t *testing.T) {
	b := newBucket(t, 100, 0)

	const callers = 20
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Get(1)
		}()
	}
	waitQueued(t, b, callers)

	// One Put; every head relays to the next while the balance stays positive.
	b.Put(callers)
	wg.Wait()

	testutil.AssertEqual(t, b.Current(), int64(0))
	testutil.AssertEqual(t, b.Waiting(), 0)
}

func TestGetContextCanceled(t *testing.T) {
	b := newBucket(t, 10, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked, err := b.GetContext(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if blocked {
		t.Error("a pre-canceled call should not block")
	}
	testutil.AssertEqual(t, b.Waiting(), 0)
}

func TestGetContextTimeoutRemovesWaiter(t *testing.T) {
	b := newBucket(t, 10, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	blocked, err := b.GetContext(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
	if !blocked {
		t.Error("GetContext should report that it blocked")
	}
	testutil.AssertEqual(t, b.Waiting(), 0)
	testutil.AssertEqual(t, b.Current(), int64(0))
}

func TestCanceledHeadPassesWakeupOn(t *testing.T) {
	b := newBucket(t, 10, 0)
	rec := testutil.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	headDone := make(chan error, 1)
	go func() {
		_, err := b.GetContext(ctx, 1)
		headDone <- err
	}()
	waitQueued(t, b, 1)

	var wg sync.WaitGroup
	for i, label := range []string{"B", "C"} {
		label := label
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Get(1)
			rec.Record(label)
		}()
		waitQueued(t, b, i+2)
	}

	cancel()
	if err := <-headDone; !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	waitQueued(t, b, 2)

	b.Put(2)
	wg.Wait()
	rec.AssertOrder(t, "B", "C")
}

func TestCanceledMiddleWaiter(t *testing.T) {
	b := newBucket(t, 10, 0)
	rec := testutil.NewRecorder()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Get(1)
		rec.Record("A")
	}()
	waitQueued(t, b, 1)

	ctx, cancel := context.WithCancel(context.Background())
	midDone := make(chan struct{})
	go func() {
		defer close(midDone)
		b.GetContext(ctx, 1)
	}()
	waitQueued(t, b, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		b.Get(1)
		rec.Record("C")
	}()
	waitQueued(t, b, 3)

	cancel()
	<-midDone
	waitQueued(t, b, 2)

	b.Put(2)
	wg.Wait()
	rec.AssertOrder(t, "A", "C")
}

func TestDisabledBucket(t *testing.T) {
	b := New(0)

	if b.Get(100) {
		t.Error("Get on a disabled bucket should not block")
	}
	if !b.GetOrFail(100) {
		t.Error("GetOrFail on a disabled bucket should grant")
	}
	if b.Wait() {
		t.Error("Wait on a disabled bucket should not block")
	}
	testutil.AssertEqual(t, b.Take(100), int64(0))
	testutil.AssertEqual(t, b.Put(100), int64(0))
	testutil.AssertEqual(t, b.Refill(100), int64(0))
	b.Reset(0)
	testutil.AssertEqual(t, b.Current(), int64(0))
	testutil.AssertEqual(t, b.Capacity(), int64(0))
}

func TestDisableReleasesQueuedWaiters(t *testing.T) {
	b := newBucket(t, 10, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Get(3)
	}()
	waitQueued(t, b, 1)

	b.SetCapacity(0)
	b.Put(0)

	select {
	case <-done:
	case <-time.After(testutil.TestTimeout):
		t.Fatal("waiter stayed parked after throttling was disabled")
	}
	// Nothing is charged once throttling is off.
	testutil.AssertEqual(t, b.Current(), int64(0))
}

func TestNegativeUnitsPanic(t *testing.T) {
	b := New(10)
	ops := map[string]func(){
		"Get":         func() { b.Get(-1) },
		"GetOrFail":   func() { b.GetOrFail(-1) },
		"Take":        func() { b.Take(-1) },
		"Put":         func() { b.Put(-1) },
		"Refill":      func() { b.Refill(-1) },
		"Reset":       func() { b.Reset(-1) },
		"SetCapacity": func() { b.SetCapacity(-1) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("%s(-1) should panic", name)
				}
			}()
			op()
		})
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New(50)

	const goroutines = 10
	const requestsPerGoroutine = 200

	stop := make(chan struct{})
	refilled := make(chan struct{})
	go func() {
		defer close(refilled)
		for {
			select {
			case <-stop:
				return
			default:
				b.Put(5)
				time.Sleep(100 * time.Microsecond)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < requestsPerGoroutine; j++ {
				switch j % 3 {
				case 0:
					b.Get(1)
				case 1:
					b.GetOrFail(1)
				default:
					b.Current()
					b.Waiting()
				}
			}
		}(i)
	}
	wg.Wait()
	close(stop)
	<-refilled

	if got := b.Current(); got > b.Capacity() {
		t.Fatalf("remaining %d exceeds capacity %d", got, b.Capacity())
	}
	testutil.AssertEqual(t, b.Waiting(), 0)
}
