// Package volume admits I/O to a block volume under per-volume QoS limits.
//
// A Gate holds two throttles, one counting operations (IOPS) and one
// counting bytes (BPS). Each Limits dimension has a burst, the bucket
// capacity, and an average refilled every tick. A zero burst disables the
// dimension. The Type field restricts throttling to reads or writes.
//
//	g, err := volume.New("vol1", volume.Limits{
//		IOPSBurst: 1000, IOPSAvg: 500,
//		BPSBurst: 64 << 20, BPSAvg: 32 << 20,
//	})
//	if err != nil {
//		return err
//	}
//	defer g.Close()
//
//	w := volume.NewWriterAt(ctx, g, file)
//
// A request larger than the BPS burst cannot ever fit the bucket. It waits
// for one unit and is charged in full; the debt delays whoever comes next.
//
// BlockWrites and UnblockWrites hold new writes back while a configuration
// change is in progress. BlockWrites returns once every admitted write has
// completed.
//
// TryAdmit never waits: it reports ErrRateLimited or ErrWritesBlocked from
// pkg/common/errors instead.
package volume
