/*
Package volqos provides per-volume I/O quality of service: token-bucket
throttles refilled on a fixed cadence, a gate that admits block I/O under
IOPS and BPS limits, and coordinated limit changes across hosts.

Rate Limiting (pkg/ratelimit):
  - bucket: Counting bucket with a FIFO queue of blocked takers
  - throttle: Bucket refilled by Average units every tick, up to Capacity

Scheduling (pkg/scheduling):
  - scheduler: Periodic runners (cron-backed and manually stepped)

Volumes (pkg/volume):
  - Limits, the Gate that admits reads and writes, and io.ReaderAt/WriterAt wrappers

Configuration (pkg/qos):
  - Coordinator: lock, block writes, persist, notify, apply, with rollback
  - store: memory, Redis and MongoDB limit stores and lockers
  - NATS notifier and watcher for propagating changes

Example usage:

	import (
		"github.com/vnykmshr/volqos/pkg/qos"
		"github.com/vnykmshr/volqos/pkg/qos/store"
		"github.com/vnykmshr/volqos/pkg/volume"
	)

	gate, _ := volume.New("vol1", volume.Limits{IOPSBurst: 1000, IOPSAvg: 500})
	defer gate.Close()

	coord, _ := qos.NewCoordinator(qos.Config{Store: store.NewMemoryStore()})
	coord.Attach("vol1", gate)
	coord.Set(ctx, "vol1", volume.Limits{BPSBurst: 64 << 20, BPSAvg: 32 << 20})

	done, err := gate.Admit(ctx, volume.Write, 4096)
	if err == nil {
		defer done()
		// write
	}
*/
package volqos
