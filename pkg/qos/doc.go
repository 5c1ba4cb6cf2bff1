// Package qos changes the QoS limits of volumes.
//
// A Coordinator runs each change as a sequence of steps:
//
//  1. take the volume's exclusive lock (optional Locker)
//  2. block writes on the locally open volume, if one is attached
//  3. persist the merged limits to the Store
//  4. notify other processes (optional Notifier)
//  5. apply the limits to the local volume
//
// and then unblocks writes and releases the lock. If a step fails, the
// stored limits are restored and a *StepError names the failed step.
//
// Set merges: a zero field keeps the stored value, so changing the BPS
// limits leaves the IOPS limits alone. Clear zeroes one dimension, which
// disables throttling for it.
//
//	c, err := qos.NewCoordinator(qos.Config{
//		Store:    store.NewRedisStore(store.RedisConfig{Addr: "localhost:6379"}),
//		Notifier: qos.NewNATSNotifier(conn, ""),
//	})
//	c.Attach("vol1", gate)
//	limits, err := c.Set(ctx, "vol1", volume.Limits{IOPSBurst: 1000, IOPSAvg: 500})
//
// Processes that have the volume open but did not make the change run a
// Watcher, which applies published updates to their gates.
package qos
