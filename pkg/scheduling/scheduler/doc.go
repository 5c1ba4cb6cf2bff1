/*
Package scheduler provides the periodic task runners that drive bucket
refills.

A Periodic owns exactly one task and one interval. Runs are serialised, and
Stop is cancel-then-join: it returns a channel that closes once the run in
progress, if any, has finished. No run starts after Stop.

	p, err := scheduler.NewCron(time.Second)
	if err != nil {
		return err
	}
	p.Start(func() { refill() })
	defer func() { <-p.Stop() }()

CronPeriodic is backed by github.com/robfig/cron/v3 with a constant-delay
schedule and the SkipIfStillRunning and Recover job wrappers. Its resolution
is one second.

Manual runs the task only when Tick is called, which makes refill behaviour
testable without wall-clock sleeps:

	m := scheduler.NewManual()
	t, _ := throttle.NewWithConfigSafe(throttle.Config{Capacity: 100, Average: 20, Periodic: m})
	m.Tick() // one refill
*/
package scheduler
