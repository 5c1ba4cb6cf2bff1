/*
Package scheduling provides the task runners behind periodic refills.

  - scheduler: Periodic runners. CronPeriodic runs a task on a fixed
    interval through github.com/robfig/cron/v3; Manual runs it only when
    stepped, for tests and simulations.

Stopping a runner cancels future runs and waits for a run in progress:

	p, _ := scheduler.NewCron(time.Second)
	p.Start(refill)
	<-p.Stop()
*/
package scheduling
