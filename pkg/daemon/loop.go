package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	berthmetrics "github.com/berth-deploy/berth/pkg/metrics"
)

type LoopVars struct {
	// CleanupInterval is how often retention runs for services with
	// automatic cleanup enabled.
	CleanupInterval time.Duration
	// SweepInterval is how often stalled in-flight deployments are
	// looked for.
	SweepInterval time.Duration
	// StaleThreshold is how long a non-terminal deployment's phase may
	// go without advancing before the sweep fails it.
	StaleThreshold time.Duration

	initOnce    sync.Once
	cleanupSoon chan struct{}
	sweepSoon   chan struct{}
}

func (loop *LoopVars) ensureInit() {
	loop.initOnce.Do(func() {
		loop.cleanupSoon = make(chan struct{}, 1)
		loop.sweepSoon = make(chan struct{}, 1)
	})
}

func (d *Daemon) Loop(stop chan struct{}, wg *sync.WaitGroup, logger log.Logger) {
	defer wg.Done()

	// Retention and the stale sweep run at least every interval;
	// being asked explicitly (API-triggered cleanup, tests)
	// intervenes and reschedules the next run.
	cleanupTimer := time.NewTimer(d.CleanupInterval)
	sweepTimer := time.NewTimer(d.SweepInterval)

	// An early sweep picks up deployments orphaned by the previous
	// process before new work starts on top of them.
	d.AskForSweep()

	for {
		select {
		case <-stop:
			logger.Log("stopping", "true")
			return
		case <-d.cleanupSoon:
			if !cleanupTimer.Stop() {
				select {
				case <-cleanupTimer.C:
				default:
				}
			}
			d.runAutoCleanup(context.Background(), logger)
			cleanupTimer.Reset(d.CleanupInterval)
		case <-cleanupTimer.C:
			d.AskForCleanup()
		case <-d.sweepSoon:
			if !sweepTimer.Stop() {
				select {
				case <-sweepTimer.C:
				default:
				}
			}
			d.reclaimStale(context.Background(), logger)
			sweepTimer.Reset(d.SweepInterval)
		case <-sweepTimer.C:
			d.AskForSweep()
		case j := <-d.Jobs.Ready():
			queueLength.Set(float64(d.Jobs.Len()))
			queueDuration.Observe(time.Since(j.EnqueuedAt).Seconds())
			jobLogger := log.With(logger, "jobID", j.ID, "deployment", j.DeploymentID, "service", j.ServiceName)
			jobLogger.Log("state", "in-progress")
			start := time.Now()
			result, err := j.Do(jobLogger)
			jobDuration.With(
				berthmetrics.LabelSuccess, fmt.Sprint(err == nil),
			).Observe(time.Since(start).Seconds())
			if err != nil {
				jobLogger.Log("state", "done", "success", "false", "err", err)
			} else {
				jobLogger.Log("state", "done", "success", "true", "url", result.URL)
			}
		}
	}
}

// Ask for a cleanup pass, or if there's one waiting, let that happen.
func (d *LoopVars) AskForCleanup() {
	d.ensureInit()
	select {
	case d.cleanupSoon <- struct{}{}:
	default:
	}
}

// Ask for a stale sweep, or if there's one waiting, let that happen.
func (d *LoopVars) AskForSweep() {
	d.ensureInit()
	select {
	case d.sweepSoon <- struct{}{}:
	default:
	}
}
