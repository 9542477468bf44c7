package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2beens/fittrack/internal/telemetry/metrics"
	"github.com/2beens/fittrack/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule returns the next run time strictly after now.
type Schedule interface {
	Next(now time.Time) time.Time
}

// Every runs a job at a fixed interval.
type Every time.Duration

func (e Every) Next(now time.Time) time.Time {
	return now.Add(time.Duration(e))
}

// DailyAt runs a job once a day at the given local wall clock time.
type DailyAt struct {
	Hour   int
	Minute int
}

func (d DailyAt) Next(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), d.Hour, d.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, d.Hour, d.Minute, 0, 0, now.Location())
	}
	return next
}

type scheduledJob struct {
	job      Job
	schedule Schedule
}

// Scheduler runs each job in its own goroutine until the context passed to Start is done.
// A failing run is logged and counted, the loop keeps going.
type Scheduler struct {
	metricsManager *metrics.Manager
	jobs           []scheduledJob
	wg             sync.WaitGroup
	// ability to inject the clock (for unit tests)
	Now func() time.Time
}

func NewScheduler(metricsManager *metrics.Manager) *Scheduler {
	return &Scheduler{
		metricsManager: metricsManager,
		Now:            time.Now,
	}
}

func (s *Scheduler) Add(job Job, schedule Schedule) {
	s.jobs = append(s.jobs, scheduledJob{job: job, schedule: schedule})
}

func (s *Scheduler) Start(ctx context.Context) {
	for _, sj := range s.jobs {
		s.wg.Add(1)
		go func(sj scheduledJob) {
			defer s.wg.Done()
			s.loop(ctx, sj)
		}(sj)
	}
	log.Debugf("scheduler started with %d jobs", len(s.jobs))
}

// Wait blocks until all job loops have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sj scheduledJob) {
	for {
		now := s.Now()
		next := sj.schedule.Next(now)
		log.Tracef("job [%s] next run at %s", sj.job.Name(), next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Debugf("job [%s] stopped", sj.job.Name())
			return
		case <-timer.C:
			_ = RunOnce(ctx, sj.job, s.metricsManager)
		}
	}
}

// RunOnce runs the job a single time, recording the outcome.
func RunOnce(ctx context.Context, job Job, metricsManager *metrics.Manager) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "jobs."+job.Name())
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job [%s] panicked: %v", job.Name(), r)
		}

		status := "ok"
		if err != nil {
			status = "error"
			log.Errorf("job [%s] failed: %s", job.Name(), err)
		}
		metricsManager.CounterJobRuns.With(prometheus.Labels{
			"job":    job.Name(),
			"status": status,
		}).Inc()
	}()

	startedAt := time.Now()
	err = job.Run(ctx)
	log.Debugf("job [%s] done in %s", job.Name(), time.Since(startedAt))
	return err
}
