// Package scheduler wraps gocron to drive the gateway's periodic
// maintenance jobs (spec §4.5 hosts-file refresh, §4.7 ircDDB standby
// publication), grounded on USA-RedDragon-DMRHub's
// internal/dmr/netscheduler package: a small struct owning a
// gocron.Scheduler plus a name-keyed job map so jobs can be replaced
// idempotently.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dstargw/core/pkg/logger"
)

// Scheduler owns a gocron.Scheduler and a name-keyed set of registered
// jobs, allowing a named job to be replaced without leaking the old one.
type Scheduler struct {
	log   *logger.Logger
	sched gocron.Scheduler

	mu   sync.Mutex
	jobs map[string]gocron.Job
}

// New creates a Scheduler ready to Start.
func New(log *logger.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("scheduler: new: %w", err)
	}
	return &Scheduler{
		log:   log.WithComponent("scheduler"),
		sched: s,
		jobs:  make(map[string]gocron.Job),
	}, nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() { s.sched.Start() }

// Stop stops all jobs and shuts the scheduler down.
func (s *Scheduler) Stop() {
	if err := s.sched.StopJobs(); err != nil {
		s.log.Warn("failed to stop scheduler jobs", logger.Error(err))
	}
	if err := s.sched.Shutdown(); err != nil {
		s.log.Warn("failed to shut down scheduler", logger.Error(err))
	}
}

// EveryInterval registers (or replaces) a job named name that invokes fn
// every interval, starting after the first interval elapses.
func (s *Scheduler) EveryInterval(name string, interval time.Duration, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[name]; ok {
		if err := s.sched.RemoveJob(existing.ID()); err != nil {
			s.log.Warn("failed to remove existing job", logger.String("job", name), logger.Error(err))
		}
	}

	job, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
	)
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", name, err)
	}

	s.jobs[name] = job
	return nil
}

// Cancel removes a previously registered job by name, if present.
func (s *Scheduler) Cancel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return
	}
	if err := s.sched.RemoveJob(job.ID()); err != nil {
		s.log.Warn("failed to cancel job", logger.String("job", name), logger.Error(err))
	}
	delete(s.jobs, name)
}
