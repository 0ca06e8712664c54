/**
 * @description
 * Cron scheduler setup for the loan servicing jobs.
 */
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Schedules holds the cron expressions for each job.
type Schedules struct {
	Disbursement  string
	EmiCollection string
	OtpPurge      string
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	schedules Schedules
	log       *logrus.Entry
}

// NewScheduler creates a new scheduler instance. A panicking job is recovered
// and logged; overlapping runs of the same job are skipped.
func NewScheduler(jobs *Jobs, schedules Schedules, logger *logrus.Logger) *Scheduler {
	entry := logger.WithField("component", "cron")
	cronLogger := cron.PrintfLogger(entry)
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		schedules: schedules,
		log:       entry,
	}
}

// Register adds every job. An invalid expression aborts registration.
func (s *Scheduler) Register() error {
	entries := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"loan disbursement", s.schedules.Disbursement, s.jobs.DisburseLoans},
		{"EMI collection", s.schedules.EmiCollection, s.jobs.CollectEmis},
		{"OTP purge", s.schedules.OtpPurge, s.jobs.PurgeOtps},
	}

	for _, e := range entries {
		if e.schedule == "" {
			s.log.WithField("job", e.name).Warn("no schedule configured; job disabled")
			continue
		}
		if _, err := s.cron.AddFunc(e.schedule, e.run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", e.name, err)
		}
		s.log.WithFields(logrus.Fields{"job": e.name, "schedule": e.schedule}).Info("scheduled job")
	}
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
