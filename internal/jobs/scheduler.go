package jobs

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

type Schedules struct {
	SessionPurge string
	LogCleanup   string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      *Jobs
	schedules Schedules
	logger    *slog.Logger
}

func NewScheduler(jobs *Jobs, schedules Schedules, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:      c,
		jobs:      jobs,
		schedules: schedules,
		logger:    logger,
	}
}

// Start registers the jobs and starts the scheduler. A job whose schedule
// does not parse is logged and left out.
func (s *Scheduler) Start() {
	s.add("idle session purge", s.schedules.SessionPurge, s.jobs.PurgeIdleSessions)
	s.add("log cleanup", s.schedules.LogCleanup, s.jobs.CleanupLogs)
	s.cron.Start()
}

func (s *Scheduler) add(name, spec string, fn func()) {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		s.logger.Error("failed to schedule job", "job", name, "schedule", spec, "error", err)
		return
	}
	s.logger.Info("scheduled job", "job", name, "schedule", spec)
}

// Entries returns the number of registered jobs.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
