package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ScheduledJob is a named job submitted on every scheduler tick.
type ScheduledJob struct {
	Name string
	Run  Job
}

// JobScheduler runs a list of jobs on a fixed schedule.
type JobScheduler struct {
	Name     string
	interval time.Duration
	Jobs     []ScheduledJob
	Pool     Pool
	mu       sync.RWMutex
}

func NewJobScheduler(name string, interval time.Duration, pool Pool) *JobScheduler {
	return &JobScheduler{
		Name:     name,
		interval: interval,
		Jobs:     make([]ScheduledJob, 0),
		Pool:     pool,
	}
}

func (s *JobScheduler) AddJob(name string, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, ScheduledJob{Name: name, Run: job})
}

// Run submits every job once immediately, then on each tick until ctx is done.
func (s *JobScheduler) Run(ctx context.Context) {
	slog.Info("scheduler running", "scheduler", s.Name, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.submitJobs(ctx)
	for {
		select {
		case <-ticker.C:
			s.submitJobs(ctx)
		case <-ctx.Done():
			slog.Info("scheduler shutting down", "scheduler", s.Name)
			return
		}
	}
}

func (s *JobScheduler) submitJobs(ctx context.Context) {
	s.mu.RLock()
	jobsToRun := make([]ScheduledJob, len(s.Jobs))
	copy(jobsToRun, s.Jobs)
	s.mu.RUnlock()

	for _, job := range jobsToRun {
		// Use a short timeout for the submit itself
		submitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.Pool.SubmitJob(submitCtx, job.Run); err != nil {
			slog.Warn("failed to submit scheduled job", "scheduler", s.Name, "job", job.Name, "error", err)
		}
		cancel()
	}
}
