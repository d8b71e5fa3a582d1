// Package scheduler starts demo runs on a cron schedule, for unattended
// panels that should replay the collaboration on their own.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/conclave/pkg/schema"
)

// Starter is the part of the sequencer the scheduler drives.
type Starter interface {
	Start(ctx context.Context, task string) (string, error)
	Running() bool
}

// JobSpec configures one autoplay job.
type JobSpec struct {
	Schedule string `json:"schedule"`
	Task     string `json:"task"`
}

// Job is the runtime state of a scheduled job.
type Job struct {
	ID            string     `json:"id"`
	Schedule      string     `json:"schedule"`
	Task          string     `json:"task"`
	NextRunAt     time.Time  `json:"next_run_at"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastRunID     string     `json:"last_run_id,omitempty"`
}

// Last run statuses.
const (
	StatusStarted = "started"
	StatusBusy    = "busy"
	StatusError   = "error"
)

// Scheduler checks its jobs on every tick and starts the ones that are due.
type Scheduler struct {
	runner   Starter
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	jobsMu sync.Mutex
	jobs   []*Job
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithInterval sets how often jobs are checked. Default 30s.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler parses every job's cron expression. Standard five-field
// expressions and descriptors such as "@every 10m" are accepted.
func NewScheduler(runner Starter, specs []JobSpec, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		interval: 30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	now := s.now().UTC()
	for i, spec := range specs {
		if strings.TrimSpace(spec.Task) == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "autoplay job %d: task is empty", i)
		}
		next, err := s.CalculateNextRun(spec.Schedule, now)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "autoplay job %d: %v", i, err).WithCause(err)
		}
		s.jobs = append(s.jobs, &Job{
			ID:        fmt.Sprintf("autoplay-%d", i),
			Schedule:  spec.Schedule,
			Task:      spec.Task,
			NextRunAt: next,
		})
	}
	return s, nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts every due job. A job that finds a run in progress is skipped
// until its next slot.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now().UTC()

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	for _, job := range s.jobs {
		if job.NextRunAt.After(now) {
			continue
		}
		s.runJob(ctx, job, now)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) {
	status := StatusStarted
	if s.runner.Running() {
		status = StatusBusy
		s.logger.Info("autoplay skipped, run in progress", slog.String("job_id", job.ID))
	} else {
		runID, err := s.runner.Start(ctx, job.Task)
		switch {
		case schema.HasCode(err, schema.ErrCodeConflict):
			status = StatusBusy
		case err != nil:
			status = StatusError
			s.logger.Error("autoplay start failed",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		default:
			job.LastRunID = runID
			s.logger.Info("autoplay run started",
				slog.String("job_id", job.ID),
				slog.String("run_id", runID),
			)
		}
	}

	job.LastRunAt = &now
	job.LastRunStatus = status
	// The expression was validated in NewScheduler.
	job.NextRunAt, _ = s.CalculateNextRun(job.Schedule, now)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Jobs returns a copy of the jobs' current state.
func (s *Scheduler) Jobs() []Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make([]Job, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = *j
	}
	return out
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
