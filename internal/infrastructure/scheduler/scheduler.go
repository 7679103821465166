// Package scheduler triggers the recurring sync jobs in process: billing run, retry sweep,
// dirty push and log archive. Each job runs at most once at a time.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobStatus represents the status of the last run of a job
type JobStatus string

const (
	JobStatusIdle    JobStatus = "IDLE"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Well-known job names
const (
	JobBillingRun  = "billing_run"
	JobRetrySweep  = "billing_retry_sweep"
	JobPushPending = "push_pending"
	JobArchiveLogs = "sync_log_archive"
)

// JobFunc is the work of a job
type JobFunc func(ctx context.Context) error

// Job is a named unit of recurring work
type Job struct {
	Name     string
	Schedule Schedule
	Run      JobFunc
}

// JobState is a snapshot of a job's bookkeeping
type JobState struct {
	Name           string     `json:"name"`
	Schedule       string     `json:"schedule"`
	Status         JobStatus  `json:"status"`
	Runs           int        `json:"runs"`
	LastStartedAt  *time.Time `json:"last_started_at,omitempty"`
	LastFinishedAt *time.Time `json:"last_finished_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

type jobEntry struct {
	job       Job
	running   bool
	triggered time.Time
	state     JobState
}

// Config holds scheduler configuration
type Config struct {
	// CheckInterval is how often schedules are evaluated
	CheckInterval time.Duration
	// JobTimeout bounds each run; zero means no timeout
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		CheckInterval: time.Minute,
		JobTimeout:    30 * time.Minute,
	}
}

// Scheduler evaluates job schedules on a ticker and runs due jobs in their own goroutine
type Scheduler struct {
	config Config
	logger *zap.Logger
	clock  func() time.Time

	mu        sync.Mutex
	jobs      map[string]*jobEntry
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	startedAt time.Time
}

// New creates a scheduler
func New(config Config, logger *zap.Logger) *Scheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		config: config,
		logger: logger,
		clock:  time.Now,
		jobs:   make(map[string]*jobEntry),
	}
}

// SetClock overrides the time source
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Register adds a job. Jobs registered after Start are picked up on the next tick.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Run == nil || job.Schedule == nil {
		return fmt.Errorf("%w: job needs a name, a schedule and a function", ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	s.jobs[job.Name] = &jobEntry{
		job: job,
		state: JobState{
			Name:     job.Name,
			Schedule: job.Schedule.String(),
			Status:   JobStatusIdle,
		},
	}
	return nil
}

// Start starts the trigger loop
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.startedAt = s.clock()
	jobCount := len(s.jobs)
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Sync scheduler started",
		zap.Int("jobs", jobCount),
		zap.Duration("check_interval", s.config.CheckInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *Scheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
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

// tick starts every job whose schedule is due
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock()

	s.mu.Lock()
	var due []*jobEntry
	for _, e := range s.jobs {
		since := e.triggered
		if since.IsZero() {
			since = s.startedAt
		}
		if !e.job.Schedule.Due(since, now) {
			continue
		}
		e.triggered = now
		if e.running {
			s.logger.Warn("Skipping scheduled run, previous run still in progress",
				zap.String("job", e.job.Name),
			)
			continue
		}
		e.running = true
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *jobEntry) {
			defer s.wg.Done()
			_ = s.execute(ctx, e)
		}(e)
	}
}

// RunNow runs a registered job synchronously, outside its schedule
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	e, err := s.acquire(name)
	if err != nil {
		return err
	}
	return s.execute(ctx, e)
}

// Exclusive runs fn under the overlap guard of a registered job, so a manual trigger and a
// scheduled run of the same job never run concurrently. Returns ErrJobAlreadyRunning when
// the guard is taken.
func (s *Scheduler) Exclusive(ctx context.Context, name string, fn JobFunc) error {
	e, err := s.acquire(name)
	if err != nil {
		return err
	}
	return s.executeFunc(ctx, e, fn)
}

func (s *Scheduler) acquire(name string) (*jobEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if e.running {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, name)
	}
	e.running = true
	return e, nil
}

func (s *Scheduler) execute(ctx context.Context, e *jobEntry) error {
	return s.executeFunc(ctx, e, e.job.Run)
}

// executeFunc runs fn for an acquired entry and releases it
func (s *Scheduler) executeFunc(ctx context.Context, e *jobEntry, fn JobFunc) (err error) {
	started := s.clock()
	s.mu.Lock()
	e.state.Status = JobStatusRunning
	e.state.LastStartedAt = &started
	s.mu.Unlock()

	jobCtx := ctx
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	s.logger.Info("Running job", zap.String("job", e.job.Name))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", e.job.Name, r)
		}

		finished := s.clock()
		s.mu.Lock()
		e.running = false
		e.state.Runs++
		e.state.LastFinishedAt = &finished
		if err != nil {
			e.state.Status = JobStatusFailed
			e.state.LastError = err.Error()
		} else {
			e.state.Status = JobStatusSuccess
			e.state.LastError = ""
		}
		s.mu.Unlock()

		if err != nil {
			s.logger.Error("Job failed",
				zap.String("job", e.job.Name),
				zap.Duration("duration", finished.Sub(started)),
				zap.Error(err),
			)
			return
		}
		s.logger.Info("Job completed",
			zap.String("job", e.job.Name),
			zap.Duration("duration", finished.Sub(started)),
		)
	}()

	return fn(jobCtx)
}

// Jobs returns the state of every registered job sorted by name
func (s *Scheduler) Jobs() []JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make([]JobState, 0, len(s.jobs))
	for _, e := range s.jobs {
		states = append(states, e.state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Name < states[j].Name })
	return states
}

// IsRunning reports whether the trigger loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
