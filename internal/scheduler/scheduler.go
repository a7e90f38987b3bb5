package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task is already running")
)

// TaskFunc is the function signature for scheduled tasks.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes one recurring background task. Every worker in
// the system runs on a fixed wall-clock interval.
type TaskConfig struct {
	ID          string
	Name        string
	Description string
	Every       time.Duration
	Func        TaskFunc
	RunOnStart  bool // execute once immediately when the scheduler starts
}

// TaskInfo is the API view of a registered task.
type TaskInfo struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Interval    string     `json:"interval"`
	LastRun     *time.Time `json:"lastRun,omitempty"`
	NextRun     *time.Time `json:"nextRun,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
	Running     bool       `json:"running"`
}

type task struct {
	cfg     TaskConfig
	job     gocron.Job
	lastRun *time.Time
	lastErr string
	running bool
}

func (t *task) info() TaskInfo {
	info := TaskInfo{
		ID:          t.cfg.ID,
		Name:        t.cfg.Name,
		Description: t.cfg.Description,
		Interval:    t.cfg.Every.String(),
		LastRun:     t.lastRun,
		LastError:   t.lastErr,
		Running:     t.running,
	}
	if next, err := t.job.NextRun(); err == nil {
		info.NextRun = &next
	}
	return info
}

// Scheduler runs the background workers on their configured cadences.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*task
}

// New creates a new scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*task),
	}, nil
}

// RegisterTask adds a recurring task. IDs must be unique; the interval
// must be positive.
func (s *Scheduler) RegisterTask(cfg TaskConfig) error {
	if cfg.Every <= 0 {
		return fmt.Errorf("task %q has no interval", cfg.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[cfg.ID]; exists {
		return fmt.Errorf("task with ID %q already registered", cfg.ID)
	}

	id := cfg.ID
	job, err := s.gocron.NewJob(
		gocron.DurationJob(cfg.Every),
		gocron.NewTask(func() { s.run(id) }),
		gocron.WithName(cfg.Name),
		gocron.WithTags(cfg.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", cfg.ID, err)
	}

	s.tasks[cfg.ID] = &task{cfg: cfg, job: job}

	s.logger.Info().
		Str("id", cfg.ID).
		Str("interval", cfg.Every.String()).
		Bool("runOnStart", cfg.RunOnStart).
		Msg("registered task")
	return nil
}

// run executes one task iteration, guarding against overlap with a
// manual trigger of the same task.
func (s *Scheduler) run(id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok || t.running {
		s.mu.Unlock()
		return
	}
	t.running = true
	s.mu.Unlock()

	started := time.Now()
	err := t.cfg.Func(context.Background())
	elapsed := time.Since(started)

	s.mu.Lock()
	t.running = false
	t.lastRun = &started
	t.lastErr = ""
	if err != nil {
		t.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", id).Dur("duration", elapsed).Msg("task failed")
		return
	}
	s.logger.Debug().Str("id", id).Dur("duration", elapsed).Msg("task completed")
}

// Start begins the schedule and kicks off RunOnStart tasks.
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("starting scheduler")
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, t := range s.tasks {
		if t.cfg.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.run(id)
	}
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	s.logger.Info().Msg("stopping scheduler")
	return s.gocron.Shutdown()
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	t, ok := s.tasks[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	if t.running {
		return fmt.Errorf("%w: %q", ErrTaskRunning, id)
	}

	go s.run(id)
	return nil
}

// ListTasks returns the state of every registered task.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.info())
	}
	return out
}

// GetTask returns the state of one task.
func (s *Scheduler) GetTask(id string) (*TaskInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	info := t.info()
	return &info, nil
}
