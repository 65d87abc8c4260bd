// Package scheduler runs the recurring pipeline passes: the wanted-item
// search batch and the post-process sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/shelfstream/shelfstream/internal/logger"
)

// TaskFunc is one recurring unit of pipeline work.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a recurring task.
type TaskConfig struct {
	ID         string
	Name       string
	Interval   time.Duration
	Func       TaskFunc
	RunOnStart bool
}

// TaskInfo reports one task's state.
type TaskInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  *time.Time    `json:"lastRun,omitempty"`
	Running  bool          `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	running bool
}

// Scheduler manages the recurring tasks. A task never overlaps itself; a run
// triggered while the previous one is still going is dropped.
type Scheduler struct {
	gocron gocron.Scheduler
	log    *logger.Logger
	tasks  map[string]*taskEntry
	mu     sync.RWMutex
}

// New creates a scheduler.
func New(log *logger.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Scheduler{
		gocron: gs,
		log:    log.WithComponent("scheduler"),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// RegisterTask registers a recurring task.
func (s *Scheduler) RegisterTask(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task with ID %q already registered", config.ID)
	}
	if config.Interval <= 0 {
		return fmt.Errorf("task %q has no interval", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.DurationJob(config.Interval),
		gocron.NewTask(func() { s.executeTask(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to create job for task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}
	s.log.Info().
		Str("id", config.ID).
		Str("name", config.Name).
		Dur("interval", config.Interval).
		Msg("Registered task")
	return nil
}

func (s *Scheduler) executeTask(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	startTime := time.Now()
	err := entry.config.Func(context.Background())

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &startTime
	s.mu.Unlock()

	duration := time.Since(startTime)
	if err != nil {
		s.log.Error().Err(err).
			Str("id", taskID).
			Dur("duration", duration).
			Msg("Task failed")
	} else {
		s.log.Debug().
			Str("id", taskID).
			Dur("duration", duration).
			Msg("Task completed")
	}
}

// Start begins the recurring schedule and kicks off RunOnStart tasks.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, taskID := range startup {
		go s.executeTask(taskID)
	}
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	return s.gocron.Shutdown()
}

// RunNow triggers one task outside its schedule.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if entry.running {
		return fmt.Errorf("task %q is already running", taskID)
	}
	go s.executeTask(taskID)
	return nil
}

// ListTasks reports every registered task.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		out = append(out, TaskInfo{
			ID:       entry.config.ID,
			Name:     entry.config.Name,
			Interval: entry.config.Interval,
			LastRun:  entry.lastRun,
			Running:  entry.running,
		})
	}
	return out
}
