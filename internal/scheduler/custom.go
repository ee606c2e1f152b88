package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/majordomo/internal/store"
	"github.com/ShayCichocki/majordomo/pkg/models"
)

// TaskActions is what a firing custom task can do. The orchestrator
// implements it; the scheduler stays ignorant of chat and notification
// transport.
type TaskActions interface {
	// PromptCOO injects the task message as a prompt for the COO to act
	// on, surfacing the reply in chat.
	PromptCOO(ctx context.Context, task *models.ScheduledTask) error
	// RunBackground runs the instruction without surfacing a reply.
	RunBackground(ctx context.Context, task *models.ScheduledTask) error
	// Notify raises a plain notification to clients.
	Notify(ctx context.Context, task *models.ScheduledTask) error
}

// CustomScheduler manages the dynamic, user-authored set of periodic tasks.
// Tasks are loaded from persisted rows at boot and mutated via CRUD; each
// enabled task runs on its own interval, clamped to the system-wide minimum.
type CustomScheduler struct {
	db          *store.DB
	actions     TaskActions
	minInterval time.Duration
	logf        func(format string, args ...interface{})

	mu      sync.Mutex
	running map[string]context.CancelFunc
	baseCtx context.Context
}

// NewCustomScheduler creates a CustomScheduler. logf may be nil.
func NewCustomScheduler(db *store.DB, actions TaskActions, minInterval time.Duration, logf func(format string, args ...interface{})) *CustomScheduler {
	if minInterval <= 0 {
		minInterval = 30 * time.Second
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &CustomScheduler{
		db:          db,
		actions:     actions,
		minInterval: minInterval,
		logf:        logf,
		running:     make(map[string]context.CancelFunc),
	}
}

// LoadAndStart loads persisted tasks and starts loops for the enabled ones.
func (s *CustomScheduler) LoadAndStart(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	tasks, err := s.db.ListScheduledTasks()
	if err != nil {
		return fmt.Errorf("load scheduled tasks: %w", err)
	}
	for _, t := range tasks {
		if t.Enabled {
			s.StartTask(t)
		}
	}
	return nil
}

// CreateTask persists a new task (interval clamped to the minimum) and
// starts it if enabled.
func (s *CustomScheduler) CreateTask(t *models.ScheduledTask) error {
	if !t.Mode.Valid() {
		return fmt.Errorf("create task: invalid mode %q", t.Mode)
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.IntervalMs = s.clampMs(t.IntervalMs)
	t.CreatedAt = time.Now().UTC()

	if err := s.db.CreateScheduledTask(t); err != nil {
		return err
	}
	if t.Enabled {
		s.StartTask(t)
	}
	return nil
}

// UpdateTask rewrites a task's settings (interval clamped) and restarts its
// loop so the new settings take effect immediately.
func (s *CustomScheduler) UpdateTask(t *models.ScheduledTask) error {
	if !t.Mode.Valid() {
		return fmt.Errorf("update task: invalid mode %q", t.Mode)
	}
	t.IntervalMs = s.clampMs(t.IntervalMs)
	if err := s.db.UpdateScheduledTask(t); err != nil {
		return err
	}

	s.StopTask(t.ID)
	if t.Enabled {
		s.StartTask(t)
	}
	return nil
}

// DeleteTask stops and removes a task.
func (s *CustomScheduler) DeleteTask(id string) error {
	s.StopTask(id)
	return s.db.DeleteScheduledTask(id)
}

// StartTask begins the fire loop for a task. Starting an already running
// task is a no-op.
func (s *CustomScheduler) StartTask(t *models.ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.running[t.ID]; exists {
		return
	}
	base := s.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	s.running[t.ID] = cancel

	interval := s.clampDuration(time.Duration(t.IntervalMs) * time.Millisecond)
	task := *t
	go s.runTask(ctx, &task, interval)
}

// StopTask cancels a task's fire loop if it is running.
func (s *CustomScheduler) StopTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, exists := s.running[id]; exists {
		cancel()
		delete(s.running, id)
	}
}

// RestartTask reloads a task from the database and restarts its loop.
func (s *CustomScheduler) RestartTask(id string) error {
	t, err := s.db.GetScheduledTask(id)
	if err != nil {
		return err
	}
	s.StopTask(id)
	if t.Enabled {
		s.StartTask(t)
	}
	return nil
}

// Running reports whether a task's loop is live.
func (s *CustomScheduler) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.running[id]
	return exists
}

// PseudoAgents returns UI representations of the enabled tasks so clients
// can show scheduled automations alongside real agents. These have no
// persisted agent rows.
func (s *CustomScheduler) PseudoAgents() ([]*models.Agent, error) {
	tasks, err := s.db.ListScheduledTasks()
	if err != nil {
		return nil, err
	}

	var agents []*models.Agent
	for _, t := range tasks {
		if !t.Enabled {
			continue
		}
		agents = append(agents, &models.Agent{
			ID:        "scheduled-task:" + t.ID,
			Name:      t.Name,
			Role:      models.RoleAdminAssistant,
			Status:    models.AgentIdle,
			Pseudo:    true,
			CreatedAt: t.CreatedAt,
		})
	}
	return agents, nil
}

// runTask fires the task on its interval until cancelled.
func (s *CustomScheduler) runTask(ctx context.Context, t *models.ScheduledTask, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if err := s.fire(ctx, t); err != nil {
			s.logf("[scheduler] custom task %s (%s): %v", t.ID, t.Name, err)
		}
		if err := s.db.TouchScheduledTask(t.ID, time.Now().UTC()); err != nil {
			s.logf("[scheduler] touch task %s: %v", t.ID, err)
		}
	}
}

// fire dispatches one firing according to the task's mode.
func (s *CustomScheduler) fire(ctx context.Context, t *models.ScheduledTask) error {
	switch t.Mode {
	case models.ModeCOOPrompt:
		return s.actions.PromptCOO(ctx, t)
	case models.ModeCOOBackground:
		return s.actions.RunBackground(ctx, t)
	case models.ModeNotification:
		return s.actions.Notify(ctx, t)
	default:
		return fmt.Errorf("unknown task mode %q", t.Mode)
	}
}

// clampMs enforces the system-wide minimum interval on a millisecond value.
func (s *CustomScheduler) clampMs(ms int64) int64 {
	min := s.minInterval.Milliseconds()
	if ms < min {
		return min
	}
	return ms
}

// clampDuration enforces the system-wide minimum interval.
func (s *CustomScheduler) clampDuration(d time.Duration) time.Duration {
	if d < s.minInterval {
		return s.minInterval
	}
	return d
}
