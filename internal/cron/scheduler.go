package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/events"
	"github.com/avramakis/hivemind/internal/store"
	"github.com/avramakis/hivemind/internal/task"
)

// Submitter is the orchestrator surface the scheduler needs.
type Submitter interface {
	SubmitTask(t *task.Task) string
}

type Scheduler struct {
	store        *store.Store
	orch         Submitter
	events       *events.Client
	pollInterval time.Duration
	reloadCh     chan struct{}
}

func New(s *store.Store, orch Submitter, ev *events.Client, cfg config.CronConfig) *Scheduler {
	return &Scheduler{
		store:        s,
		orch:         orch,
		events:       ev,
		pollInterval: cfg.PollInterval,
		reloadCh:     make(chan struct{}, 1),
	}
}

// UpdatePollInterval changes the poll cadence and signals the run loop
// to reset its ticker.
func (s *Scheduler) UpdatePollInterval(d time.Duration) {
	s.pollInterval = d
	select {
	case s.reloadCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	if s.pollInterval == 0 {
		s.pollInterval = 30 * time.Second
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	slog.Info("cron scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cron scheduler stopped")
			return
		case <-s.reloadCh:
			ticker.Reset(s.pollInterval)
			slog.Info("cron scheduler reloaded", "poll_interval", s.pollInterval)
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Scheduler) poll() {
	due, err := s.store.DueSchedules(time.Now())
	if err != nil {
		slog.Error("failed to query due schedules", "error", err)
		return
	}

	for _, sc := range due {
		s.fire(sc)
	}
}

// fire submits one due schedule as a task and records the outcome.
func (s *Scheduler) fire(sc store.Schedule) {
	slog.Info("firing schedule", "id", sc.ID, "name", sc.Name, "task_type", sc.TaskType)

	taskID, err := s.submit(sc)

	var lastStatus, lastError string
	if err != nil {
		lastStatus = "error"
		lastError = err.Error()
		slog.Error("schedule submission failed", "id", sc.ID, "error", err)
	} else {
		lastStatus = "submitted"
	}

	nextRun := NextRun(sc.Spec)

	if err := s.store.UpdateScheduleRun(sc.ID, lastStatus, lastError, nextRun); err != nil {
		slog.Error("failed to update schedule run", "id", sc.ID, "error", err)
	}

	s.publishFired(sc, lastStatus, taskID)

	if nextRun == nil {
		slog.Info("no next run, completing one-off schedule", "id", sc.ID, "name", sc.Name)
		if err := s.store.UpdateScheduleStatus(sc.ID, "completed"); err != nil {
			slog.Error("failed to complete schedule", "id", sc.ID, "error", err)
		}
	}
}

func (s *Scheduler) submit(sc store.Schedule) (string, error) {
	typ := task.Type(sc.TaskType)

	input := map[string]any{}
	if sc.Input != "" {
		if err := json.Unmarshal([]byte(sc.Input), &input); err != nil {
			return "", fmt.Errorf("parse schedule input: %w", err)
		}
	}

	t := task.New(typ, input)
	t.Metadata = map[string]string{
		"schedule_id":   sc.ID,
		"schedule_name": sc.Name,
	}
	return s.orch.SubmitTask(t), nil
}

func (s *Scheduler) publishFired(sc store.Schedule, status, taskID string) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"schedule_id": sc.ID,
		"name":        sc.Name,
		"status":      status,
	}
	if taskID != "" {
		data["task_id"] = taskID
	}
	if err := s.events.PublishEvent(events.TopicSchedules, "schedule_fired", data); err != nil {
		slog.Debug("event publish failed", "event", "schedule_fired", "error", err)
	}
}
