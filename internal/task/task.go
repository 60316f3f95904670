// Package task models one unit of dispatchable work and its lifecycle.
// Transition functions record what happened; retry and failure policy
// belongs to the orchestrator.
package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeInference       Type = "inference"
	TypeGatewaySend     Type = "gateway_send"
	TypeGatewayFetch    Type = "gateway_fetch"
	TypeVoiceTranscribe Type = "voice_transcribe"
	TypeSkillExecute    Type = "skill_execute"
	TypeMemorySync      Type = "memory_sync"
	TypeWebSearch       Type = "web_search"
	TypeCronSchedule    Type = "cron_schedule"
	TypeHealthCheck     Type = "health_check"
	TypeNodeCommand     Type = "node_command"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusDispatched Status = "dispatched"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusTimedOut   Status = "timed_out"
)

const (
	DefaultMaxRetries = 2
	DefaultTimeout    = 30 * time.Second
)

// Task is owned exclusively by the orchestrator for its entire life;
// the transition methods below are the only permitted mutators and
// carry no internal locking.
type Task struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Input     map[string]any    `json:"input"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`

	// Priority is carried on the wire but not consulted by the
	// scheduler; tasks dispatch in submission order.
	Priority   int           `json:"priority"`
	MaxRetries int           `json:"max_retries"`
	Timeout    time.Duration `json:"timeout"`

	Status       Status     `json:"status"`
	AssignedNode string     `json:"assigned_node,omitempty"`
	Result       string     `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	RetryCount   int        `json:"retry_count"`
}

func New(t Type, input map[string]any) *Task {
	if input == nil {
		input = map[string]any{}
	}
	return &Task{
		ID:         uuid.New().String(),
		Type:       t,
		Input:      input,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
		Status:     StatusPending,
	}
}

func (t *Task) MarkDispatched(nodeID string) {
	now := time.Now().UTC()
	t.Status = StatusDispatched
	t.AssignedNode = nodeID
	t.DispatchedAt = &now
}

func (t *Task) MarkRunning() {
	t.Status = StatusRunning
}

func (t *Task) MarkCompleted(result string) {
	now := time.Now().UTC()
	t.Status = StatusCompleted
	t.Result = result
	t.CompletedAt = &now
}

func (t *Task) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	t.Status = StatusFailed
	t.Error = errMsg
	t.CompletedAt = &now
}

// MarkCancelled is advisory; nothing in the coordinator calls it
// automatically.
func (t *Task) MarkCancelled() {
	now := time.Now().UTC()
	t.Status = StatusCancelled
	t.CompletedAt = &now
}

func (t *Task) MarkTimedOut() {
	now := time.Now().UTC()
	t.Status = StatusTimedOut
	t.Error = fmt.Sprintf("timed out after %dms", t.Timeout.Milliseconds())
	t.CompletedAt = &now
}

func (t *Task) IsTerminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

func (t *Task) IsRetryable() bool {
	return t.Status == StatusFailed && t.RetryCount < t.MaxRetries
}

// Elapsed is the time from dispatch to completion, or to now while the
// task is still open. Zero if the task was never dispatched.
func (t *Task) Elapsed() time.Duration {
	if t.DispatchedAt == nil {
		return 0
	}
	if t.CompletedAt != nil {
		return t.CompletedAt.Sub(*t.DispatchedAt)
	}
	return time.Since(*t.DispatchedAt)
}
