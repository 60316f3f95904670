package orchestrator

import (
	"log/slog"
	"time"

	"github.com/avramakis/hivemind/internal/task"
)

// SubmitTask enqueues a task and returns its id immediately; dispatch
// happens on the next loop tick.
func (o *Orchestrator) SubmitTask(t *task.Task) string {
	o.queue.Enqueue(t)
	if o.metrics != nil {
		o.metrics.RecordSubmitted()
	}
	o.publishTaskEvent(t, "task_submitted", nil)
	slog.Debug("task submitted", "task", t.ID, "type", t.Type)
	return t.ID
}

func (o *Orchestrator) SubmitInference(prompt, model string) string {
	t := task.New(task.TypeInference, map[string]any{"prompt": prompt})
	if model != "" {
		t.Input["model"] = model
	}
	t.Priority = 5
	t.Timeout = 60 * time.Second
	return o.SubmitTask(t)
}

func (o *Orchestrator) SubmitGatewaySend(platform, recipient, text string) string {
	t := task.New(task.TypeGatewaySend, map[string]any{
		"platform":  platform,
		"recipient": recipient,
		"text":      text,
	})
	t.Priority = 7
	t.Timeout = 15 * time.Second
	return o.SubmitTask(t)
}

func (o *Orchestrator) SubmitVoiceTranscription(audioB64, format string) string {
	t := task.New(task.TypeVoiceTranscribe, map[string]any{
		"audio":  audioB64,
		"format": format,
	})
	t.Priority = 6
	t.Timeout = 120 * time.Second
	return o.SubmitTask(t)
}

func (o *Orchestrator) SubmitSkillExecution(skill string, args map[string]any) string {
	input := map[string]any{"skill": skill}
	if args != nil {
		input["args"] = args
	}
	t := task.New(task.TypeSkillExecute, input)
	t.Priority = 5
	t.Timeout = 45 * time.Second
	return o.SubmitTask(t)
}

func (o *Orchestrator) SubmitMemorySync(entries []map[string]any) string {
	t := task.New(task.TypeMemorySync, map[string]any{"entries": entries})
	t.Priority = 3
	t.Timeout = 60 * time.Second
	return o.SubmitTask(t)
}

// GetTaskStatus looks the id up in the active map, then the completed
// history. Pending tasks still in the queue are not visible.
func (o *Orchestrator) GetTaskStatus(id string) (*task.Task, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if t, ok := o.active[id]; ok {
		return t, true
	}
	for i := len(o.history) - 1; i >= 0; i-- {
		if o.history[i].ID == id {
			return o.history[i], true
		}
	}
	return nil, false
}
