package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/avramakis/hivemind/internal/task"
)

func (o *Orchestrator) reaperLoop(ctx context.Context) {
	defer o.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(o.cfg.ReapDelay):
	}

	ticker := time.NewTicker(o.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.reapOnce()
		}
	}
}

// reapOnce times out active tasks whose dispatch exceeded their budget.
// The failed total increments on every timeout, including ones later
// retried successfully, so it over-counts relative to final outcomes.
// A task completing on a worker in the same instant is a last-write-wins
// race left as is.
func (o *Orchestrator) reapOnce() {
	now := time.Now()

	o.mu.RLock()
	var stale []*task.Task
	for _, t := range o.active {
		if t.DispatchedAt != nil && now.Sub(*t.DispatchedAt) > t.Timeout {
			stale = append(stale, t)
		}
	}
	o.mu.RUnlock()

	for _, t := range stale {
		t.MarkTimedOut()
		o.removeActive(t.ID)
		o.totalFailed.Add(1)
		if o.metrics != nil {
			o.metrics.RecordTimedOut()
		}

		if t.RetryCount < t.MaxRetries {
			t.RetryCount++
			t.Status = task.StatusPending
			o.queue.Enqueue(t)
			if o.metrics != nil {
				o.metrics.RecordRetried()
			}
			o.publishTaskEvent(t, "task_retrying", map[string]any{"retry": t.RetryCount, "error": t.Error})
			slog.Warn("task timed out, retrying", "task", t.ID, "node", t.AssignedNode, "retry", t.RetryCount)
			continue
		}

		o.appendHistory(t)
		o.publishTaskEvent(t, "task_timed_out", map[string]any{"node": t.AssignedNode})
		slog.Error("task timed out", "task", t.ID, "node", t.AssignedNode, "timeout", t.Timeout)
	}

	o.trimHistory()
}

func (o *Orchestrator) trimHistory() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.history) > historyLimit {
		o.history = o.history[len(o.history)-historyLimit:]
	}
}
