package orchestrator

import (
	"sync"

	"github.com/avramakis/hivemind/internal/task"
)

// taskQueue is the unbounded FIFO of pending tasks. Retries re-enter
// at the tail, behind newly submitted work.
type taskQueue struct {
	mu      sync.Mutex
	pending []*task.Task
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

func (q *taskQueue) Enqueue(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, t)
}

func (q *taskQueue) Dequeue() (*task.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, false
	}

	t := q.pending[0]
	q.pending = q.pending[1:]
	return t, true
}

func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
