// Package orchestrator schedules, dispatches, retries and reaps tasks
// across the node swarm.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/events"
	"github.com/avramakis/hivemind/internal/metrics"
	"github.com/avramakis/hivemind/internal/node"
	"github.com/avramakis/hivemind/internal/task"
)

// Completed, failed and timed-out tasks are kept in memory for status
// lookups; beyond this many the oldest are evicted.
const historyLimit = 200

// Bridge is the external collaborator owning node lookups and the
// blocking network call to a node.
type Bridge interface {
	Nodes() map[string]*node.Node
	OnlineNodes() []*node.Node
	NodesByCapability(c node.Capability) []*node.Node
	DispatchToNode(ctx context.Context, n *node.Node, path string, body []byte) ([]byte, error)
	Ping(ctx context.Context, n *node.Node) (time.Duration, error)
}

type dispatchJob struct {
	task *task.Task
	node *node.Node
}

// Orchestrator owns every task for its entire life: the pending queue,
// the active map and the bounded completed history.
//
// Each periodic loop runs on its own goroutine and dispatch executions
// go through a separately sized worker pool, so a burst of slow
// dispatches cannot stall health checking or reaping.
type Orchestrator struct {
	cfg       config.OrchestratorConfig
	coordID   string
	coordName string
	bridge    Bridge

	queue *taskQueue

	mu      sync.RWMutex
	active  map[string]*task.Task
	history []*task.Task

	totalDispatched atomic.Int64
	totalCompleted  atomic.Int64
	totalFailed     atomic.Int64

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	work    chan dispatchJob

	events  *events.Client
	metrics *metrics.Collector

	cbMu        sync.RWMutex
	onInference func(taskID, text string)
	onGateway   func(taskID, platform, text string)
	onVoice     func(taskID, text string)
}

func New(coord config.CoordinatorConfig, cfg config.OrchestratorConfig, br Bridge) *Orchestrator {
	if cfg.DispatchInterval == 0 {
		cfg.DispatchInterval = time.Second
	}
	if cfg.DispatchBatch == 0 {
		cfg.DispatchBatch = 10
	}
	if cfg.HealthInterval == 0 {
		cfg.HealthInterval = 60 * time.Second
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = 15 * time.Second
	}
	if cfg.ReapDelay == 0 {
		cfg.ReapDelay = 10 * time.Second
	}
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.StalenessThreshold == 0 {
		cfg.StalenessThreshold = 180 * time.Second
	}

	return &Orchestrator{
		cfg:       cfg,
		coordID:   coord.ID,
		coordName: coord.Name,
		bridge:    br,
		queue:     newTaskQueue(),
		active:    make(map[string]*task.Task),
		work:      make(chan dispatchJob, 32),
	}
}

// SetEvents attaches the lifecycle event publisher. Optional.
func (o *Orchestrator) SetEvents(c *events.Client) { o.events = c }

// SetMetrics attaches the Prometheus collector. Optional.
func (o *Orchestrator) SetMetrics(m *metrics.Collector) { o.metrics = m }

func (o *Orchestrator) OnInferenceResult(fn func(taskID, text string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onInference = fn
}

func (o *Orchestrator) OnGatewayMessage(fn func(taskID, platform, text string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onGateway = fn
}

func (o *Orchestrator) OnVoiceTranscription(fn func(taskID, text string)) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.onVoice = fn
}

// Start launches the control loops and worker pool. Idempotent.
func (o *Orchestrator) Start(ctx context.Context) {
	if !o.running.CompareAndSwap(false, true) {
		return
	}

	ctx, o.cancel = context.WithCancel(ctx)

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}

	o.wg.Add(3)
	go o.dispatchLoop(ctx)
	go o.healthLoop(ctx)
	go o.reaperLoop(ctx)

	slog.Info("orchestrator started",
		"workers", o.cfg.Workers,
		"dispatch_interval", o.cfg.DispatchInterval,
		"health_interval", o.cfg.HealthInterval)
}

// Stop halts the loops and waits briefly for in-flight work. Idempotent.
func (o *Orchestrator) Stop() {
	if !o.running.CompareAndSwap(true, false) {
		return
	}
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("orchestrator stopped")
	case <-time.After(10 * time.Second):
		slog.Warn("orchestrator stop timed out with work in flight")
	}
}

func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

func (o *Orchestrator) dispatchLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.dispatchOnce(ctx)
		}
	}
}

// dispatchOnce drains up to DispatchBatch pending tasks. The cap is
// per tick, not global; sustained oversubmission grows the queue.
func (o *Orchestrator) dispatchOnce(ctx context.Context) {
	for i := 0; i < o.cfg.DispatchBatch; i++ {
		t, ok := o.queue.Dequeue()
		if !ok {
			break
		}
		o.dispatch(ctx, t)
	}
	o.updateQueueGauges()
}

func (o *Orchestrator) dispatch(ctx context.Context, t *task.Task) {
	capTag, needsCap := capabilityFor(t.Type)

	var candidates []*node.Node
	if needsCap {
		candidates = o.bridge.NodesByCapability(capTag)
	} else {
		candidates = o.bridge.OnlineNodes()
	}

	if len(candidates) == 0 {
		// No eligible node is permanent: the retry budget is not
		// consulted on this path.
		msg := "No nodes available"
		if needsCap {
			msg = fmt.Sprintf("No nodes available with capability %s", capTag)
		}
		t.MarkFailed(msg)
		o.totalFailed.Add(1)
		if o.metrics != nil {
			o.metrics.RecordFailed()
		}
		o.appendHistory(t)
		o.publishTaskEvent(t, "task_failed", map[string]any{"error": msg})
		slog.Warn("no candidates for task", "task", t.ID, "type", t.Type, "capability", capTag)
		return
	}

	node.Rank(candidates)
	best := candidates[0]

	t.MarkDispatched(best.ID)
	o.mu.Lock()
	o.active[t.ID] = t
	o.mu.Unlock()
	o.totalDispatched.Add(1)
	if o.metrics != nil {
		o.metrics.RecordDispatched()
	}
	o.publishTaskEvent(t, "task_dispatched", map[string]any{"node": best.ID})
	slog.Debug("task dispatched", "task", t.ID, "type", t.Type, "node", best.ID)

	select {
	case o.work <- dispatchJob{task: t, node: best}:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.work:
			o.execute(ctx, job.task, job.node)
		}
	}
}

// execute performs the blocking dispatch for one task. A task reaped
// by the timeout loop while this call is still in flight ends up with
// whichever write lands last; no reconciliation is attempted.
func (o *Orchestrator) execute(ctx context.Context, t *task.Task, n *node.Node) {
	t.MarkRunning()

	msg := o.buildMessage(t, n.ID)
	body, err := msg.Marshal()
	if err == nil {
		var resp []byte
		resp, err = o.bridge.DispatchToNode(ctx, n, pathFor(t.Type), body)
		if err == nil {
			o.completeTask(t, n, string(resp))
			return
		}
	}

	o.failTask(t, n, err)
}

func (o *Orchestrator) completeTask(t *task.Task, n *node.Node, result string) {
	n.RecordSuccess()
	n.RecordDispatched()

	t.MarkCompleted(result)
	o.removeActive(t.ID)
	o.appendHistory(t)
	o.totalCompleted.Add(1)
	if o.metrics != nil {
		o.metrics.RecordCompleted(t.Elapsed().Seconds())
	}
	o.publishTaskEvent(t, "task_completed", map[string]any{"node": n.ID, "elapsed_ms": t.Elapsed().Milliseconds()})
	slog.Info("task completed", "task", t.ID, "type", t.Type, "node", n.ID, "elapsed", t.Elapsed())

	o.deliverResult(t)
}

func (o *Orchestrator) failTask(t *task.Task, n *node.Node, err error) {
	n.RecordFailure()

	t.MarkFailed(err.Error())
	o.removeActive(t.ID)

	if t.IsRetryable() {
		t.RetryCount++
		t.Status = task.StatusPending
		o.queue.Enqueue(t)
		if o.metrics != nil {
			o.metrics.RecordRetried()
		}
		o.publishTaskEvent(t, "task_retrying", map[string]any{"retry": t.RetryCount, "error": err.Error()})
		slog.Warn("task failed, retrying", "task", t.ID, "node", n.ID, "retry", t.RetryCount, "error", err)
		return
	}

	o.appendHistory(t)
	o.totalFailed.Add(1)
	if o.metrics != nil {
		o.metrics.RecordFailed()
	}
	o.publishTaskEvent(t, "task_failed", map[string]any{"node": n.ID, "error": err.Error()})
	slog.Error("task failed", "task", t.ID, "node", n.ID, "retries", t.RetryCount, "error", err)
}

// deliverResult invokes the type-appropriate callback. A panicking
// consumer must not corrupt orchestrator state, so everything is
// swallowed and logged.
func (o *Orchestrator) deliverResult(t *task.Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("result callback panicked", "task", t.ID, "panic", r)
		}
	}()

	o.cbMu.RLock()
	onInference, onGateway, onVoice := o.onInference, o.onGateway, o.onVoice
	o.cbMu.RUnlock()

	switch t.Type {
	case task.TypeInference:
		if onInference != nil {
			onInference(t.ID, t.Result)
		}
	case task.TypeGatewaySend, task.TypeGatewayFetch:
		if onGateway != nil {
			onGateway(t.ID, stringField(t.Input, "platform"), t.Result)
		}
	case task.TypeVoiceTranscribe:
		if onVoice != nil {
			onVoice(t.ID, t.Result)
		}
	}
}

func (o *Orchestrator) removeActive(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, id)
}

func (o *Orchestrator) appendHistory(t *task.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, t)
	if len(o.history) > historyLimit {
		o.history = o.history[len(o.history)-historyLimit:]
	}
}

func (o *Orchestrator) updateQueueGauges() {
	if o.metrics == nil {
		return
	}
	o.mu.RLock()
	active := len(o.active)
	o.mu.RUnlock()
	o.metrics.SetQueueStats(o.queue.Len(), active)
}

func (o *Orchestrator) publishTaskEvent(t *task.Task, eventType string, data map[string]any) {
	if o.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["task_id"] = t.ID
	data["task_type"] = string(t.Type)
	data["status"] = string(t.Status)
	if err := o.events.PublishEvent(events.TopicTask(t.ID), eventType, data); err != nil {
		slog.Debug("event publish failed", "event", eventType, "error", err)
	}
}

func (o *Orchestrator) publishNodeEvent(n *node.Node, eventType string, data map[string]any) {
	if o.events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["node_id"] = n.ID
	data["status"] = n.Status().String()
	if err := o.events.PublishEvent(events.TopicNode(n.ID), eventType, data); err != nil {
		slog.Debug("event publish failed", "event", eventType, "error", err)
	}
}
