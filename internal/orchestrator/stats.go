package orchestrator

import (
	"runtime"

	"github.com/avramakis/hivemind/internal/node"
)

type Stats struct {
	Nodes           int   `json:"nodes"`
	QueueDepth      int   `json:"queue_depth"`
	ActiveTasks     int   `json:"active_tasks"`
	CompletedTasks  int   `json:"completed_tasks"`
	TotalDispatched int64 `json:"total_dispatched"`
	TotalCompleted  int64 `json:"total_completed"`
	TotalFailed     int64 `json:"total_failed"`
	Running         bool  `json:"running"`
}

func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	active := len(o.active)
	completed := len(o.history)
	o.mu.RUnlock()

	return Stats{
		Nodes:           len(o.bridge.Nodes()),
		QueueDepth:      o.queue.Len(),
		ActiveTasks:     active,
		CompletedTasks:  completed,
		TotalDispatched: o.totalDispatched.Load(),
		TotalCompleted:  o.totalCompleted.Load(),
		TotalFailed:     o.totalFailed.Load(),
		Running:         o.running.Load(),
	}
}

// Topology is a diagnostic snapshot of the whole swarm. The core never
// consumes it itself.
type Topology struct {
	Coordinator node.Record   `json:"coordinator"`
	Nodes       []node.Record `json:"nodes"`
	Stats       Stats         `json:"stats"`
}

func (o *Orchestrator) Topology() Topology {
	nodes := o.bridge.Nodes()
	records := make([]node.Record, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, n.Snapshot())
	}

	return Topology{
		Coordinator: node.Record{
			ID:     o.coordID,
			Name:   o.coordName,
			Arch:   runtime.GOARCH,
			Status: node.StatusOnline.String(),
		},
		Nodes: records,
		Stats: o.Stats(),
	}
}
