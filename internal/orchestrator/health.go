package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/avramakis/hivemind/internal/node"
)

func (o *Orchestrator) healthLoop(ctx context.Context) {
	defer o.wg.Done()

	// First pass immediately so freshly seeded nodes come online
	// without waiting a full interval.
	o.checkNodesOnce(ctx)

	ticker := time.NewTicker(o.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.checkNodesOnce(ctx)
		}
	}
}

// checkNodesOnce pings every registered node. Nodes are never removed
// here; reliability degradation only lowers future selection priority.
func (o *Orchestrator) checkNodesOnce(ctx context.Context) {
	online := 0
	for _, n := range o.bridge.Nodes() {
		prev := n.Status()

		rtt, err := o.bridge.Ping(ctx, n)
		if err != nil {
			n.RecordFailure()
			sinceSeen := time.Since(n.LastHeartbeat())
			if sinceSeen > o.cfg.StalenessThreshold {
				n.SetStatus(node.StatusOffline)
			} else {
				n.SetStatus(node.StatusDegraded)
			}
			if n.Status() != prev {
				o.publishNodeEvent(n, "node_unreachable", map[string]any{"error": err.Error()})
			}
			slog.Warn("node health check failed", "node", n.ID, "status", n.Status(), "error", err)
			continue
		}

		n.MarkSeen(rtt)
		n.SetStatus(node.StatusOnline)
		n.RecordSuccess()
		online++
		if prev != node.StatusOnline {
			o.publishNodeEvent(n, "node_online", map[string]any{"latency_ms": rtt.Milliseconds()})
		}
		slog.Debug("node healthy", "node", n.ID, "latency", rtt)
	}

	if o.metrics != nil {
		o.metrics.SetNodesOnline(online)
	}
}
