package node

import (
	"sort"
	"time"
)

// Record is the transport-agnostic descriptor of a node, used for
// topology export and for reconstructing a node from a transmitted
// descriptor.
type Record struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Endpoint      string    `json:"endpoint"`
	Arch          string    `json:"arch"`
	Capabilities  []string  `json:"capabilities"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat,omitempty"`
	LatencyMs     int64     `json:"latency_ms"`
	Version       string    `json:"version,omitempty"`
	ActiveModel   string    `json:"active_model,omitempty"`
	MemoryBytes   int64     `json:"memory_bytes"`
	Successes     int64     `json:"successes"`
	Failures      int64     `json:"failures"`
	Dispatches    int64     `json:"dispatches"`
	Reliability   float64   `json:"reliability"`
}

// Snapshot serializes the node's current state. Fields are read
// independently; the snapshot is not a multi-field transaction.
func (n *Node) Snapshot() Record {
	caps := make([]string, 0, len(n.caps))
	for c := range n.caps {
		caps = append(caps, string(c))
	}
	sort.Strings(caps)

	return Record{
		ID:            n.ID,
		Name:          n.Name,
		Endpoint:      n.Endpoint,
		Arch:          string(n.Arch),
		Capabilities:  caps,
		Status:        n.Status().String(),
		LastHeartbeat: n.LastHeartbeat(),
		LatencyMs:     n.Latency().Milliseconds(),
		Version:       n.Version(),
		ActiveModel:   n.ActiveModel(),
		MemoryBytes:   n.MemoryUsage(),
		Successes:     n.Successes(),
		Failures:      n.Failures(),
		Dispatches:    n.Dispatches(),
		Reliability:   n.ReliabilityScore(),
	}
}

// FromRecord reconstructs a node from a descriptor, preserving health
// state and counters.
func FromRecord(r Record) *Node {
	caps := make([]Capability, 0, len(r.Capabilities))
	for _, c := range r.Capabilities {
		caps = append(caps, Capability(c))
	}

	n := New(r.ID, r.Name, r.Endpoint, ParseArch(r.Arch), caps)
	n.SetStatus(ParseStatus(r.Status))
	if !r.LastHeartbeat.IsZero() {
		n.lastHeartbeat.Store(r.LastHeartbeat.UnixNano())
	}
	n.latency.Store(int64(time.Duration(r.LatencyMs) * time.Millisecond))
	n.SetVersion(r.Version)
	n.SetActiveModel(r.ActiveModel)
	n.SetMemoryUsage(r.MemoryBytes)
	n.successes.Store(r.Successes)
	n.failures.Store(r.Failures)
	n.dispatches.Store(r.Dispatches)
	return n
}
