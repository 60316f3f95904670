// Package node holds the per-worker registry entry: identity, declared
// capabilities and health/reliability state shared between the
// health-check loop and dispatch workers.
package node

import (
	"sync"
	"sync/atomic"
	"time"
)

type Status int32

const (
	StatusUnknown Status = iota
	StatusOnline
	StatusOffline
	StatusDegraded
	StatusBusy
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	case StatusDegraded:
		return "degraded"
	case StatusBusy:
		return "busy"
	default:
		return "unknown"
	}
}

func ParseStatus(s string) Status {
	switch s {
	case "online":
		return StatusOnline
	case "offline":
		return StatusOffline
	case "degraded":
		return StatusDegraded
	case "busy":
		return StatusBusy
	default:
		return StatusUnknown
	}
}

type Arch string

const (
	ArchAMD64   Arch = "amd64"
	ArchARM64   Arch = "arm64"
	ArchRISCV64 Arch = "riscv64"
	ArchUnknown Arch = "unknown"
)

func ParseArch(s string) Arch {
	switch Arch(s) {
	case ArchAMD64, ArchARM64, ArchRISCV64:
		return Arch(s)
	default:
		return ArchUnknown
	}
}

type Capability string

const (
	CapInference Capability = "inference"
	CapVoice     Capability = "voice_transcription"
	CapSkills    Capability = "skill_execution"
	CapMemory    Capability = "memory_storage"
	CapSearch    Capability = "web_search"
	CapCron      Capability = "cron_scheduling"
)

// GatewayCap returns the capability tag for a gateway platform,
// e.g. "gateway:telegram".
func GatewayCap(platform string) Capability {
	return Capability("gateway:" + platform)
}

// Node is a registry entry for one remote worker. Identity and the
// capability set are immutable after construction; health fields and
// counters are written concurrently by the health-check loop and
// dispatch workers. Counters only increase and are never reset.
type Node struct {
	ID       string
	Name     string
	Endpoint string
	Arch     Arch

	caps map[Capability]struct{}

	status        atomic.Int32
	lastHeartbeat atomic.Int64 // unix nanos, 0 = never seen
	latency       atomic.Int64 // nanos
	memoryBytes   atomic.Int64

	mu          sync.RWMutex // guards version and activeModel
	version     string
	activeModel string

	successes  atomic.Int64
	failures   atomic.Int64
	dispatches atomic.Int64
}

func New(id, name, endpoint string, arch Arch, caps []Capability) *Node {
	n := &Node{
		ID:       id,
		Name:     name,
		Endpoint: endpoint,
		Arch:     arch,
		caps:     make(map[Capability]struct{}, len(caps)),
	}
	for _, c := range caps {
		n.caps[c] = struct{}{}
	}
	return n
}

func (n *Node) RecordSuccess()    { n.successes.Add(1) }
func (n *Node) RecordFailure()    { n.failures.Add(1) }
func (n *Node) RecordDispatched() { n.dispatches.Add(1) }

func (n *Node) Successes() int64  { return n.successes.Load() }
func (n *Node) Failures() int64   { return n.failures.Load() }
func (n *Node) Dispatches() int64 { return n.dispatches.Load() }

// ReliabilityScore is success/(success+failure), or 1.0 with no
// observations yet so new nodes rank alongside proven ones.
func (n *Node) ReliabilityScore() float64 {
	s := n.successes.Load()
	f := n.failures.Load()
	if s+f == 0 {
		return 1.0
	}
	return float64(s) / float64(s+f)
}

func (n *Node) Status() Status     { return Status(n.status.Load()) }
func (n *Node) SetStatus(s Status) { n.status.Store(int32(s)) }

func (n *Node) IsAlive() bool {
	s := n.Status()
	return s == StatusOnline || s == StatusBusy
}

func (n *Node) HasCapability(c Capability) bool {
	_, ok := n.caps[c]
	return ok
}

func (n *Node) Capabilities() []Capability {
	out := make([]Capability, 0, len(n.caps))
	for c := range n.caps {
		out = append(out, c)
	}
	return out
}

// MarkSeen records a successful round trip.
func (n *Node) MarkSeen(latency time.Duration) {
	n.lastHeartbeat.Store(time.Now().UnixNano())
	n.latency.Store(int64(latency))
}

func (n *Node) LastHeartbeat() time.Time {
	ns := n.lastHeartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (n *Node) Latency() time.Duration {
	return time.Duration(n.latency.Load())
}

func (n *Node) SetVersion(v string) {
	n.mu.Lock()
	n.version = v
	n.mu.Unlock()
}

func (n *Node) Version() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.version
}

func (n *Node) SetActiveModel(m string) {
	n.mu.Lock()
	n.activeModel = m
	n.mu.Unlock()
}

func (n *Node) ActiveModel() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.activeModel
}

func (n *Node) SetMemoryUsage(bytes int64) { n.memoryBytes.Store(bytes) }
func (n *Node) MemoryUsage() int64         { return n.memoryBytes.Load() }
