// Package bridge owns the node registry and performs the actual network
// calls to worker nodes. The orchestrator reaches it through narrow
// interfaces so tests can substitute a fake.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/node"
	"github.com/avramakis/hivemind/internal/protocol"
)

// Bodies above this size are zstd-compressed before dispatch; memory
// pushes and voice audio routinely exceed it.
const compressThreshold = 4 << 10

type Bridge struct {
	coordinatorID string
	client        *http.Client
	pingTimeout   time.Duration
	encoder       *zstd.Encoder

	mu     sync.RWMutex
	nodes  map[string]*node.Node
	tokens map[string]string // node id -> bearer token
}

func New(coordinatorID string, cfg config.BridgeConfig) (*Bridge, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	return &Bridge{
		coordinatorID: coordinatorID,
		client:        &http.Client{Timeout: cfg.DispatchTimeout},
		pingTimeout:   cfg.PingTimeout,
		encoder:       enc,
		nodes:         make(map[string]*node.Node),
		tokens:        make(map[string]string),
	}, nil
}

// Register adds or replaces a node. The token, if non-empty, is sent as
// a bearer credential on every call to the node.
func (b *Bridge) Register(n *node.Node, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[n.ID] = n
	if token != "" {
		b.tokens[n.ID] = token
	}
}

func (b *Bridge) Deregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.nodes, id)
	delete(b.tokens, id)
}

func (b *Bridge) Get(id string) *node.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodes[id]
}

// Nodes returns all known nodes keyed by id.
func (b *Bridge) Nodes() map[string]*node.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]*node.Node, len(b.nodes))
	for id, n := range b.nodes {
		out[id] = n
	}
	return out
}

// OnlineNodes returns the nodes currently alive.
func (b *Bridge) OnlineNodes() []*node.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*node.Node
	for _, n := range b.nodes {
		if n.IsAlive() {
			out = append(out, n)
		}
	}
	return out
}

// NodesByCapability returns alive nodes declaring the capability.
func (b *Bridge) NodesByCapability(c node.Capability) []*node.Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*node.Node
	for _, n := range b.nodes {
		if n.IsAlive() && n.HasCapability(c) {
			out = append(out, n)
		}
	}
	return out
}

// BestNodeForCapability is the single best pick for callers bypassing
// the task queue. Nil when no alive node declares the capability.
func (b *Bridge) BestNodeForCapability(c node.Capability) *node.Node {
	candidates := b.NodesByCapability(c)
	if len(candidates) == 0 {
		return nil
	}
	node.Rank(candidates)
	return candidates[0]
}

// DispatchToNode posts body to the node's path and returns the raw
// response body. Any transport error or non-2xx status is returned as
// an error.
func (b *Bridge) DispatchToNode(ctx context.Context, n *node.Node, path string, body []byte) ([]byte, error) {
	url := strings.TrimRight(n.Endpoint, "/") + path

	payload := body
	encoding := ""
	if len(body) > compressThreshold {
		payload = b.encoder.EncodeAll(body, nil)
		encoding = "zstd"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}
	if token := b.tokenFor(n.ID); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dispatch to %s: %w", n.ID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", n.ID, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("node %s returned %d: %s", n.ID, resp.StatusCode, truncate(string(respBody), 200))
	}

	return respBody, nil
}

// Ping sends a protocol ping and returns the measured round trip.
func (b *Bridge) Ping(ctx context.Context, n *node.Node) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, b.pingTimeout)
	defer cancel()

	msg := protocol.NewPing(b.coordinatorID, n.ID)
	body, err := msg.Marshal()
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := b.DispatchToNode(ctx, n, "/ping", body); err != nil {
		return 0, err
	}
	rtt := time.Since(start)

	slog.Debug("ping", "node", n.ID, "rtt", rtt)
	return rtt, nil
}

func (b *Bridge) tokenFor(id string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tokens[id]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
