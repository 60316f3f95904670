package bridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/node"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := New("coordinator", config.BridgeConfig{
		DispatchTimeout: 5 * time.Second,
		PingTimeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("create bridge: %v", err)
	}
	return b
}

func onlineNode(id, endpoint string, caps ...node.Capability) *node.Node {
	n := node.New(id, id, endpoint, node.ArchAMD64, caps)
	n.SetStatus(node.StatusOnline)
	return n
}

func TestRegistryLookups(t *testing.T) {
	b := newTestBridge(t)

	inf := onlineNode("inf-1", "http://inf-1", node.CapInference)
	voice := onlineNode("voice-1", "http://voice-1", node.CapVoice)
	offline := node.New("off-1", "off-1", "http://off-1", node.ArchAMD64, []node.Capability{node.CapInference})
	offline.SetStatus(node.StatusOffline)

	b.Register(inf, "")
	b.Register(voice, "")
	b.Register(offline, "")

	if len(b.Nodes()) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(b.Nodes()))
	}
	if len(b.OnlineNodes()) != 2 {
		t.Errorf("expected 2 online nodes, got %d", len(b.OnlineNodes()))
	}

	byCap := b.NodesByCapability(node.CapInference)
	if len(byCap) != 1 || byCap[0].ID != "inf-1" {
		t.Errorf("expected only inf-1, got %+v", byCap)
	}

	b.Deregister("inf-1")
	if b.Get("inf-1") != nil {
		t.Error("expected nil after deregister")
	}
}

func TestBestNodeForCapability(t *testing.T) {
	b := newTestBridge(t)

	good := onlineNode("good", "http://good", node.CapInference)
	good.RecordSuccess()
	bad := onlineNode("bad", "http://bad", node.CapInference)
	bad.RecordFailure()

	b.Register(good, "")
	b.Register(bad, "")

	best := b.BestNodeForCapability(node.CapInference)
	if best == nil || best.ID != "good" {
		t.Errorf("expected good, got %+v", best)
	}

	if b.BestNodeForCapability(node.CapCron) != nil {
		t.Error("expected nil for undeclared capability")
	}
}

func TestDispatchToNode(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b := newTestBridge(t)
	n := onlineNode("edge-1", srv.URL, node.CapInference)
	b.Register(n, "tok-123")

	resp, err := b.DispatchToNode(context.Background(), n, "/agent", []byte(`{"prompt":"hi"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if string(resp) != `{"ok":true}` {
		t.Errorf("response: %s", resp)
	}
	if gotPath != "/agent" {
		t.Errorf("path: %s", gotPath)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("auth: %s", gotAuth)
	}
}

func TestDispatchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := newTestBridge(t)
	n := onlineNode("edge-1", srv.URL, node.CapInference)
	b.Register(n, "")

	_, err := b.DispatchToNode(context.Background(), n, "/agent", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error should carry status: %v", err)
	}
}

func TestDispatchCompressesLargeBodies(t *testing.T) {
	var gotEncoding string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	b := newTestBridge(t)
	n := onlineNode("edge-1", srv.URL, node.CapMemory)
	b.Register(n, "")

	big := bytes.Repeat([]byte("memory entry payload "), 1024)
	if _, err := b.DispatchToNode(context.Background(), n, "/memory/push", big); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if gotEncoding != "zstd" {
		t.Fatalf("expected zstd encoding, got %q", gotEncoding)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("create decoder: %v", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(gotBody, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(plain, big) {
		t.Error("decompressed body does not match original")
	}
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"type":"pong"}`))
	}))
	defer srv.Close()

	b := newTestBridge(t)
	n := onlineNode("edge-1", srv.URL, node.CapInference)
	b.Register(n, "")

	rtt, err := b.Ping(context.Background(), n)
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if rtt <= 0 {
		t.Errorf("expected positive rtt, got %v", rtt)
	}
}

func TestPingUnreachable(t *testing.T) {
	b := newTestBridge(t)
	n := onlineNode("gone", "http://127.0.0.1:1", node.CapInference)
	b.Register(n, "")

	if _, err := b.Ping(context.Background(), n); err == nil {
		t.Fatal("expected error pinging unreachable node")
	}
}
