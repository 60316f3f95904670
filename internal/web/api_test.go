package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/avramakis/hivemind/internal/bridge"
	"github.com/avramakis/hivemind/internal/config"
	"github.com/avramakis/hivemind/internal/orchestrator"
	"github.com/avramakis/hivemind/internal/store"
	"github.com/avramakis/hivemind/internal/vault"
)

func newTestServer(t *testing.T, auth string) (*Server, *httptest.Server) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	br, err := bridge.New("coordinator", config.BridgeConfig{})
	if err != nil {
		t.Fatalf("create bridge: %v", err)
	}

	orch := orchestrator.New(
		config.CoordinatorConfig{ID: "coordinator", Name: "test"},
		config.OrchestratorConfig{},
		br,
	)

	srv := NewServer(st, nil, orch, br, vault.New("test-passphrase"), config.WebConfig{Auth: auth}, "test")

	mux := http.NewServeMux()
	srv.registerAPI(mux)
	srv.registerSecretsAPI(mux)
	mux.HandleFunc("/api/ws", srv.handleWebSocket)
	ts := httptest.NewServer(srv.withMiddleware(mux))
	t.Cleanup(ts.Close)

	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"type":  "inference",
		"input": map[string]any{"prompt": "hello"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}

	var out map[string]string
	decode(t, resp, &out)
	if out["id"] == "" {
		t.Error("expected task id")
	}
	if out["status"] != "pending" {
		t.Errorf("status: %s", out["status"])
	}
}

func TestCreateTaskMissingType(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{
		"input": map[string]any{"prompt": "hello"},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: %d", resp.StatusCode)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	_, ts := newTestServer(t, "")

	// Unknown ids and still-pending tasks both read as not found.
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/tasks/nope", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: %d", resp.StatusCode)
	}

	created := doJSON(t, http.MethodPost, ts.URL+"/api/tasks", map[string]any{"type": "inference"})
	var out map[string]string
	decode(t, created, &out)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/tasks/"+out["id"], nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("pending task should not be visible, status: %d", resp.StatusCode)
	}
}

func TestNodeLifecycle(t *testing.T) {
	srv, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/nodes", map[string]any{
		"id":           "edge-1",
		"endpoint":     "http://edge-1:9000",
		"arch":         "arm64",
		"capabilities": []string{"inference", "voice_transcription"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	if srv.bridge.Get("edge-1") == nil {
		t.Fatal("node not registered with bridge")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/nodes", nil)
	var nodes []map[string]any
	decode(t, resp, &nodes)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0]["id"] != "edge-1" || nodes[0]["arch"] != "arm64" {
		t.Errorf("node record: %v", nodes[0])
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/nodes/edge-1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("deregister status: %d", resp.StatusCode)
	}
	if srv.bridge.Get("edge-1") != nil {
		t.Error("node still registered after deregister")
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/nodes/edge-1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second deregister status: %d", resp.StatusCode)
	}
}

func TestScheduleLifecycle(t *testing.T) {
	_, ts := newTestServer(t, "")

	// Plain cron strings are normalized to spec JSON.
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/schedules", map[string]any{
		"name":      "nightly",
		"task_type": "inference",
		"spec":      "0 3 * * *",
		"input":     map[string]any{"prompt": "nightly report"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create status: %d", resp.StatusCode)
	}

	var sc store.Schedule
	decode(t, resp, &sc)
	if sc.ID == "" {
		t.Fatal("expected schedule id")
	}
	if sc.Status != "active" {
		t.Errorf("status: %s", sc.Status)
	}
	if sc.NextRunAt == nil {
		t.Error("expected next run computed")
	}
	var spec map[string]any
	if err := json.Unmarshal([]byte(sc.Spec), &spec); err != nil || spec["kind"] != "cron" {
		t.Errorf("spec not normalized: %s", sc.Spec)
	}

	// Pause clears the next run.
	resp = doJSON(t, http.MethodPut, ts.URL+"/api/schedules/"+sc.ID, map[string]any{
		"enabled": false,
	})
	var updated store.Schedule
	decode(t, resp, &updated)
	if updated.Status != "paused" {
		t.Errorf("status after pause: %s", updated.Status)
	}
	if updated.NextRunAt != nil {
		t.Error("paused schedule should have no next run")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/schedules", nil)
	var list []store.Schedule
	decode(t, resp, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(list))
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/schedules/"+sc.ID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status: %d", resp.StatusCode)
	}
}

func TestCreateScheduleInvalidSpec(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/schedules", map[string]any{
		"name":      "broken",
		"task_type": "inference",
		"spec":      "not a cron",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: %d", resp.StatusCode)
	}
}

func TestStatsAndStatus(t *testing.T) {
	_, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/stats", nil)
	var stats orchestrator.Stats
	decode(t, resp, &stats)
	if stats.Running {
		t.Error("orchestrator should not be running")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/status", nil)
	var status map[string]any
	decode(t, resp, &status)
	if status["status"] != "ok" {
		t.Errorf("status: %v", status["status"])
	}
	if status["version"] != "test" {
		t.Errorf("version: %v", status["version"])
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/topology", nil)
	var topo orchestrator.Topology
	decode(t, resp, &topo)
	if topo.Coordinator.ID != "coordinator" {
		t.Errorf("coordinator: %s", topo.Coordinator.ID)
	}
}

func TestBasicAuth(t *testing.T) {
	_, ts := newTestServer(t, "secret")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/stats", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated status: %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	req.SetBasicAuth("api", "secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed request: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Errorf("authenticated status: %d", authed.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	req.SetBasicAuth("api", "wrong")
	denied, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("denied request: %v", err)
	}
	denied.Body.Close()
	if denied.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status: %d", denied.StatusCode)
	}
}

func TestSecretsRoundTrip(t *testing.T) {
	srv, ts := newTestServer(t, "")

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/secrets/node-token", map[string]any{
		"value": "s3cret-token",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status: %d", resp.StatusCode)
	}

	// The stored blob is sealed, not the plaintext.
	raw, err := srv.store.GetSecret("node-token")
	if err != nil || raw == nil {
		t.Fatalf("get raw secret: %v", err)
	}
	if string(raw.Value) == "s3cret-token" {
		t.Error("secret stored in plaintext")
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/secrets/node-token", nil)
	var out map[string]string
	decode(t, resp, &out)
	if out["value"] != "s3cret-token" {
		t.Errorf("unsealed value: %q", out["value"])
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/secrets", nil)
	var names []string
	decode(t, resp, &names)
	if len(names) != 1 || names[0] != "node-token" {
		t.Errorf("names: %v", names)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/secrets/node-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete status: %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/secrets/node-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete: %d", resp.StatusCode)
	}
}

func TestUptimeFormat(t *testing.T) {
	tests := []struct {
		hours int
		want  string
	}{
		{0, "0m"},
		{3, "3h 0m"},
		{49, "2d 1h 0m"},
	}
	for _, tt := range tests {
		got := formatUptime(time.Duration(tt.hours) * time.Hour)
		if got != tt.want {
			t.Errorf("formatUptime(%dh) = %q, want %q", tt.hours, got, tt.want)
		}
	}
}
