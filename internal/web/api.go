package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/avramakis/hivemind/internal/cron"
	"github.com/avramakis/hivemind/internal/node"
	"github.com/avramakis/hivemind/internal/store"
	"github.com/avramakis/hivemind/internal/task"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Tasks
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", s.getTask)

	// Nodes
	mux.HandleFunc("GET /api/nodes", s.listNodes)
	mux.HandleFunc("POST /api/nodes", s.registerNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", s.deregisterNode)

	// Schedules
	mux.HandleFunc("GET /api/schedules", s.listSchedules)
	mux.HandleFunc("POST /api/schedules", s.createSchedule)
	mux.HandleFunc("PUT /api/schedules/{id}", s.updateSchedule)
	mux.HandleFunc("DELETE /api/schedules/{id}", s.deleteSchedule)

	// System
	mux.HandleFunc("GET /api/stats", s.getStats)
	mux.HandleFunc("GET /api/topology", s.getTopology)
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type       string         `json:"type"`
		Input      map[string]any `json:"input"`
		Priority   *int           `json:"priority"`
		MaxRetries *int           `json:"max_retries"`
		TimeoutMs  *int64         `json:"timeout_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Type == "" {
		jsonError(w, "type is required", http.StatusBadRequest)
		return
	}

	t := task.New(task.Type(body.Type), body.Input)
	if body.Priority != nil {
		t.Priority = *body.Priority
	}
	if body.MaxRetries != nil {
		t.MaxRetries = *body.MaxRetries
	}
	if body.TimeoutMs != nil {
		t.Timeout = time.Duration(*body.TimeoutMs) * time.Millisecond
	}

	id := s.orch.SubmitTask(t)
	jsonResponse(w, map[string]string{"id": id, "status": string(task.StatusPending)})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := s.orch.GetTaskStatus(id)
	if !ok {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, t)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes := s.bridge.Nodes()
	out := make([]node.Record, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Snapshot())
	}
	jsonResponse(w, out)
}

func (s *Server) registerNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID           string   `json:"id"`
		Name         string   `json:"name"`
		Endpoint     string   `json:"endpoint"`
		Arch         string   `json:"arch"`
		Capabilities []string `json:"capabilities"`
		AuthToken    string   `json:"auth_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ID == "" || body.Endpoint == "" {
		jsonError(w, "id and endpoint are required", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		body.Name = body.ID
	}

	caps := make([]node.Capability, 0, len(body.Capabilities))
	for _, c := range body.Capabilities {
		caps = append(caps, node.Capability(c))
	}

	n := node.New(body.ID, body.Name, body.Endpoint, node.ParseArch(body.Arch), caps)
	s.bridge.Register(n, body.AuthToken)
	jsonResponse(w, n.Snapshot())
}

func (s *Server) deregisterNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.bridge.Get(id) == nil {
		jsonError(w, "node not found", http.StatusNotFound)
		return
	}
	s.bridge.Deregister(id)
	jsonResponse(w, map[string]string{"status": "deregistered"})
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.store.ListSchedules()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, schedules)
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string         `json:"name"`
		TaskType string         `json:"task_type"`
		Spec     string         `json:"spec"`
		Input    map[string]any `json:"input"`
		Enabled  *bool          `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.TaskType == "" || body.Spec == "" {
		jsonError(w, "name, task_type and spec are required", http.StatusBadRequest)
		return
	}

	normalized, err := cron.Normalize(body.Spec)
	if err != nil {
		jsonError(w, fmt.Sprintf("invalid spec: %v", err), http.StatusBadRequest)
		return
	}

	status := "active"
	if body.Enabled != nil && !*body.Enabled {
		status = "paused"
	}

	sc := store.Schedule{
		ID:       uuid.New().String(),
		Name:     body.Name,
		TaskType: body.TaskType,
		Spec:     normalized,
		Status:   status,
	}
	if body.Input != nil {
		input, err := json.Marshal(body.Input)
		if err != nil {
			jsonError(w, "invalid input", http.StatusBadRequest)
			return
		}
		sc.Input = string(input)
	}
	if status == "active" {
		sc.NextRunAt = cron.NextRun(normalized)
	}

	if err := s.store.SaveSchedule(&sc); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, sc)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	existing, err := s.store.GetSchedule(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "schedule not found", http.StatusNotFound)
		return
	}

	var body struct {
		Name     *string        `json:"name"`
		TaskType *string        `json:"task_type"`
		Spec     *string        `json:"spec"`
		Input    map[string]any `json:"input"`
		Enabled  *bool          `json:"enabled"`
		Status   *string        `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		existing.Name = *body.Name
	}
	if body.TaskType != nil {
		existing.TaskType = *body.TaskType
	}
	if body.Input != nil {
		input, err := json.Marshal(body.Input)
		if err != nil {
			jsonError(w, "invalid input", http.StatusBadRequest)
			return
		}
		existing.Input = string(input)
	}

	if body.Enabled != nil {
		if *body.Enabled {
			existing.Status = "active"
		} else if existing.Status != "completed" {
			existing.Status = "paused"
		}
	} else if body.Status != nil {
		existing.Status = *body.Status
	}

	if body.Spec != nil {
		normalized, err := cron.Normalize(*body.Spec)
		if err != nil {
			jsonError(w, fmt.Sprintf("invalid spec: %v", err), http.StatusBadRequest)
			return
		}
		existing.Spec = normalized
	}

	if existing.Status == "active" {
		existing.NextRunAt = cron.NextRun(existing.Spec)
	} else {
		existing.NextRunAt = nil
	}

	if err := s.store.SaveSchedule(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, existing)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteSchedule(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.orch.Stats())
}

func (s *Server) getTopology(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.orch.Topology())
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.orch.Stats()
	online := 0
	for _, n := range s.bridge.Nodes() {
		if n.IsAlive() {
			online++
		}
	}

	jsonResponse(w, map[string]any{
		"status":       "ok",
		"running":      stats.Running,
		"nodes":        stats.Nodes,
		"nodes_online": online,
		"queue_depth":  stats.QueueDepth,
		"active_tasks": stats.ActiveTasks,
		"uptime":       formatUptime(time.Since(s.startedAt)),
		"version":      s.version,
		"timestamp":    time.Now().UTC(),
	})
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
