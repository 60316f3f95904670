package task

import (
	"strings"
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	tk := New(TypeInference, map[string]any{"prompt": "hi"})

	if tk.ID == "" {
		t.Error("expected non-empty id")
	}
	if tk.Status != StatusPending {
		t.Errorf("expected pending, got %s", tk.Status)
	}
	if tk.MaxRetries != 2 {
		t.Errorf("expected default max retries 2, got %d", tk.MaxRetries)
	}
	if tk.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", tk.Timeout)
	}
	if tk.RetryCount != 0 || tk.Priority != 0 {
		t.Errorf("expected zero retry count and priority")
	}
}

func TestLifecycleTransitions(t *testing.T) {
	tk := New(TypeSkillExecute, map[string]any{"skill": "weather"})

	tk.MarkDispatched("edge-1")
	if tk.Status != StatusDispatched || tk.AssignedNode != "edge-1" {
		t.Errorf("dispatch: status=%s node=%s", tk.Status, tk.AssignedNode)
	}
	if tk.DispatchedAt == nil {
		t.Fatal("expected dispatch timestamp")
	}

	tk.MarkRunning()
	if tk.Status != StatusRunning {
		t.Errorf("expected running, got %s", tk.Status)
	}
	if tk.IsTerminal() {
		t.Error("running must not be terminal")
	}

	tk.MarkCompleted(`{"temp": 21}`)
	if tk.Status != StatusCompleted || tk.Result != `{"temp": 21}` {
		t.Errorf("complete: status=%s result=%s", tk.Status, tk.Result)
	}
	if tk.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
	if !tk.IsTerminal() {
		t.Error("completed must be terminal")
	}
}

func TestTerminalStatuses(t *testing.T) {
	terminal := map[Status]bool{
		StatusPending:    false,
		StatusDispatched: false,
		StatusRunning:    false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
		StatusTimedOut:   true,
	}

	for status, want := range terminal {
		tk := New(TypeInference, nil)
		tk.Status = status
		if got := tk.IsTerminal(); got != want {
			t.Errorf("%s: terminal=%v, want %v", status, got, want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tk := New(TypeInference, nil)
	if tk.IsRetryable() {
		t.Error("pending task must not be retryable")
	}

	tk.MarkFailed("connection refused")
	if !tk.IsRetryable() {
		t.Error("failed task under budget should be retryable")
	}

	tk.RetryCount = tk.MaxRetries
	if tk.IsRetryable() {
		t.Error("exhausted budget must not be retryable")
	}

	tk2 := New(TypeInference, nil)
	tk2.MarkTimedOut()
	if tk2.IsRetryable() {
		t.Error("timed_out is not the retryable status; the reaper resets to pending itself")
	}
}

func TestMarkTimedOutError(t *testing.T) {
	tk := New(TypeVoiceTranscribe, nil)
	tk.Timeout = 5 * time.Second
	tk.MarkTimedOut()

	if tk.Status != StatusTimedOut {
		t.Errorf("expected timed_out, got %s", tk.Status)
	}
	if !strings.Contains(tk.Error, "timed out after 5000ms") {
		t.Errorf("unexpected error string: %s", tk.Error)
	}
}

func TestElapsed(t *testing.T) {
	tk := New(TypeInference, nil)
	if tk.Elapsed() != 0 {
		t.Error("never-dispatched task should report zero elapsed")
	}

	past := time.Now().UTC().Add(-2 * time.Second)
	tk.DispatchedAt = &past
	if tk.Elapsed() < 2*time.Second {
		t.Errorf("open task elapsed too small: %v", tk.Elapsed())
	}

	done := past.Add(500 * time.Millisecond)
	tk.CompletedAt = &done
	if tk.Elapsed() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", tk.Elapsed())
	}
}
