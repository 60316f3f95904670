package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/avramakis/hivemind/internal/config"
)

func newTestBus(t *testing.T) (*Bus, *Client) {
	t.Helper()
	bus, err := NewBus(config.NATSConfig{
		Port:    -1, // random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)

	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)

	return bus, client
}

func TestPublishEvent(t *testing.T) {
	_, client := newTestBus(t)

	received := make(chan []byte, 1)
	_, err := client.Subscribe(TopicTasksAll, func(msg *nats.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.PublishEvent(TopicTask("t-1"), "task_completed", map[string]any{
		"node": "edge-1",
	}); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != "task_completed" {
			t.Errorf("expected task_completed, got %s", ev.Type)
		}
		if ev.Data["node"] != "edge-1" {
			t.Errorf("unexpected data: %v", ev.Data)
		}
		if ev.Timestamp == "" {
			t.Error("expected timestamp")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicTask("t1"); got != "events.task.t1" {
		t.Errorf("expected events.task.t1, got %s", got)
	}
	if got := TopicNode("n1"); got != "events.node.n1" {
		t.Errorf("expected events.node.n1, got %s", got)
	}
}
