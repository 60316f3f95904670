package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSubmitted()
	c.RecordDispatched()
	c.RecordDispatched()
	c.RecordCompleted(0.25)
	c.RecordFailed()
	c.RecordTimedOut()
	c.RecordRetried()

	if got := testutil.ToFloat64(c.tasksSubmitted); got != 1 {
		t.Errorf("submitted: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksDispatched); got != 2 {
		t.Errorf("dispatched: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksCompleted); got != 1 {
		t.Errorf("completed: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksFailed); got != 1 {
		t.Errorf("failed: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksTimedOut); got != 1 {
		t.Errorf("timed out: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksRetried); got != 1 {
		t.Errorf("retried: got %f", got)
	}
}

func TestCollectorGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetQueueStats(7, 3)
	c.SetNodesOnline(2)

	if got := testutil.ToFloat64(c.tasksPending); got != 7 {
		t.Errorf("pending: got %f", got)
	}
	if got := testutil.ToFloat64(c.tasksActive); got != 3 {
		t.Errorf("active: got %f", got)
	}
	if got := testutil.ToFloat64(c.nodesOnline); got != 2 {
		t.Errorf("online: got %f", got)
	}
}
