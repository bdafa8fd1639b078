package observability

import (
	"testing"
	"time"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()

	m.EventReceived("push")
	m.EventReceived("push")
	m.EventReceived("merge_group")

	m.JobStarted()
	m.ObserveStep("Lint bin scripts", 250*time.Millisecond)
	m.JobFinished("succeeded", time.Second)
	m.JobSkipped()

	snap := m.Snapshot()

	if snap.EventsReceived["push"] != 2 {
		t.Errorf("push events = %d, want 2", snap.EventsReceived["push"])
	}
	if snap.EventsReceived["merge_group"] != 1 {
		t.Errorf("merge_group events = %d, want 1", snap.EventsReceived["merge_group"])
	}
	if snap.JobsFinished["succeeded"] != 1 || snap.JobsFinished["skipped"] != 1 {
		t.Errorf("jobs finished = %v", snap.JobsFinished)
	}
	if snap.JobsActive != 0 {
		t.Errorf("jobs active = %d, want 0", snap.JobsActive)
	}
	if snap.StepDuration["Lint bin scripts"].Count != 1 {
		t.Errorf("step duration = %v", snap.StepDuration)
	}
	if snap.JobDuration.Count != 1 {
		t.Errorf("job duration count = %d, want 1", snap.JobDuration.Count)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics
	m.EventReceived("push")
	m.JobStarted()
	m.JobFinished("failed", time.Second)
	m.JobSkipped()
	m.ObserveStep("ls", time.Millisecond)
}

func TestHistogramPercentiles(t *testing.T) {
	h := NewHistogram()
	for i := 1; i <= 100; i++ {
		h.Observe(time.Duration(i) * time.Millisecond)
	}

	snap := h.Snapshot()
	if snap.Count != 100 {
		t.Fatalf("Count = %d, want 100", snap.Count)
	}
	if snap.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", snap.Max)
	}
	if snap.P50 < 45*time.Millisecond || snap.P50 > 55*time.Millisecond {
		t.Errorf("P50 = %v, want around 50ms", snap.P50)
	}
}
