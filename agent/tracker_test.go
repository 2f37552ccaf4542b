package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerPlanLifecycle(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, 0.0, tr.Progress())
	assert.Empty(t, tr.Remaining())

	tr.SetPlan([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, tr.Plan())
	assert.Equal(t, []string{"a", "b", "c"}, tr.Remaining())

	tr.MarkComplete("b")
	tr.MarkComplete("b") // idempotent
	assert.Equal(t, []string{"b"}, tr.Completed())
	assert.Equal(t, []string{"a", "c"}, tr.Remaining())
	assert.InDelta(t, 1.0/3.0, tr.Progress(), 1e-9)

	tr.MarkComplete("a")
	tr.MarkComplete("c")
	assert.Equal(t, 1.0, tr.Progress())
	assert.Empty(t, tr.Remaining())
	// Completion order, not plan order.
	assert.Equal(t, []string{"b", "a", "c"}, tr.Completed())
}

func TestTrackerSetPlanKeepsCallCount(t *testing.T) {
	tr := NewTracker()
	tr.IncrementCallCount()
	tr.IncrementCallCount()
	tr.IncrementErrorCount()
	tr.RecordObservation("obs")
	tr.RequestReplan(true)

	tr.SetPlan([]string{"x"})

	// A replan wipes run-local progress but the call budget keeps counting.
	assert.Equal(t, 2, tr.CallCount())
	assert.Equal(t, 0, tr.ErrorCount())
	assert.Empty(t, tr.Observations())
	assert.False(t, tr.ShouldReplan())
}

func TestTrackerResetClearsEverything(t *testing.T) {
	tr := NewTracker()
	tr.SetPlan([]string{"x"})
	tr.MarkComplete("x")
	tr.IncrementCallCount()
	tr.IncrementErrorCount()
	tr.SetRationale("because")

	tr.Reset()

	assert.Empty(t, tr.Plan())
	assert.Empty(t, tr.Completed())
	assert.Equal(t, 0, tr.CallCount())
	assert.Equal(t, 0, tr.ErrorCount())
	assert.Equal(t, "", tr.Rationale())
}

func TestTrackerShouldReplan(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.ShouldReplan())

	tr.IncrementErrorCount()
	tr.IncrementErrorCount()
	assert.False(t, tr.ShouldReplan()) // two errors is still tolerable

	tr.IncrementErrorCount()
	assert.True(t, tr.ShouldReplan())

	tr = NewTracker()
	tr.RequestReplan(true)
	assert.True(t, tr.ShouldReplan())
	tr.RequestReplan(false)
	assert.False(t, tr.ShouldReplan())
}
