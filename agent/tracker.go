package agent

// Tracker is the per-run agent state machine: the current plan, which
// steps completed, what was observed, and the error/call counters the
// replan heuristic reads. One Tracker belongs to exactly one run and is
// never shared across concurrent runs.
type Tracker struct {
	plan         []string
	completed    []string
	completedSet map[string]bool
	observations []string
	rationale    string
	replanFlag   bool
	errorCount   int
	callCount    int
}

// NewTracker returns a zeroed tracker.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset zeroes all fields. This is the only operation that clears the
// call counter; SetPlan deliberately preserves it so the cycle budget
// reflects the whole run, not just the current plan.
func (t *Tracker) Reset() {
	t.plan = nil
	t.completed = nil
	t.completedSet = make(map[string]bool)
	t.observations = nil
	t.rationale = ""
	t.replanFlag = false
	t.errorCount = 0
	t.callCount = 0
}

// SetPlan replaces the plan and clears completed steps, observations, the
// replan flag and the error count.
func (t *Tracker) SetPlan(steps []string) {
	t.plan = append([]string(nil), steps...)
	t.completed = nil
	t.completedSet = make(map[string]bool)
	t.observations = nil
	t.replanFlag = false
	t.errorCount = 0
}

// MarkComplete records a finished step. Idempotent; completion order is
// preserved.
func (t *Tracker) MarkComplete(step string) {
	if t.completedSet[step] {
		return
	}
	t.completedSet[step] = true
	t.completed = append(t.completed, step)
}

// RecordObservation appends an observation.
func (t *Tracker) RecordObservation(text string) {
	t.observations = append(t.observations, text)
}

// SetRationale stores the current rationale.
func (t *Tracker) SetRationale(text string) {
	t.rationale = text
}

// RequestReplan sets or clears the advisory replan flag.
func (t *Tracker) RequestReplan(v bool) {
	t.replanFlag = v
}

// IncrementErrorCount bumps the error counter.
func (t *Tracker) IncrementErrorCount() {
	t.errorCount++
}

// IncrementCallCount bumps the tool-call counter.
func (t *Tracker) IncrementCallCount() {
	t.callCount++
}

// Progress reports completed/plan size, 0 when there is no plan.
func (t *Tracker) Progress() float64 {
	if len(t.plan) == 0 {
		return 0
	}
	return float64(len(t.completed)) / float64(len(t.plan))
}

// Remaining lists plan steps not yet completed, in plan order.
func (t *Tracker) Remaining() []string {
	var out []string
	for _, step := range t.plan {
		if !t.completedSet[step] {
			out = append(out, step)
		}
	}
	return out
}

// ShouldReplan reports whether more than two errors accumulated or a
// replan was explicitly requested.
func (t *Tracker) ShouldReplan() bool {
	return t.errorCount > 2 || t.replanFlag
}

// Plan returns the current plan steps.
func (t *Tracker) Plan() []string { return append([]string(nil), t.plan...) }

// Completed returns the completed steps in completion order.
func (t *Tracker) Completed() []string { return append([]string(nil), t.completed...) }

// Observations returns all recorded observations.
func (t *Tracker) Observations() []string { return append([]string(nil), t.observations...) }

// Rationale returns the current rationale.
func (t *Tracker) Rationale() string { return t.rationale }

// ErrorCount returns the error counter.
func (t *Tracker) ErrorCount() int { return t.errorCount }

// CallCount returns the tool-call counter.
func (t *Tracker) CallCount() int { return t.callCount }
