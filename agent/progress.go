package agent

import "strings"

// ProgressFunc receives human-readable progress strings for one run.
// Callbacks are fire-and-forget: they must not block the loop and any
// panic they raise is swallowed.
type ProgressFunc func(message string)

// scrubber rewrites internal storage and field-mapping vocabulary into
// phrasing safe to show a user. Best effort; unscrubbed jargon is a
// cosmetic bug, not a correctness one.
var scrubber = strings.NewReplacer(
	"SQLite", "the data store",
	"sqlite", "the data store",
	"SQL query", "data query",
	"SQL", "query",
	"PRAGMA", "structure inspection",
	"isolated table", "your data",
	"normalized column", "field",
	"column mapping", "field layout",
	"transaction", "operation",
	"rollback", "undo",
)

// Emitter publishes progress for exactly one run.
type Emitter struct {
	fn ProgressFunc
}

// NewEmitter wraps a callback; a nil callback yields a silent emitter.
func NewEmitter(fn ProgressFunc) *Emitter {
	return &Emitter{fn: fn}
}

// Emit scrubs and delivers one progress message. Never panics.
func (e *Emitter) Emit(message string) {
	if e == nil || e.fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	e.fn(scrubber.Replace(message))
}
