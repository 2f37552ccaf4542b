package agent

import "errors"

var (
	// ErrValidation rejects tool input before it touches storage.
	ErrValidation = errors.New("validation error")

	// ErrScopeViolation rejects a query that does not reference the
	// dataset's own isolated table.
	ErrScopeViolation = errors.New("query out of dataset scope")

	// ErrUnsupportedSyntax rejects engine-incompatible query constructs.
	ErrUnsupportedSyntax = errors.New("unsupported query syntax")

	// ErrReasoningUnavailable wraps failures of the hosted reasoning
	// capability.
	ErrReasoningUnavailable = errors.New("reasoning capability unavailable")

	// ErrAborted marks a run that exceeded its cycle budget.
	ErrAborted = errors.New("run aborted: cycle budget exceeded")
)
