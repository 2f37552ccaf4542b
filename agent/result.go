package agent

import (
	"encoding/json"
	"errors"

	"datachat/database"
)

// ToolResult is the structured envelope every tool returns to the
// reasoning capability. Failures are carried here as data, never raised
// out of the dispatch layer.
type ToolResult struct {
	Success      bool   `json:"success"`
	Data         any    `json:"data,omitempty"`
	Error        string `json:"error,omitempty"`
	Message      string `json:"message"`
	Observation  string `json:"observation"`
	ShouldReplan bool   `json:"should_replan,omitempty"`
}

// encode renders the result as the JSON string handed back through the
// tool interface. Encoding a ToolResult cannot realistically fail; if it
// somehow does, a minimal failure envelope is returned instead.
func (r ToolResult) encode() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"message":"internal error","observation":"tool result could not be encoded"}`
	}
	return string(b)
}

func successResult(data any, message, observation string) ToolResult {
	return ToolResult{
		Success:     true,
		Data:        data,
		Message:     message,
		Observation: observation,
	}
}

func failureResult(err error, message, observation string, replan bool) ToolResult {
	return ToolResult{
		Success:      false,
		Error:        errorCode(err),
		Message:      message,
		Observation:  observation,
		ShouldReplan: replan,
	}
}

// errorCode maps an error to the code carried in the envelope's error field.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrScopeViolation):
		return "ScopeViolation"
	case errors.Is(err, ErrUnsupportedSyntax):
		return "UnsupportedSyntax"
	case errors.Is(err, ErrReasoningUnavailable):
		return "ReasoningCapabilityUnavailable"
	case errors.Is(err, ErrAborted):
		return "Aborted"
	case errors.Is(err, database.ErrNotFound):
		return "NotFound"
	default:
		return "EngineError"
	}
}
