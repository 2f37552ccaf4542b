// Package agent implements the think-act-observe loop that answers
// natural-language questions about an ingested dataset: per-run state
// tracking, sandboxed data-query tools, replanning heuristics, and the
// progress side channel.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"datachat/config"
	"datachat/database"
)

// RunState is the terminal state of one orchestration run.
type RunState string

const (
	// RunDone means the model produced a final answer.
	RunDone RunState = "done"
	// RunAborted means the cycle budget ran out; the answer is a partial
	// narrative built from whatever was observed.
	RunAborted RunState = "aborted"
)

// RunResult is what one orchestration run produced.
type RunResult struct {
	Answer string
	State  RunState
	Cycles int
}

// Orchestrator drives chat runs. It is safe for concurrent use: all
// mutable run state (tracker, transcript, tool set, bound model) is
// created per run and discarded at run end.
type Orchestrator struct {
	model model.ToolCallingChatModel
	store *database.Store
	cfg   *config.Config
	log   *zap.Logger
}

// NewOrchestrator creates an orchestrator on top of a reasoning model and
// a store.
func NewOrchestrator(m model.ToolCallingChatModel, store *database.Store, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{model: m, store: store, cfg: cfg, log: logger}
}

// Run answers one question about one dataset. onProgress (may be nil)
// receives scrubbed progress strings for the run's duration. The final
// answer is appended to the dataset's history; a history-save failure is
// logged and never blocks returning the answer.
func (o *Orchestrator) Run(ctx context.Context, datasetID, question string, onProgress ProgressFunc) (*RunResult, error) {
	emitter := NewEmitter(onProgress)

	ds, err := o.store.GetDataset(datasetID)
	if err != nil {
		return nil, err
	}
	cols, err := o.store.TableSchema(datasetID)
	if err != nil {
		return nil, err
	}

	turns, err := o.store.RecentTurns(datasetID, o.cfg.ContextTurnLimit)
	if err != nil {
		o.log.Warn("history read failed, continuing without context",
			zap.String("dataset_id", datasetID), zap.Error(err))
		turns = nil
	}

	// Per-run state. Nothing here may outlive the run or be shared with
	// a concurrent one.
	tracker := NewTracker()
	tools := []tool.InvokableTool{
		NewPlanTool(tracker, o.log),
		NewQueryTool(o.store, tracker, o.cfg, o.log),
		NewSchemaTool(o.store, o.log),
		NewSampleTool(o.store, o.cfg, o.log),
		NewReflectTool(tracker, o.log),
		NewSummarizeTool(o.log),
	}

	byName := make(map[string]tool.InvokableTool, len(tools))
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("describing tools: %w", err)
		}
		byName[info.Name] = t
		infos = append(infos, info)
	}

	bound, err := o.model.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%w: binding tools: %v", ErrReasoningUnavailable, err)
	}

	messages := []*schema.Message{schema.SystemMessage(buildSystemInstructions(ds, cols))}
	if hc := historyContext(turns); hc != "" {
		messages = append(messages,
			schema.UserMessage("Previous conversation context:\n"+hc),
			schema.AssistantMessage("I understand the context. How can I help you?", nil))
	}
	messages = append(messages, schema.UserMessage(question))

	emitter.Emit(fmt.Sprintf("Starting analysis of %s", ds.Name()))
	o.log.Info("run started", zap.String("dataset_id", datasetID), zap.String("question", question))

	for cycle := 1; cycle <= o.cfg.MaxCycles; cycle++ {
		emitter.Emit("Thinking about the next step...")

		resp, err := bound.Generate(ctx, messages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReasoningUnavailable, err)
		}

		if len(resp.ToolCalls) == 0 {
			answer := resp.Content
			o.persistTurn(datasetID, question, answer)
			emitter.Emit("Analysis complete")
			o.log.Info("run done", zap.String("dataset_id", datasetID), zap.Int("cycles", cycle),
				zap.Int("tool_calls", tracker.CallCount()))
			return &RunResult{Answer: answer, State: RunDone, Cycles: cycle}, nil
		}

		messages = append(messages, resp)
		for _, tc := range resp.ToolCalls {
			tracker.IncrementCallCount()
			emitter.Emit(fmt.Sprintf("Working: %s", friendlyToolName(tc.Function.Name)))

			output := o.dispatch(ctx, byName, tracker, tc)
			obs, success := resultMeta(output)
			tracker.RecordObservation(obs)
			// A successful non-plan call advances the plan by one step.
			if success && tc.Function.Name != "plan" {
				if remaining := tracker.Remaining(); len(remaining) > 0 {
					tracker.MarkComplete(remaining[0])
				}
			}
			messages = append(messages, schema.ToolMessage(output, tc.ID))

			emitter.Emit(fmt.Sprintf("Finished: %s", friendlyToolName(tc.Function.Name)))
		}
	}

	answer := o.partialNarrative(tracker, question)
	o.persistTurn(datasetID, question, answer)
	emitter.Emit("Stopped early; returning what was found so far")
	o.log.Warn("run aborted at cycle budget", zap.String("dataset_id", datasetID),
		zap.Int("max_cycles", o.cfg.MaxCycles), zap.Int("tool_calls", tracker.CallCount()))
	return &RunResult{Answer: answer, State: RunAborted, Cycles: o.cfg.MaxCycles}, nil
}

// dispatch runs one tool call and always returns a structured result
// string; tool failures are folded into the envelope, never raised.
func (o *Orchestrator) dispatch(ctx context.Context, byName map[string]tool.InvokableTool, tracker *Tracker, tc schema.ToolCall) string {
	t, ok := byName[tc.Function.Name]
	if !ok {
		tracker.IncrementErrorCount()
		return failureResult(ErrValidation, "that tool does not exist",
			fmt.Sprintf("unknown tool %q requested", tc.Function.Name), false).encode()
	}

	output, err := t.InvokableRun(ctx, tc.Function.Arguments)
	if err != nil {
		tracker.IncrementErrorCount()
		o.log.Warn("tool execution failed", zap.String("tool", tc.Function.Name), zap.Error(err))
		return failureResult(database.ErrEngine, "the tool could not be executed",
			fmt.Sprintf("%s failed to execute", tc.Function.Name), true).encode()
	}
	return output
}

func (o *Orchestrator) persistTurn(datasetID, question, answer string) {
	if _, err := o.store.AppendTurn(datasetID, question, answer); err != nil {
		o.log.Warn("failed to save turn to history", zap.String("dataset_id", datasetID), zap.Error(err))
	}
}

// partialNarrative assembles the best-effort answer returned when the
// cycle budget runs out.
func (o *Orchestrator) partialNarrative(tracker *Tracker, question string) string {
	var sb strings.Builder
	sb.WriteString("I wasn't able to finish the analysis within the allotted steps. Here is what I found so far.\n\n")

	if completed := tracker.Completed(); len(completed) > 0 {
		sb.WriteString(fmt.Sprintf("Completed steps (%.0f%% of the plan): %s\n\n",
			tracker.Progress()*100, strings.Join(completed, ", ")))
	}

	observations := tracker.Observations()
	if len(observations) > 0 {
		const keep = 5
		if len(observations) > keep {
			observations = observations[len(observations)-keep:]
		}
		sb.WriteString("Latest observations:\n")
		for _, obs := range observations {
			sb.WriteString("- " + obs + "\n")
		}
	} else {
		sb.WriteString(fmt.Sprintf("No usable results were gathered for %q. Try asking a narrower question.\n", question))
	}
	return sb.String()
}

// resultMeta pulls the observation text and success flag out of a tool's
// encoded result.
func resultMeta(output string) (string, bool) {
	var result ToolResult
	if err := json.Unmarshal([]byte(output), &result); err == nil && result.Observation != "" {
		return result.Observation, result.Success
	}
	if len(output) > 200 {
		output = output[:200]
	}
	return output, false
}

func friendlyToolName(name string) string {
	switch name {
	case "plan":
		return "planning the analysis"
	case "execute_query":
		return "querying your data"
	case "get_schema":
		return "reading the data structure"
	case "sample_rows":
		return "looking at example rows"
	case "reflect":
		return "checking the results"
	case "summarize":
		return "pulling the findings together"
	default:
		return name
	}
}
