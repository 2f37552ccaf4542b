package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// planRule maps question keywords to analysis steps. Rules are evaluated
// in order and every matching rule contributes its steps, so the table can
// grow without touching the planner itself. The keyword triggers are a
// heuristic and deliberately easy to extend.
type planRule struct {
	keywords []string
	steps    []string
}

var defaultPlanRules = []planRule{
	{
		keywords: []string{"distribution", "frequency", "histogram", "how many", "count of"},
		steps:    []string{"compute_summary_statistics", "analyze_value_distribution"},
	},
	{
		keywords: []string{"correlation", "relationship", "related", "depends on"},
		steps:    []string{"identify_candidate_variables", "measure_pairwise_relationships"},
	},
	{
		keywords: []string{"trend", "over time", "growth", "monthly", "yearly", "seasonal"},
		steps:    []string{"build_time_series", "analyze_trend_direction"},
	},
	{
		keywords: []string{"anomaly", "outlier", "unusual", "abnormal", "spike"},
		steps:    []string{"establish_baseline", "detect_outliers"},
	},
	{
		keywords: []string{"forecast", "predict", "projection", "next quarter", "future"},
		steps:    []string{"prepare_historical_series", "estimate_future_values"},
	},
	{
		keywords: []string{"optimize", "optimization", "improve", "maximize", "minimize"},
		steps:    []string{"identify_constraints", "evaluate_improvement_levers"},
	},
}

// trailingSteps close out every plan regardless of which rules fired.
var trailingSteps = []string{
	"extract_key_insights",
	"derive_business_implications",
	"formulate_recommendations",
}

type planInput struct {
	Question  string `json:"question"`
	Context   string `json:"context"`
	Rationale string `json:"rationale"`
}

// PlanTool derives an ordered step list for the question and installs it
// on the run's tracker.
type PlanTool struct {
	tracker *Tracker
	rules   []planRule
	log     *zap.Logger
}

// NewPlanTool creates the plan tool with the default rule table.
func NewPlanTool(tracker *Tracker, logger *zap.Logger) *PlanTool {
	return &PlanTool{tracker: tracker, rules: defaultPlanRules, log: logger}
}

func (t *PlanTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "plan",
		Desc: "Derive an ordered analysis plan for the user's question. Call this first, and again whenever the current plan stops matching what the data shows.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"question": {
				Type:     schema.String,
				Desc:     "The user's question, verbatim.",
				Required: true,
			},
			"context": {
				Type: schema.String,
				Desc: "Anything already known about the dataset that should shape the plan.",
			},
			"rationale": {
				Type:     schema.String,
				Desc:     "Why a (re)plan is needed right now.",
				Required: true,
			},
		}),
	}, nil
}

func (t *PlanTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in planInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "plan input was not understood", "plan tool received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "plan"), zap.String("rationale", in.Rationale))

	steps := t.deriveSteps(in.Question)
	t.tracker.SetPlan(steps)
	t.tracker.SetRationale(in.Rationale)

	observation := fmt.Sprintf("plan installed with %d steps: %s", len(steps), strings.Join(steps, " -> "))
	t.log.Info("tool done", zap.String("tool", "plan"), zap.Int("steps", len(steps)))

	return successResult(steps, "analysis plan created", observation).encode(), nil
}

func (t *PlanTool) deriveSteps(question string) []string {
	q := strings.ToLower(question)

	var steps []string
	for _, rule := range t.rules {
		if containsAny(q, rule.keywords) {
			steps = append(steps, rule.steps...)
		}
	}
	if len(steps) == 0 {
		steps = append(steps, "explore_schema_and_samples", "run_targeted_queries")
	}
	return append(steps, trailingSteps...)
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
