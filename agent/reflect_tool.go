package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// Keyword groups driving the reflect/summarize heuristics. These are
// substring proxies for "does the narrative look like real analysis", not
// ground truth; treat the scores as advisory.
var (
	errorMarkers = []string{"error", "failed", "failure", "exception", "no such", "could not", "unable to"}
	insightWords = []string{"insight", "pattern", "correlat", "trend", "indicates", "suggests", "driven by", "stands out"}
	recommendWords = []string{"recommend", "should", "consider", "next step", "action", "improve"}
	conclusionWords = []string{"in conclusion", "overall", "in summary", "to summarize", "taken together"}

	digitPattern = regexp.MustCompile(`\d`)
)

func containsDataMarkers(s string) bool {
	return digitPattern.MatchString(s) || strings.Contains(s, "rows") || strings.Contains(s, "|")
}

type reflectInput struct {
	ResultsText string `json:"results_text"`
	Question    string `json:"question"`
	Rationale   string `json:"rationale"`
}

// ReflectTool scores intermediate results and decides whether the analysis
// should continue. An error marker in the narrative always requests a
// replan, whatever the other signals say.
type ReflectTool struct {
	tracker *Tracker
	log     *zap.Logger
}

// NewReflectTool creates the reflect tool.
func NewReflectTool(tracker *Tracker, logger *zap.Logger) *ReflectTool {
	return &ReflectTool{tracker: tracker, log: logger}
}

func (t *ReflectTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "reflect",
		Desc: "Assess whether the results gathered so far answer the question, and whether to continue, stop, or replan.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"results_text": {
				Type:     schema.String,
				Desc:     "The narrative of results gathered so far.",
				Required: true,
			},
			"question": {
				Type:     schema.String,
				Desc:     "The user's original question.",
				Required: true,
			},
			"rationale": {
				Type:     schema.String,
				Desc:     "Why reflection is useful at this point.",
				Required: true,
			},
		}),
	}, nil
}

func (t *ReflectTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in reflectInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "reflect input was not understood", "reflect received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "reflect"), zap.String("rationale", in.Rationale))

	text := strings.ToLower(in.ResultsText)

	hasData := containsDataMarkers(text)
	hasError := containsAny(text, errorMarkers)
	hasInsight := containsAny(text, insightWords)
	hasRecommendation := containsAny(text, recommendWords)
	hasConclusion := len(in.ResultsText) >= 200 && containsAny(text, conclusionWords)
	topical := firstTokenOverlap(in.ResultsText, in.Question)

	score := 0
	if hasData {
		score += 25
	}
	if topical {
		score += 15
	}
	if hasInsight {
		score += 25
	}
	if hasRecommendation {
		score += 15
	}
	if hasConclusion {
		score += 20
	}
	if hasError {
		score -= 30
	}
	if score < 0 {
		score = 0
	}

	if hasError {
		t.tracker.RequestReplan(true)
	}

	decision := "continue"
	if score >= 60 && !hasError {
		decision = "sufficient"
	}

	data := map[string]any{
		"score":              score,
		"decision":           decision,
		"has_data":           hasData,
		"has_error":          hasError,
		"has_insight":        hasInsight,
		"has_recommendation": hasRecommendation,
		"has_conclusion":     hasConclusion,
		"topical":            topical,
	}

	observation := fmt.Sprintf("reflection score %d, decision: %s", score, decision)
	if hasError {
		observation += "; an error marker was found, replan requested"
	}
	t.log.Info("tool done", zap.String("tool", "reflect"), zap.Int("score", score), zap.String("decision", decision))

	return ToolResult{
		Success:      true,
		Data:         data,
		Message:      "reflection complete",
		Observation:  observation,
		ShouldReplan: hasError,
	}.encode(), nil
}

// firstTokenOverlap reports whether the first meaningful token of the
// results narrative also appears in the question.
func firstTokenOverlap(results, question string) bool {
	fields := strings.Fields(strings.ToLower(results))
	if len(fields) == 0 {
		return false
	}
	first := strings.Trim(fields[0], ".,:;!?")
	if len(first) < 3 {
		return false
	}
	return strings.Contains(strings.ToLower(question), first)
}

type summarizeInput struct {
	Findings  []string `json:"findings"`
	Question  string   `json:"question"`
	Rationale string   `json:"rationale"`
}

// SummarizeTool buckets findings and scores how complete the analysis
// looks before the final answer is written.
type SummarizeTool struct {
	log *zap.Logger
}

// NewSummarizeTool creates the summarize tool.
func NewSummarizeTool(logger *zap.Logger) *SummarizeTool {
	return &SummarizeTool{log: logger}
}

func (t *SummarizeTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "summarize",
		Desc: "Group accumulated findings into key insights, data points and conclusions, with a quality score for the set.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"findings": {
				Type:     schema.Array,
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Desc:     "The findings gathered during the analysis.",
				Required: true,
			},
			"question": {
				Type:     schema.String,
				Desc:     "The user's original question.",
				Required: true,
			},
			"rationale": {
				Type:     schema.String,
				Desc:     "Why summarizing now.",
				Required: true,
			},
		}),
	}, nil
}

func (t *SummarizeTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	var in summarizeInput
	if err := json.Unmarshal([]byte(input), &in); err != nil {
		return failureResult(ErrValidation, "summarize input was not understood", "summarize received malformed input", false).encode(), nil
	}
	t.log.Info("tool call", zap.String("tool", "summarize"),
		zap.Int("findings", len(in.Findings)), zap.String("rationale", in.Rationale))

	var insights, dataPoints, conclusions []string
	for _, finding := range in.Findings {
		lower := strings.ToLower(finding)
		switch {
		case containsAny(lower, insightWords):
			insights = append(insights, finding)
		case containsAny(lower, conclusionWords) || containsAny(lower, recommendWords):
			conclusions = append(conclusions, finding)
		case containsDataMarkers(lower):
			dataPoints = append(dataPoints, finding)
		default:
			dataPoints = append(dataPoints, finding)
		}
	}

	score := len(insights)*25 + len(conclusions)*20 + len(dataPoints)*10
	if score > 100 {
		score = 100
	}

	data := map[string]any{
		"key_insights":  insights,
		"data_points":   dataPoints,
		"conclusions":   conclusions,
		"quality_score": score,
	}
	observation := fmt.Sprintf("summarized %d findings into %d insights, %d data points, %d conclusions (quality %d)",
		len(in.Findings), len(insights), len(dataPoints), len(conclusions), score)
	t.log.Info("tool done", zap.String("tool", "summarize"), zap.Int("quality", score))

	return successResult(data, "findings summarized", observation).encode(), nil
}
