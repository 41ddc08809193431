// Package actionseq turns a spoken request such as "先原地踏步，再鞠躬" into
// an ordered list of action groups and runs them.
package actionseq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/teslashibe/go-tonypi/pkg/inference"
	"github.com/teslashibe/go-tonypi/pkg/robot"
)

var (
	// ErrEmptyRequest is returned for a blank request.
	ErrEmptyRequest = errors.New("actionseq: empty request")

	// ErrNoPlan is returned when the model answer holds no JSON object.
	ErrNoPlan = errors.New("actionseq: no plan in model answer")

	// ErrInvalidPlan is returned when the plan is missing fields or names
	// an action that is not in the table.
	ErrInvalidPlan = errors.New("actionseq: invalid plan")
)

// ActionID is an action table key. The model is asked for strings but
// bare numbers are accepted too.
type ActionID string

// UnmarshalJSON accepts "10" and 10.
func (a *ActionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = ActionID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("action_id: %w", err)
	}
	*a = ActionID(n.String())
	return nil
}

// Step is one entry of a plan.
type Step struct {
	SequenceID int      `json:"sequence_id"`
	ActionID   ActionID `json:"action_id"`
}

// Plan is the model's answer: a confirmation to speak and the steps.
type Plan struct {
	TextResponse string `json:"text_response"`
	Steps        []Step `json:"action_sequence"`
}

// ParsePlan extracts the plan from a model answer. Text around the outermost
// braces, such as a markdown code fence, is ignored.
func ParsePlan(answer string) (Plan, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return Plan{}, ErrNoPlan
	}

	var raw struct {
		TextResponse *string `json:"text_response"`
		Steps        *[]Step `json:"action_sequence"`
	}
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if raw.TextResponse == nil || raw.Steps == nil {
		return Plan{}, fmt.Errorf("%w: missing text_response or action_sequence", ErrInvalidPlan)
	}
	return Plan{TextResponse: *raw.TextResponse, Steps: *raw.Steps}, nil
}

// Validate checks every step against table.
func (p Plan) Validate(table *robot.Table) error {
	for _, s := range p.Steps {
		if s.ActionID == "" {
			return fmt.Errorf("%w: step %d has no action_id", ErrInvalidPlan, s.SequenceID)
		}
		if _, ok := table.Lookup(string(s.ActionID)); !ok {
			return fmt.Errorf("%w: unknown action_id %s", ErrInvalidPlan, s.ActionID)
		}
	}
	return nil
}

// Planner asks the chat model for a plan.
type Planner struct {
	provider inference.Provider
	table    *robot.Table
	model    string
	logger   *slog.Logger
}

// NewPlanner creates a planner. An empty model uses the provider default.
func NewPlanner(provider inference.Provider, table *robot.Table, model string, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		provider: provider,
		table:    table,
		model:    model,
		logger:   logger.With("component", "actionseq.planner"),
	}
}

// Plan converts request into a validated plan.
func (p *Planner) Plan(ctx context.Context, request string) (Plan, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return Plan{}, ErrEmptyRequest
	}

	resp, err := p.provider.Chat(ctx, &inference.ChatRequest{
		Model: p.model,
		Messages: []inference.Message{
			inference.NewSystemMessage(p.SystemPrompt()),
			inference.NewUserMessage("用户指令: " + request),
		},
	})
	if err != nil {
		return Plan{}, err
	}
	p.logger.Debug("plan answer", "content", resp.Message.Content)

	plan, err := ParsePlan(resp.Message.Content)
	if err != nil {
		return Plan{}, err
	}
	if err := plan.Validate(p.table); err != nil {
		return Plan{}, err
	}
	p.logger.Info("plan ready", "request", request, "steps", len(plan.Steps))
	return plan, nil
}

// SystemPrompt lists the action table and the required answer format.
func (p *Planner) SystemPrompt() string {
	var list strings.Builder
	for _, a := range p.table.Actions() {
		label := a.Label
		if label == "" {
			label = a.Name
		}
		fmt.Fprintf(&list, "- %s (动作号: %s)\n", label, a.ID)
	}

	return `你是一个智能机器人助手。你的任务是将用户的自然语言指令，解析成一个标准化的动作序列。

# 可用动作列表
这是你能够执行的所有动作和它们对应的唯一"动作号"：
` + list.String() + `
# 你的任务
1. 理解用户指令中的动作顺序，指令中可能包含重复的动作。
2. 生成一段确认性的文本回复，用友好的语气复述你将要执行的动作顺序。例如："好的，我将先...，再...，最后..."。如果只有一个动作，不用说"先"和"最后"，直接说出要做的动作即可。
3. 创建一个JSON对象，其中包含这个文本回复和一个名为 "action_sequence" 的数组。
4. 在 "action_sequence" 数组中，列出要执行的动作。每个动作都是一个包含 "sequence_id"（从1开始的执行序号）和 "action_id"（对应的动作号）的对象。

# 输出格式要求
请严格按照以下JSON格式返回，不要添加任何额外的解释或文字。
{
  "text_response": "好的，我将先执行A，再执行B。",
  "action_sequence": [
    {"sequence_id": 1, "action_id": "动作号A"},
    {"sequence_id": 2, "action_id": "动作号B"}
  ]
}
注意，这里的action_id需要返回字符串形式的数字！！！`
}

// String renders a step for logs.
func (s Step) String() string {
	return strconv.Itoa(s.SequenceID) + ":" + string(s.ActionID)
}
