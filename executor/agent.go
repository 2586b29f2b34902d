package executor

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// AgentExecutor implements the `agent` node kind: compose
// a {model, system, messages, tools} request and invoke the configured
// model runtime; `output_format` controls how the response is parsed.
type AgentExecutor struct {
	Deps
}

func (a *AgentExecutor) Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Agent
	if a.Model == nil {
		return NodeResult{}, fmt.Errorf("executor: agent node %s has no model runtime wired", node.ID)
	}

	argsVal, err := evalBlock(eval, spec.Args, ectx)
	if err != nil {
		return NodeResult{}, err
	}
	messages := toMessages(argsVal)

	req := ModelRequest{
		Model:       spec.Agent.Model,
		System:      spec.Agent.Instructions,
		Messages:    messages,
		Tools:       spec.Agent.Tools,
		Temperature: spec.Agent.Temperature,
	}

	text, err := a.Model.Complete(ctx, req)
	if err != nil {
		return NodeResult{}, err
	}

	result, err := parseAgentOutput(spec.Agent.OutputFormat, text)
	if err != nil {
		return NodeResult{}, err
	}

	if spec.With != "" {
		shapeCtx := ectx.NewChild()
		shapeCtx.Set("$raw", result)
		shaped, err := evalExpr(eval, spec.With, shapeCtx)
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{Value: shaped}, nil
	}
	return NodeResult{Value: result}, nil
}

// toMessages converts an evaluated `args` block into the agent's message
// list. An array of {role, content} objects maps directly; anything else
// is wrapped as a single user message.
func toMessages(v value.Value) []ModelMessage {
	if v.Kind() == value.KindArray {
		msgs := make([]ModelMessage, 0, len(v.Array()))
		for _, item := range v.Array() {
			if item.Kind() != value.KindObject {
				msgs = append(msgs, ModelMessage{Role: "user", Content: value.ToDisplayString(item)})
				continue
			}
			role, _ := item.Object().Get("role")
			content, _ := item.Object().Get("content")
			r := role.Str()
			if r == "" {
				r = "user"
			}
			msgs = append(msgs, ModelMessage{Role: r, Content: value.ToDisplayString(content)})
		}
		return msgs
	}
	if v.IsNullish() {
		return nil
	}
	return []ModelMessage{{Role: "user", Content: value.ToDisplayString(v)}}
}

// parseAgentOutput interprets the model runtime's raw text per
// output_format ∈ {json, markdown, text}.
func parseAgentOutput(format, text string) (value.Value, error) {
	switch format {
	case "json":
		v, err := value.FromJSON([]byte(text))
		if err != nil {
			return value.Undefined(), fmt.Errorf("executor: agent output_format=json: %w", err)
		}
		return v, nil
	default:
		return value.String(text), nil
	}
}
