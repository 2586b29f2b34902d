package tools

import (
	"context"
	"fmt"
	"time"
)

// FlowRunner is implemented by the scheduler and registered on a
// ServiceHandle's FlowRunner field: it runs a nested flow to completion
// under a fresh execution ID and returns its final output.
type FlowRunner interface {
	RunNested(ctx context.Context, flowID string, inputs map[string]interface{}) (map[string]interface{}, error)
}

// FlowHandler implements the `flow` tool type: nested flow invocation,
// same executor, new execution ID.
type FlowHandler struct{}

func (FlowHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	runner, ok := handle.FlowRunner.(FlowRunner)
	if !ok || runner == nil {
		return nil, fmt.Errorf("tools: flow handle for service %q has no runner wired", handle.Service)
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	inputs, _ := args["inputs"].(map[string]interface{})
	out, err := runner.RunNested(ctx, spec.Code, inputs)
	if err != nil {
		return nil, fmt.Errorf("tools: nested flow %s: %w", spec.Code, err)
	}
	return out, nil
}

// AgentHandler implements the `agent` tool type: agent delegation.
// It shares FlowRunner's invocation shape — a delegated agent run is
// modeled as a nested flow whose sole node is an Agent executor.
type AgentHandler struct{}

func (AgentHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	runner, ok := handle.FlowRunner.(FlowRunner)
	if !ok || runner == nil {
		return nil, fmt.Errorf("tools: agent handle for service %q has no runner wired", handle.Service)
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	inputs, _ := args["inputs"].(map[string]interface{})
	out, err := runner.RunNested(ctx, spec.Code, inputs)
	if err != nil {
		return nil, fmt.Errorf("tools: agent delegation %s: %w", spec.Code, err)
	}
	return out, nil
}
