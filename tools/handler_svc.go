package tools

import (
	"context"
	"fmt"
	"time"
)

// SvcInvoker is implemented by an internal service adapter and registered
// on a ServiceHandle's McpAdapter field (the `svc` type shares the same
// "out-of-process adapter" shape as `mcp`, just without MCP's specific
// tool-catalog framing: `svc` is a distinct exec URI type but has no wire
// semantics of its own).
type SvcInvoker interface {
	Invoke(ctx context.Context, path string, args map[string]interface{}) (map[string]interface{}, error)
}

// SvcHandler implements the `svc` tool type: a generic internal-service
// call, dispatched to whatever adapter the caller wired for this service
// name.
type SvcHandler struct{}

func (SvcHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	invoker, ok := handle.McpAdapter.(SvcInvoker)
	if !ok || invoker == nil {
		return nil, fmt.Errorf("tools: svc handle for service %q has no adapter wired", handle.Service)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	result, err := invoker.Invoke(ctx, spec.Code, args)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, &TimeoutError{URI: handle.Service}
		default:
			return nil, fmt.Errorf("tools: svc invoke %s: %w", spec.Code, err)
		}
	}
	return result, nil
}
