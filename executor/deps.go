package executor

import (
	"context"
	"time"

	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/tools"
)

// Deps bundles the collaborators shared by the executors that reach
// outside pure GML evaluation: the Tool Registry (Exec/Mcp), a model
// runtime (Agent), the clock used for Exec/Mcp tool deadlines, and the
// log used for diagnostics.
type Deps struct {
	Tools       *tools.Registry
	Model       ModelRuntime
	Subflow     SubflowRunner
	Log         *logger.Logger
	Now         func() time.Time
	MaxParallel int // bound on Each's parallel mode, 0 = defaultEachParallelism (8)
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ModelRuntime is the external collaborator an Agent node composes a
// request against. AnthropicRuntime is the default production implementation.
type ModelRuntime interface {
	Complete(ctx context.Context, req ModelRequest) (string, error)
}

// ModelRequest is the {model, system, messages, tools} shape an Agent
// node composes before invoking the model runtime.
type ModelRequest struct {
	Model       string
	System      string
	Messages    []ModelMessage
	Tools       []string
	Temperature float64
}

type ModelMessage struct {
	Role    string
	Content string
}
