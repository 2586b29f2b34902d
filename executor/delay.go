package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// DelayExecutor implements the `delay` node kind: parse
// `wait` (string "Nu" with u in {s,m,h}, or a bare numeric literal in
// milliseconds), sleep until elapsed while observing cancellation, and
// bind `null` under the node id.
type DelayExecutor struct{}

func (DelayExecutor) Run(ctx context.Context, node *flow.Node, _ *value.Context, _ *gml.Evaluator) (NodeResult, error) {
	d, err := parseWait(node.Delay.Wait)
	if err != nil {
		return NodeResult{}, err
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return NodeResult{}, ctx.Err()
	case <-timer.C:
	}
	return NodeResult{Value: value.Null()}, nil
}

// parseWait parses a delay node's `wait` field: "Nu" with u ∈ {s, m, h},
// or a bare number of milliseconds.
func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, fmt.Errorf("executor: delay node missing wait value")
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}

	unit := raw[len(raw)-1]
	numPart := raw[:len(raw)-1]
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("executor: invalid delay wait %q: %w", raw, err)
	}
	switch unit {
	case 's':
		return time.Duration(n * float64(time.Second)), nil
	case 'm':
		return time.Duration(n * float64(time.Minute)), nil
	case 'h':
		return time.Duration(n * float64(time.Hour)), nil
	default:
		return 0, fmt.Errorf("executor: invalid delay wait unit %q in %q", string(unit), raw)
	}
}
