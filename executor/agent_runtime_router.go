package executor

import (
	"context"
	"fmt"
	"strings"
)

// RoutingRuntime dispatches a ModelRequest to one of several
// provider-specific runtimes by matching req.Model against each
// provider's registered prefixes (e.g. "gpt-"/"o1-" for OpenAI,
// "gemini-" for Gemini, everything else falls through to Default). Lets
// one flow mix agent nodes across providers by model name alone, instead
// of requiring a separate tool/service per provider.
type RoutingRuntime struct {
	Default  ModelRuntime
	routes   []routingEntry
}

type routingEntry struct {
	prefix  string
	runtime ModelRuntime
}

// NewRoutingRuntime builds a router that falls back to def when no
// registered prefix matches req.Model.
func NewRoutingRuntime(def ModelRuntime) *RoutingRuntime {
	return &RoutingRuntime{Default: def}
}

// Register adds a prefix -> runtime route. Prefixes are matched
// case-insensitively, longest-registered-first order is not guaranteed,
// so prefixes should not overlap.
func (r *RoutingRuntime) Register(prefix string, runtime ModelRuntime) {
	r.routes = append(r.routes, routingEntry{prefix: strings.ToLower(prefix), runtime: runtime})
}

func (r *RoutingRuntime) Complete(ctx context.Context, req ModelRequest) (string, error) {
	model := strings.ToLower(req.Model)
	for _, route := range r.routes {
		if strings.HasPrefix(model, route.prefix) {
			return route.runtime.Complete(ctx, req)
		}
	}
	if r.Default == nil {
		return "", fmt.Errorf("executor: no model runtime matches %q and no default is configured", req.Model)
	}
	return r.Default.Complete(ctx, req)
}
