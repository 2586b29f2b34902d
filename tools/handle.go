package tools

import (
	"context"
	"net/http"
	"time"
)

// ToolSpec describes one invocable operation exposed by a service,
// resolved via Registry.GetTool.
type ToolSpec struct {
	Code        string
	TimeoutMS   int64
	MaxRetries  int
	BackoffMS   int64
	Retriable   func(error) bool
}

// Deadline computes the absolute deadline for an invocation of this tool:
// now + toolSpec.timeout_ms, or a default if unset.
func (t ToolSpec) Deadline(now time.Time) time.Time {
	if t.TimeoutMS <= 0 {
		return now.Add(15 * time.Second)
	}
	return now.Add(time.Duration(t.TimeoutMS) * time.Millisecond)
}

// Handler is the invocation contract every per-type handler satisfies: it
// MUST check cancel at suspension points and MUST return before deadline
// or fail with a TimeoutError.
type Handler interface {
	Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error)
}

// ServiceHandle encapsulates one (tenantId, type, service) connection
// pool: an HTTP client, a DB pool reference, an AMQP channel, etc. Handles
// are process-wide and internally thread-safe; the Registry owns their
// lifecycle.
type ServiceHandle struct {
	TenantID string
	Type     ToolType
	Service  string

	HTTPClient *http.Client  // api
	BaseURL    string        // api
	AuthMode   string        // api: none|bearer|basic|apikey|custom
	AuthValue  string        // api

	DBQuerier interface{} // db: a *pgxpool.Pool or equivalent, set by caller wiring

	OSSRoot string // oss: filesystem-backed reference handler root dir

	Broker interface{} // mq: a *redis.Client (common/redis), standing in for an AMQP channel — see DESIGN.md

	Sender interface{} // mail/sms: a template-driven sender implementation, set by caller wiring

	FlowRunner interface{} // flow/agent: a nested-execution invoker, set by caller wiring

	McpAdapter interface{} // mcp: an out-of-process tool adapter loaded via go-plugin, set by caller wiring

	createdAt time.Time
	lastUsed  time.Time
}

func (h *ServiceHandle) touch() { h.lastUsed = time.Now() }

// handleKey is the LRU cache key (tenantId, type, service).
type handleKey struct {
	tenantID string
	typ      ToolType
	service  string
}
