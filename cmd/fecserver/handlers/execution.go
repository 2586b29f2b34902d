package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/orchestrator/cmd/fecserver/container"
	"github.com/lyzr/orchestrator/common/ratelimit"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/scheduler"
)

// ExecutionHandler serves the execution lifecycle endpoints: start, read
// status, cancel, stream events, and resolve a suspended approval/handoff.
type ExecutionHandler struct {
	c *container.Container
}

func NewExecutionHandler(c *container.Container) *ExecutionHandler {
	return &ExecutionHandler{c: c}
}

type startExecutionRequest struct {
	FlowID   string                 `json:"flowId"`
	TenantID string                 `json:"tenantId"`
	Inputs   map[string]interface{} `json:"inputs"`
}

type executionResponse struct {
	ExecutionID string `json:"executionId"`
	FlowID      string `json:"flowId"`
	Status      string `json:"status"`
}

// Start handles POST /executions: resolves the named flow, seeds a fresh
// execution, and returns immediately with its id and running status.
func (h *ExecutionHandler) Start(c echo.Context) error {
	var req startExecutionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FlowID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "flowId is required")
	}

	ctx := c.Request().Context()
	f, err := h.c.Flows.GetFlow(ctx, req.FlowID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("flow %q: %v", req.FlowID, err))
	}

	if err := h.checkRateLimit(ctx, req.TenantID, f); err != nil {
		return err
	}

	handle, err := h.c.Scheduler.Execute(ctx, req.FlowID, f, req.Inputs, req.TenantID, nil)
	if err != nil {
		return mapSchedulerError(err)
	}

	return c.JSON(http.StatusAccepted, executionResponse{
		ExecutionID: handle.ExecutionID(),
		FlowID:      req.FlowID,
		Status:      string(flow.StatusRunning),
	})
}

// Get handles GET /executions/:id: returns the execution's current
// ExecutionState snapshot.
func (h *ExecutionHandler) Get(c echo.Context) error {
	handle, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, handle.State())
}

// Cancel handles POST /executions/:id/cancel: requests cancellation and
// returns immediately without waiting for the drain to finish.
func (h *ExecutionHandler) Cancel(c echo.Context) error {
	handle, err := h.lookup(c)
	if err != nil {
		return err
	}
	handle.Cancel()
	return c.JSON(http.StatusAccepted, map[string]string{"executionId": handle.ExecutionID(), "status": "cancelling"})
}

type resolveRequest struct {
	NodeID   string `json:"nodeId"`
	OptionID string `json:"optionId"`
	TimedOut bool   `json:"timedOut"`
}

// Resolve handles POST /executions/:id/resolve: submits a resolution for
// a suspended approval or handoff node.
func (h *ExecutionHandler) Resolve(c echo.Context) error {
	handle, err := h.lookup(c)
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.NodeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "nodeId is required")
	}

	if err := handle.Resolve(c.Request().Context(), req.NodeID, scheduler.Resolution{
		OptionID: req.OptionID,
		TimedOut: req.TimedOut,
	}); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"executionId": handle.ExecutionID(), "nodeId": req.NodeID, "status": "resolved"})
}

// Events handles GET /executions/:id/events: streams ExecutionEvents as
// Server-Sent Events until the execution reaches a terminal state or the
// client disconnects.
func (h *ExecutionHandler) Events(c echo.Context) error {
	handle, err := h.lookup(c)
	if err != nil {
		return err
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	events, unsubscribe := handle.Events()
	defer unsubscribe()

	enc := json.NewEncoder(sseWriter{resp})
	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Fprint(resp, "event: ", ev.Type, "\ndata: ")
			if err := enc.Encode(ev); err != nil {
				return nil
			}
			fmt.Fprint(resp, "\n")
			resp.Flush()
		}
	}
}

// sseWriter adapts an echo.Response to io.Writer for json.Encoder, which
// otherwise appends a trailing newline per Encode call that the SSE
// framing above already accounts for.
type sseWriter struct{ w http.ResponseWriter }

func (s sseWriter) Write(p []byte) (int, error) { return s.w.Write(p) }

// checkRateLimit classifies f by its agent-node density and enforces the
// matching tier's per-tenant quota. A rate-limiter failure (e.g. Redis
// unreachable) fails open: execution throughput shouldn't hinge on the
// limiter's own availability.
func (h *ExecutionHandler) checkRateLimit(ctx context.Context, tenantID string, f *flow.Flow) error {
	if h.c.RateLimit == nil || tenantID == "" {
		return nil
	}
	profile := ratelimit.InspectFlow(f)
	result, err := h.c.RateLimit.CheckTieredLimit(ctx, tenantID, profile.Tier)
	if err != nil {
		return nil
	}
	if !result.Allowed {
		return echo.NewHTTPError(http.StatusTooManyRequests, fmt.Sprintf(
			"tenant %q exceeded the %s-tier quota (%d requests/window); retry in %ds",
			tenantID, profile.Tier, result.Limit, result.RetryAfterSeconds))
	}
	return nil
}

func (h *ExecutionHandler) lookup(c echo.Context) (*scheduler.Handle, error) {
	id := c.Param("id")
	handle, err := h.c.Scheduler.Lookup(id)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("execution %q not found", id))
	}
	return handle, nil
}

func mapSchedulerError(err error) error {
	var ve *scheduler.ValidationError
	if errors.As(err, &ve) {
		return echo.NewHTTPError(http.StatusBadRequest, ve.Error())
	}
	var se *scheduler.SchedulingError
	if errors.As(err, &se) {
		return echo.NewHTTPError(http.StatusInternalServerError, se.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
