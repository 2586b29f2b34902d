package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/orchestrator/cmd/fecserver/container"
)

// ApprovalHandler serves read access to pending approvals, independent of
// the execution-scoped Resolve endpoint on ExecutionHandler.
type ApprovalHandler struct {
	c *container.Container
}

func NewApprovalHandler(c *container.Container) *ApprovalHandler {
	return &ApprovalHandler{c: c}
}

// ListForExecution handles GET /executions/:id/approvals: every approval
// currently suspended for the named execution.
func (h *ApprovalHandler) ListForExecution(c echo.Context) error {
	executionID := c.Param("id")
	pending, err := h.c.Scheduler.Approvals().ListByExecution(c.Request().Context(), executionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"approvals": pending})
}
