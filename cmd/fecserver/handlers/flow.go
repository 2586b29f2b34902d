package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lyzr/orchestrator/cmd/fecserver/container"
	"github.com/lyzr/orchestrator/fdl"
)

// FlowHandler serves the flow-definition management endpoints: upload a
// compiled FDL document under a flow id and re-serve its recovery
// routine once the Persistence Manager reports a crashed execution.
type FlowHandler struct {
	c *container.Container
}

func NewFlowHandler(c *container.Container) *FlowHandler {
	return &FlowHandler{c: c}
}

// Put handles PUT /flows/:id: parses the request body as FDL YAML,
// validates it, and registers it under :id for subsequent Start calls.
func (h *FlowHandler) Put(c echo.Context) error {
	id := c.Param("id")
	src, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "reading request body")
	}

	f, err := fdl.Parse(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("parsing flow: %v", err))
	}
	if err := f.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("validating flow: %v", err))
	}

	h.c.Flows.Put(id, f)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"flowId": id,
		"nodes":  len(f.Nodes),
	})
}

// Recover handles POST /recover: replays every snapshot the Persistence
// Manager reports as recoverable, resuming each execution's orchestrating
// task from where it left off.
func (h *FlowHandler) Recover(c echo.Context) error {
	if err := h.c.Scheduler.Recover(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "recovery complete"})
}
