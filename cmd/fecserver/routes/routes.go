package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/lyzr/orchestrator/cmd/fecserver/container"
	"github.com/lyzr/orchestrator/cmd/fecserver/handlers"
)

// Register wires every fecserver HTTP route onto e using services from c.
func Register(e *echo.Echo, c *container.Container) {
	executionHandler := handlers.NewExecutionHandler(c)
	flowHandler := handlers.NewFlowHandler(c)
	approvalHandler := handlers.NewApprovalHandler(c)

	flows := e.Group("/flows")
	flows.PUT("/:id", flowHandler.Put)

	executions := e.Group("/executions")
	executions.POST("", executionHandler.Start)
	executions.GET("/:id", executionHandler.Get)
	executions.POST("/:id/cancel", executionHandler.Cancel)
	executions.POST("/:id/resolve", executionHandler.Resolve)
	executions.GET("/:id/events", executionHandler.Events)
	executions.GET("/:id/approvals", approvalHandler.ListForExecution)

	e.POST("/recover", flowHandler.Recover)
}
