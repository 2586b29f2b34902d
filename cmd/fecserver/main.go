package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyzr/orchestrator/cmd/fecserver/container"
	"github.com/lyzr/orchestrator/cmd/fecserver/routes"
	"github.com/lyzr/orchestrator/common/bootstrap"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "fecserver", bootstrap.WithoutDB())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap fecserver: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	flowDir := getEnv("FEC_FLOW_DIR", "./flows")
	serviceContainer, err := container.New(ctx, flowDir, components)
	if err != nil {
		components.Logger.Error("failed to initialize service container", "error", err)
		os.Exit(1)
	}

	if err := serviceContainer.Scheduler.Recover(ctx); err != nil {
		components.Logger.Error("recovering in-flight executions", "error", err)
	}
	go serviceContainer.Scheduler.RunSnapshotLoop(ctx)

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	routes.Register(e, serviceContainer)

	startServer(e, components)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "fecserver",
		})
	})
}

func startServer(e *echo.Echo, components *bootstrap.Components) {
	port := components.Config.Service.Port
	components.Logger.Info("starting fecserver", "port", port)
	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
