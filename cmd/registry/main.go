package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/opendataplatform/registry/cmd/registry/container"
	registrymw "github.com/opendataplatform/registry/cmd/registry/middleware"
	"github.com/opendataplatform/registry/cmd/registry/routes"
	"github.com/opendataplatform/registry/cmd/registry/worker"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, schemas, logger, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "registry")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap registry: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		components.Logger.Error("Failed to initialize service container", "error", err)
		os.Exit(1)
	}

	// Background publication requests
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	publishWorker := worker.NewPublishWorker(serviceContainer.Publisher, serviceContainer.Queue, components.Logger)
	if err := publishWorker.Start(workerCtx); err != nil {
		components.Logger.Error("Failed to start publish worker", "error", err)
		os.Exit(1)
	}
	defer serviceContainer.Queue.Close()

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	if err := startServer(ctx, e, components); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(registrymw.PropagateRequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", echo.WrapHandler(server.HealthHandler(components.Health)))
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, c *container.Container) {
	routes.RegisterKeywordRoutes(e, c)
	routes.RegisterProviderRoutes(e, c)
	routes.RegisterCollectionRoutes(e, c)
	routes.RegisterPackageRoutes(e, c)
	routes.RegisterRecordRoutes(e, c)
	routes.RegisterAuditRoutes(e, c)
	routes.RegisterCatalogRoutes(e, c)
}

// startServer serves on the configured port until SIGINT or SIGTERM
func startServer(ctx context.Context, e *echo.Echo, components *bootstrap.Components) error {
	port := components.Config.Service.Port
	components.Logger.Info("Starting registry", "port", port)

	return server.New("registry", port, e, components.Logger).Run(ctx)
}
