// Package api implements the control plane's HTTP surface: the pipeline and
// assignment catalog, the agent poll endpoint, health, and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/database"
	"github.com/observix/observix/pkg/services"
)

// Server hosts the control plane API.
type Server struct {
	cfg      *config.ControlPlaneConfig
	dbClient *database.Client

	pipelineService   *services.PipelineService
	assignmentService *services.AssignmentService
	agentService      *services.AgentService

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer wires the service layer and routes. Start must be called to
// begin serving.
func NewServer(cfg *config.ControlPlaneConfig, dbClient *database.Client) *Server {
	db := dbClient.DB()
	s := &Server{
		cfg:               cfg,
		dbClient:          dbClient,
		pipelineService:   services.NewPipelineService(db),
		assignmentService: services.NewAssignmentService(db),
		agentService:      services.NewAgentService(db),
		echo:              echo.New(),
	}
	s.registerRoutes()

	// /metrics bypasses the echo app (and its own instrumentation); every
	// other request is measured on the way through.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", requestMetrics(s.echo))

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())
	e.Use(corsAllowOrigins(s.cfg.AllowOrigins))

	e.GET("/healthz", s.healthHandler)

	e.POST("/v1/pipelines", s.createPipelineHandler)
	e.GET("/v1/pipelines", s.listPipelinesHandler)
	e.GET("/v1/pipelines/:id", s.getPipelineHandler)
	e.PUT("/v1/pipelines/:id", s.updatePipelineHandler)
	e.DELETE("/v1/pipelines/:id", s.deletePipelineHandler)

	e.POST("/v1/assignments", s.createAssignmentHandler)
	e.DELETE("/v1/assignments/:id", s.deleteAssignmentHandler)

	e.GET("/v1/agents", s.listAgentsHandler)
	e.GET("/v1/agents/:agent_id/assignments", s.agentAssignmentsHandler)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Shutdown. It returns nil on clean shutdown.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
