package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/models"
	"github.com/observix/observix/pkg/version"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NormalizeResponse is the body of a successful normalize call.
type NormalizeResponse struct {
	Docs []models.Doc `json:"docs"`
}

// HealthResponse reports service health and the loaded profiles.
type HealthResponse struct {
	Status   string   `json:"status"`
	Version  string   `json:"version"`
	Profiles []string `json:"profiles"`
}

// Server hosts the normalization API.
type Server struct {
	cfg      *config.IndexerConfig
	registry *Registry

	echo       *echo.Echo
	httpServer *http.Server
}

// NewServer wires the routes. The registry must already be started; Start
// must be called to begin serving.
func NewServer(cfg *config.IndexerConfig, registry *Registry) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		echo:     echo.New(),
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.GET("/healthz", s.healthHandler)
	e.POST("/v1/normalize", s.normalizeHandler)
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

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:   "healthy",
		Version:  version.GitCommit,
		Profiles: s.registry.Names(),
	})
}

// normalizeRequest accepts raw as either a single string or an array of
// lines, so the body is decoded by hand instead of bound.
type normalizeRequest struct {
	Profile string          `json:"profile"`
	Raw     json.RawMessage `json:"raw"`
}

// lines returns the non-blank input lines. A string raw is split on newlines;
// an array raw is taken line by line.
func (r *normalizeRequest) lines() ([]string, error) {
	if len(r.Raw) == 0 {
		return nil, errors.New("raw is required")
	}

	var single string
	if err := json.Unmarshal(r.Raw, &single); err == nil {
		return nonBlank(strings.Split(single, "\n")), nil
	}

	var many []string
	if err := json.Unmarshal(r.Raw, &many); err == nil {
		return nonBlank(many), nil
	}

	return nil, errors.New("raw must be a string or an array of strings")
}

func nonBlank(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

func (s *Server) normalizeHandler(c *echo.Context) error {
	req := c.Request()
	if req.ContentLength > s.cfg.MaxRequestBytes {
		return s.tooLarge(c)
	}

	// ContentLength may be unknown; the limited read catches oversized
	// chunked bodies.
	body, err := io.ReadAll(io.LimitReader(req.Body, s.cfg.MaxRequestBytes+1))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "failed to read request body")
	}
	if int64(len(body)) > s.cfg.MaxRequestBytes {
		return s.tooLarge(c)
	}

	var nr normalizeRequest
	if err := json.Unmarshal(body, &nr); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "malformed request body")
	}

	lines, err := nr.lines()
	if err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", err.Error())
	}

	profile, err := s.registry.Resolve(nr.Profile)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "unknown_profile", err.Error())
	}

	return c.JSON(http.StatusOK, &NormalizeResponse{Docs: Normalize(profile, lines)})
}

func (s *Server) tooLarge(c *echo.Context) error {
	return writeError(c, http.StatusRequestEntityTooLarge, "payload_too_large",
		fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxRequestBytes))
}

// writeError emits the machine-readable error body. Handlers write error
// responses themselves so the wire shape never depends on framework error
// rendering.
func writeError(c *echo.Context, status int, code, message string) error {
	return c.JSON(status, &ErrorBody{Error: code, Message: message})
}
