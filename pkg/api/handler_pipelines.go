package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/observix/observix/pkg/models"
)

// createPipelineHandler handles POST /v1/pipelines.
func (s *Server) createPipelineHandler(c *echo.Context) error {
	var req models.CreatePipelineRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "malformed request body")
	}

	p, err := s.pipelineService.Create(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, &CreatePipelineResponse{
		PipelineID: p.PipelineID,
		Version:    p.Version,
	})
}

// listPipelinesHandler handles GET /v1/pipelines.
func (s *Server) listPipelinesHandler(c *echo.Context) error {
	pipelines, err := s.pipelineService.List(c.Request().Context())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &ListPipelinesResponse{Pipelines: pipelines})
}

// getPipelineHandler handles GET /v1/pipelines/:id.
func (s *Server) getPipelineHandler(c *echo.Context) error {
	p, err := s.pipelineService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// updatePipelineHandler handles PUT /v1/pipelines/:id. The body is partial:
// absent fields keep their stored values, and only actual changes bump the
// version.
func (s *Server) updatePipelineHandler(c *echo.Context) error {
	var req models.UpdatePipelineRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "malformed request body")
	}

	p, err := s.pipelineService.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusOK, &UpdatePipelineResponse{Version: p.Version})
}

// deletePipelineHandler handles DELETE /v1/pipelines/:id. Assignments
// referencing the pipeline are removed with it.
func (s *Server) deletePipelineHandler(c *echo.Context) error {
	if err := s.pipelineService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
