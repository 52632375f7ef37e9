package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/observix/observix/pkg/models"
)

// createAssignmentHandler handles POST /v1/assignments.
func (s *Server) createAssignmentHandler(c *echo.Context) error {
	var req models.CreateAssignmentRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "malformed request body")
	}

	a, err := s.assignmentService.Create(c.Request().Context(), req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, &CreateAssignmentResponse{AssignmentID: a.AssignmentID})
}

// deleteAssignmentHandler handles DELETE /v1/assignments/:id.
func (s *Server) deleteAssignmentHandler(c *echo.Context) error {
	if err := s.assignmentService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return writeServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
