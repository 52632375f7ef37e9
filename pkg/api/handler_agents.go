package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// listAgentsHandler handles GET /v1/agents. Status is computed against the
// configured offline threshold at read time.
func (s *Server) listAgentsHandler(c *echo.Context) error {
	agents, err := s.agentService.List(c.Request().Context(), s.cfg.AgentOfflineThreshold())
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, &ListAgentsResponse{Agents: agents})
}

// agentAssignmentsHandler handles GET /v1/agents/:agent_id/assignments.
// This is the poll endpoint: it upserts the agent record (that's how agents
// register), computes the assignment view, and answers 304 when the caller's
// If-None-Match revision still matches.
func (s *Server) agentAssignmentsHandler(c *echo.Context) error {
	agentID := c.Param("agent_id")
	region := c.QueryParam("region")
	if region == "" {
		return writeError(c, http.StatusBadRequest, "invalid_spec", "region query parameter is required")
	}

	ctx := c.Request().Context()
	if err := s.agentService.Touch(ctx, agentID, region); err != nil {
		return writeServiceError(c, err)
	}

	view, err := s.assignmentService.ViewFor(ctx, agentID, region)
	if err != nil {
		return writeServiceError(c, err)
	}

	c.Response().Header().Set("ETag", view.Revision)
	if c.Request().Header.Get("If-None-Match") == view.Revision {
		return c.NoContent(http.StatusNotModified)
	}

	return c.JSON(http.StatusOK, view)
}
