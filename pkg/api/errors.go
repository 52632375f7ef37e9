package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/observix/observix/pkg/services"
)

// ErrorBody is the wire shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError emits the machine-readable error body. Handlers write error
// responses themselves so the wire shape never depends on framework error
// rendering.
func writeError(c *echo.Context, status int, code, message string) error {
	return c.JSON(status, &ErrorBody{Error: code, Message: message})
}

// writeServiceError maps service-layer errors to HTTP error responses.
func writeServiceError(c *echo.Context, err error) error {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return writeError(c, http.StatusBadRequest, "invalid_spec", validErr.Error())
	}
	if errors.Is(err, services.ErrNotFound) {
		return writeError(c, http.StatusNotFound, "not_found", "resource not found")
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		return writeError(c, http.StatusConflict, "conflict", "resource already exists")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return writeError(c, http.StatusInternalServerError, "store_error", "internal server error")
}
