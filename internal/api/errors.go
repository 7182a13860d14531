package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vietddude/docsite/internal/core/dberr"
)

const (
	msgInvalidPagination = "Invalid pagination parameters"
	msgInvalidBody       = "Invalid request body"
	msgTooManyRequests   = "Too many requests"
)

// respondError maps a repository error to its HTTP status. Anything that is
// not a client error is logged and answered with the generic fallback message.
func (s *Server) respondError(c echo.Context, err error, fallback string) error {
	if e, ok := dberr.As(err); ok {
		switch e.Kind {
		case dberr.KindNotFound:
			return c.JSON(http.StatusNotFound, errorResponse{Error: e.Message})
		case dberr.KindValidation:
			return c.JSON(http.StatusBadRequest, errorResponse{Error: e.Message, Field: e.Field})
		case dberr.KindConflict:
			return c.JSON(http.StatusConflict, errorResponse{Error: e.Message, Field: e.Field})
		}
	}

	s.logger.ErrorContext(c.Request().Context(), fallback,
		"method", c.Request().Method,
		"route", c.Path(),
		"kind", dberr.KindOf(err),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: fallback})
}

// parseID reads the :id path parameter. A malformed id cannot match any row,
// so it is reported as not found.
func parseID(c echo.Context, resource string) (uuid.UUID, error) {
	raw := c.Param("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dberr.NotFound(resource, raw)
	}
	return id, nil
}

// httpErrorHandler renders router and middleware errors in the API's JSON shape.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		s.logger.ErrorContext(c.Request().Context(), "Unhandled error", "route", c.Path(), "error", err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}
