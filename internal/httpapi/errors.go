package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/identity"
)

// Error codes returned in the error envelope.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnavailable  = "unavailable"
	ErrCodeInternal     = "internal"
)

// APIError is a structured error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError for JSON serialization.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	signedIn := identity.FromContext(c.Request().Context()) != nil
	status, body := classify(err, signedIn)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, ErrorResponse{Error: body})
	}
	if err != nil {
		s.logger.Warn("write error response", zap.Error(err))
	}
}

// classify maps an error to a status and envelope. Store failures carry the
// store's message; anything unclassified gets a generic body.
func classify(err error, signedIn bool) (int, APIError) {
	var he *echo.HTTPError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, APIError{Code: ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, apperr.ErrAuth):
		if signedIn {
			return http.StatusForbidden, APIError{Code: ErrCodeForbidden, Message: err.Error()}
		}
		return http.StatusUnauthorized, APIError{Code: ErrCodeUnauthorized, Message: err.Error()}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, APIError{Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, apperr.ErrStore):
		return http.StatusInternalServerError, APIError{Code: ErrCodeInternal, Message: err.Error()}
	case errors.Is(err, engagement.ErrWatchUnavailable):
		return http.StatusServiceUnavailable, APIError{Code: ErrCodeUnavailable, Message: err.Error()}
	case errors.As(err, &he):
		return he.Code, APIError{Code: codeForStatus(he.Code), Message: fmt.Sprint(he.Message)}
	default:
		return http.StatusInternalServerError, APIError{Code: ErrCodeInternal, Message: "internal error"}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
		return ErrCodeBadRequest
	case http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case http.StatusForbidden:
		return ErrCodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return ErrCodeNotFound
	case http.StatusTooManyRequests:
		return ErrCodeRateLimited
	case http.StatusServiceUnavailable:
		return ErrCodeUnavailable
	default:
		return ErrCodeInternal
	}
}
