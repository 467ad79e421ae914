package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/rpc"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps coded RPC errors from the backend to their HTTP statuses.
//   - Maps transport failures (timeout, lost connection) to 503.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Coded errors relayed from the backend over the RPC channel.
	var re *rpc.Error
	if errors.As(err, &re) {
		switch re.Code {
		case rpc.CodeInvalidCredentials:
			return http.StatusUnauthorized, re.Message
		case rpc.CodeConflict:
			return http.StatusConflict, re.Message
		case rpc.CodeValidation:
			return http.StatusBadRequest, re.Message
		case rpc.CodeNoHandler:
			// Version mismatch between gateway and backend: a programming
			// error, never expected in steady state.
			log.Error().Str("path", c.Path()).Str("error", re.Message).Msg("unroutable rpc pattern")
			return http.StatusInternalServerError, "internal server error"
		}
	}

	// Transport failures: the backend is unreachable or did not answer in
	// time.
	switch {
	case errors.Is(err, rpc.ErrTimeout),
		errors.Is(err, rpc.ErrClosed),
		errors.Is(err, rpc.ErrNotConnected):
		log.Warn().Err(err).Str("path", c.Path()).Msg("auth backend unavailable")
		return http.StatusServiceUnavailable, "authentication service unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
