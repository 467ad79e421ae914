package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/authstack/authstack/internal/core/ports"
)

// AuthHandler relays auth operations to the backend over the RPC channel. The
// gateway owns no user state; response payloads are written through verbatim.
type AuthHandler struct {
	rpc     ports.RPCCaller
	timeout time.Duration
}

func NewAuthHandler(rpc ports.RPCCaller, timeout time.Duration) *AuthHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuthHandler{rpc: rpc, timeout: timeout}
}

// Register creates a new user account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  map[string]any
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload, err := h.rpc.Send(c.Request().Context(), ports.PatternRegister, req, h.timeout)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusCreated, payload)
}

// Login authenticates a user and returns a signed access token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payload, err := h.rpc.Send(c.Request().Context(), ports.PatternLogin, req, h.timeout)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, payload)
}

// GetAllUsers lists every registered user.
//
// @Summary      Get all users (protected)
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200   {array}   map[string]any
// @Failure      401   {object}  errorResponse
// @Router       /auth/users [get]
func (h *AuthHandler) GetAllUsers(c echo.Context) error {
	payload, err := h.rpc.Send(c.Request().Context(), ports.PatternGetAllUsers, struct{}{}, h.timeout)
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, payload)
}
