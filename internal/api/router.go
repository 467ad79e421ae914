package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/authstack/authstack/internal/api/handler"
	"github.com/authstack/authstack/internal/api/middleware"
	"github.com/authstack/authstack/internal/rpc"
)

// NewRouter builds and returns the Echo instance with all routes registered.
// Dependencies are constructed by main and passed in explicitly.
func NewRouter(client *rpc.Client, jwtSecret string, rpcTimeout time.Duration, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("gateway"))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(client, rpcTimeout)
	authMiddleware := middleware.Auth(jwtSecret)

	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.GET("/auth/users", authHandler.GetAllUsers, authMiddleware)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(client)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
