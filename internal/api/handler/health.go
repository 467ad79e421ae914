package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler handles GET /health, the liveness probe.
// Returns 200 immediately; confirms the process is alive.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// backendProbe reports whether the RPC channel to the backend is usable.
type backendProbe interface {
	Connected() bool
}

// ReadinessHandler handles GET /health/ready, the readiness probe.
// The gateway is ready when its persistent backend connection is up.
type ReadinessHandler struct {
	backend backendProbe
}

func NewReadinessHandler(backend backendProbe) *ReadinessHandler {
	return &ReadinessHandler{backend: backend}
}

type dependencyStatus struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

func (h *ReadinessHandler) Readiness(c echo.Context) error {
	deps := make(map[string]dependencyStatus)
	status := "ok"
	httpStatus := http.StatusOK

	if h.backend.Connected() {
		deps["authd"] = dependencyStatus{Status: "ok"}
	} else {
		deps["authd"] = dependencyStatus{Status: "unhealthy"}
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, readinessResponse{
		Status:       status,
		Dependencies: deps,
	})
}
