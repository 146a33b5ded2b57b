package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"nko-map-backend/api-server/response"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	service string
	checks  []HealthCheck
}

func NewHealthHandler(service string, checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{service: service, checks: checks}
}

type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

// GET /api/health
// @Summary Liveness and dependency checks
// @Tags health
// @Produce json
// @Success 200 {object} response.UnifiedResponse{data=HealthResponse}
// @Failure 503 {object} response.UnifiedResponse{data=HealthResponse}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	results := make([]error, len(h.checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range h.checks {
		g.Go(func() error {
			results[i] = check.Check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	body := HealthResponse{Status: "healthy", Service: h.service, Checks: map[string]string{}}
	status := http.StatusOK
	for i, check := range h.checks {
		if results[i] != nil {
			body.Checks[check.Name] = "unavailable"
			body.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		body.Checks[check.Name] = "ok"
	}

	response.Success(c, status, "", body)
}
