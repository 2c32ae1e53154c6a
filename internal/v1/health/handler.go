package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/playforge/gamehost/internal/v1/bus"
	"github.com/playforge/gamehost/internal/v1/logging"
)

// RegistryChecker checks the health of the definition registry
type RegistryChecker interface {
	Check(ctx context.Context, baseURL string) string
}

// DefaultRegistryChecker is the default implementation of RegistryChecker
type DefaultRegistryChecker struct {
	client *http.Client
}

// Check probes the registry's health endpoint.
func (c *DefaultRegistryChecker) Check(ctx context.Context, baseURL string) string {
	client := c.client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return "unhealthy"
	}
	resp, err := client.Do(req)
	if err != nil {
		logging.Error(ctx, "Registry health check failed", zap.Error(err), zap.String("url", baseURL))
		return "unhealthy"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn(ctx, "Registry is not healthy", zap.Int("status", resp.StatusCode))
		return "unhealthy"
	}
	return "healthy"
}

// Handler manages health check endpoints
type Handler struct {
	redisService    *bus.Service
	registryURL     string
	registryChecker RegistryChecker
}

// NewHandler creates a new health check handler. redisService and
// registryURL may be zero when the deployment runs without them.
func NewHandler(redisService *bus.Service, registryURL string) *Handler {
	return &Handler{
		redisService:    redisService,
		registryURL:     registryURL,
		registryChecker: &DefaultRegistryChecker{},
	}
}

// Healthz is the liveness endpoint: the process is up.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Readyz is the readiness endpoint: dependencies are reachable.
func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true

	if h.redisService != nil && h.redisService.Client() != nil {
		if err := h.redisService.Client().Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy"
			ready = false
			logging.Error(ctx, "Redis readiness check failed", zap.Error(err))
		} else {
			checks["redis"] = "healthy"
		}
	} else {
		checks["redis"] = "disabled"
	}

	if h.registryURL != "" {
		status := h.registryChecker.Check(ctx, h.registryURL)
		checks["registry"] = status
		if status != "healthy" {
			ready = false
		}
	} else {
		checks["registry"] = "disabled"
	}

	code := http.StatusOK
	status := "ready"
	if !ready {
		code = http.StatusServiceUnavailable
		status = "not ready"
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
