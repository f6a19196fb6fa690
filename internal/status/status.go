package status

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"mapleads/internal/logger"
	"mapleads/internal/platform/redis"
	"mapleads/internal/runner"
)

// Handler serves run progress and health over HTTP so an unattended run can
// be watched without tailing logs.
type Handler struct {
	log       *logger.Logger
	run       *runner.Runner
	redisSvc  *redis.Service
	startTime time.Time
}

func NewHandler(run *runner.Runner, redisSvc *redis.Service) *Handler {
	return &Handler{
		log:       logger.New("Status"),
		run:       run,
		redisSvc:  redisSvc,
		startTime: time.Now(),
	}
}

// Limiter keeps a misbehaving watcher from hammering the endpoints.
func Limiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        30,
		Expiration: time.Minute,
	})
}

type componentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]componentStatus `json:"components"`
}

// HandleHealth reports process health plus the optional redis dependency.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	resp := healthResponse{
		OverallStatus: "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    map[string]componentStatus{},
	}

	if h.redisSvc != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		if err := h.redisSvc.HealthCheck(ctx); err != nil {
			resp.Components["redis"] = componentStatus{Status: "unhealthy", Error: err.Error()}
			resp.OverallStatus = "degraded"
		} else {
			resp.Components["redis"] = componentStatus{Status: "healthy"}
		}
	}

	code := http.StatusOK
	if resp.OverallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return c.Status(code).JSON(resp)
}

// HandleStatus returns the runner's progress snapshot.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	if h.run == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "no active run"})
	}
	return c.JSON(h.run.Snapshot())
}
