package server

import (
	"github.com/gofiber/fiber/v2"

	"mapleads/internal/platform/redis"
	"mapleads/internal/runner"
	"mapleads/internal/status"
)

type Dependencies struct {
	Runner *runner.Runner
	Redis  *redis.Service
}

func RegisterRoutes(app *fiber.App, d Dependencies) {
	handler := status.NewHandler(d.Runner, d.Redis)

	api := app.Group("/v1", status.Limiter())
	api.Get("/health", handler.HandleHealth)
	api.Get("/status", handler.HandleStatus)
}
