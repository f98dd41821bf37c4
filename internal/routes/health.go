package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds a readiness endpoint covering every configured backend.
func RegisterHealthRoutes(fiberApp *fiber.App, d Deps) {
	fiberApp.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		backends := fiber.Map{}
		for name, err := range d.App.Ping(ctx) {
			if err != nil {
				backends[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			backends[name] = "ok"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    backends,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
