package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/congo-pay/edgewallet/internal/app"
	"github.com/congo-pay/edgewallet/internal/config"
	"github.com/congo-pay/edgewallet/internal/logging"
	"github.com/congo-pay/edgewallet/internal/metrics"
	"github.com/congo-pay/edgewallet/internal/middleware"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	App    *app.App
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(fiberApp *fiber.App, d Deps) error {
	if d.App == nil {
		return fmt.Errorf("routes: app is required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	// Enforce backend presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.App.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.App.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	fiberApp.Use(recover.New())
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(fiberApp, d)
	fiberApp.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := fiberApp.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	mutating := []fiber.Handler{
		middleware.RateLimit(d.App.Cache, d.Cfg.RateLimitPerMin, d.Logger),
		middleware.OperatorAuth([]byte(d.Cfg.AuthSecret)),
	}
	if d.App.Cache != nil {
		mutating = append(mutating, middleware.Idempotency(d.App.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	} else {
		d.Logger.Warn("redis not configured, Idempotency-Key is not enforced")
	}

	RegisterEdgeRoutes(api, d, mutating)
	return nil
}
