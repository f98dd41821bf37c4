package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/app"
	"github.com/congo-pay/edgewallet/internal/reconcile"
	"github.com/congo-pay/edgewallet/internal/routes"
)

// Server wraps the Fiber application, the wired services and the optional
// reconcile scheduler.
type Server struct {
	fiber     *fiber.App
	app       *app.App
	scheduler *reconcile.Scheduler
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(a *app.App, logger *slog.Logger) (*Server, error) {
	cfg := a.Config
	f := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LedgerTimeout*4 + 5*time.Second,
	})

	if err := routes.Setup(f, routes.Deps{Cfg: cfg, App: a, Logger: logger}); err != nil {
		return nil, err
	}

	scheduler, err := a.Scheduler()
	if err != nil {
		return nil, err
	}

	return &Server{fiber: f, app: a, scheduler: scheduler}, nil
}

// Listen starts the reconcile scheduler, if any, and the HTTP server.
func (s *Server) Listen() error {
	if s.scheduler != nil {
		s.scheduler.Start()
	}
	return s.fiber.Listen(s.app.Config.Address())
}

// Shutdown gracefully stops the HTTP server, then the scheduler.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.fiber.ShutdownWithContext(ctx)
	if s.scheduler != nil {
		err = errors.Join(err, s.scheduler.Stop(ctx))
	}
	return err
}
