package http

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"interaction-gateway/internal/config"
	"interaction-gateway/internal/controller"
	"interaction-gateway/internal/model"
	"interaction-gateway/internal/routes"
)

// Server wraps the Fiber application setup.
type Server struct {
	app             *fiber.App
	shutdownTimeout time.Duration
}

// NewServer configures routes and middleware.
func NewServer(appCfg *config.Config, eventController controller.EventController, gatherer prometheus.Gatherer) *Server {
	fiberCfg := fiber.Config{
		DisableStartupMessage: true,
		Prefork:               appCfg.FiberPrefork,
		AppName:               "interaction-gateway " + appCfg.AppVersion,
		ReadTimeout:           appCfg.RequestTimeout,
		WriteTimeout:          appCfg.RequestTimeout,
		ErrorHandler:          errorHandler,
		JSONDecoder:           model.DecodeJSON,
	}
	app := fiber.New(fiberCfg)
	app.Use(recover.New())

	routes.Register(app, eventController, gatherer)

	return &Server{app: app, shutdownTimeout: appCfg.ShutdownTimeout}
}

// Run serves on addr until ctx is done, then shuts down. It returns only
// after in-flight requests have finished or the shutdown timeout expired.
func (s *Server) Run(ctx context.Context, addr string) error {
	return s.serve(ctx, func() error { return s.app.Listen(addr) })
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return s.serve(ctx, func() error { return s.app.Listener(ln) })
}

func (s *Server) serve(ctx context.Context, listen func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- listen() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// The listener returns as soon as shutdown begins, so Shutdown is the
	// call that waits for handlers.
	shutdownErr := s.Shutdown()
	if err := <-errCh; err != nil {
		return err
	}
	return shutdownErr
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown() error {
	if s.shutdownTimeout > 0 {
		return s.app.ShutdownWithTimeout(s.shutdownTimeout)
	}
	return s.app.Shutdown()
}

// App exposes the underlying Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
		message = ferr.Message
	}
	return c.Status(code).JSON(model.ErrorResponse{Error: message})
}
