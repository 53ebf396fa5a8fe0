package routes

import (
	"interaction-gateway/internal/controller"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Register attaches all HTTP routes to the Fiber app. The batch route is
// registered before the parameterized single-event route so it is not
// captured as a kind.
func Register(app *fiber.App, eventController controller.EventController, gatherer prometheus.Gatherer) {
	app.Post("/events/batch", eventController.CreateBatch)
	app.Post("/events/:kind", eventController.CreateEvent)

	app.Get("/health", eventController.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
