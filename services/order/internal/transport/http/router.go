package http

import (
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sakashimaa/order-orchestrator/pkg/config"
	"github.com/sakashimaa/order-orchestrator/pkg/metrics"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/transport/http/handler"
	"github.com/sakashimaa/order-orchestrator/services/order/internal/transport/http/middleware"
)

type Handlers struct {
	Order  *handler.OrderHandler
	Health *handler.HealthHandler
}

func NewApp(cfg config.HTTP, limits config.Limiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	app.Use(otelfiber.Middleware())

	for _, h := range middleware.NewRequestID() {
		app.Use(h)
	}

	if limits.Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        limits.Max,
			Expiration: orDefault(limits.Expiration, 5*time.Second),
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests. Try again later.",
				})
			},
		}))
	}

	return app
}

func RegisterRoutes(app *fiber.App, h *Handlers, accessSecret []byte, gatherer prometheus.Gatherer) {
	app.Get("/healthz", h.Health.Health)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(gatherer)))

	api := app.Group("/api", middleware.NewAuthMiddleware(accessSecret))

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Get("/my", h.Order.ListMine)
	order.Get("/:id", h.Order.Get)
	order.Put("/:id/original-request", h.Order.CorrectOriginalRequest)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}

	return d
}
