package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sakashimaa/order-orchestrator/pkg/mylogger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const requestIDKey = "requestid"

// NewRequestID accepts the caller's X-Request-Id or generates one, and puts
// it on the request context for logs, remote calls and audit entries.
func NewRequestID() []fiber.Handler {
	return []fiber.Handler{
		requestid.New(requestid.Config{
			Header:     fiber.HeaderXRequestID,
			ContextKey: requestIDKey,
		}),
		func(c *fiber.Ctx) error {
			id, _ := c.Locals(requestIDKey).(string)
			if id == "" {
				return c.Next()
			}

			ctx := c.UserContext()
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("request_id", id))
			c.SetUserContext(mylogger.WithRequestID(ctx, id))

			return c.Next()
		},
	}
}
