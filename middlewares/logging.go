package middlewares

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestLogging logs every handled request with its outcome. Tenant
// context is logged through its redacted LogValue, so credentials never
// reach the log stream.
func RequestLogging(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		attrs := []any{
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if tctx, ok := TenantFromCtx(c); ok {
			attrs = append(attrs, "tenant", tctx)
		}
		if err != nil {
			// Status is finalized by the error handler after this returns.
			attrs = append(attrs, "error", err)
		}
		logger.Info("handled request", attrs...)
		return err
	}
}
