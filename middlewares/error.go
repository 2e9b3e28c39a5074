package middlewares

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"mandanten-backend/apperrors"
)

// ErrorHandler centralizes error responses. Every kinded error keeps its
// specific kind on the wire; only truly unknown errors collapse to 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// 1) Fiber errors (use their status code + message)
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		// 2) Validation errors (422 + per-field info)
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			out := make(map[string]string, len(ve))
			for _, f := range ve {
				out[f.Field()] = f.Tag()
			}
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"message": "validation failed",
				"errors":  out,
			})
		}

		// 3) Kinded errors from the tenant core
		var ae *apperrors.Error
		if errors.As(err, &ae) {
			status := statusForKind(ae.Kind)
			if ae.Kind == apperrors.KindCrossTenantViolation {
				// Potential attack; elevated severity.
				logger.Warn("cross-tenant violation rejected",
					"path", c.Path(), "ip", c.IP(), "error", ae.Message)
			}
			if status >= fiber.StatusInternalServerError {
				logger.Error("infrastructure error", "path", c.Path(), "error", err)
			}
			return c.Status(status).JSON(fiber.Map{
				"message": ae.Message,
				"code":    ae.Kind.String(),
			})
		}

		// 4) Unknown errors (500)
		logger.Error("internal error", "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "internal server error",
		})
	}
}

func statusForKind(k apperrors.Kind) int {
	switch k {
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindSuspended, apperrors.KindCrossTenantViolation:
		return fiber.StatusForbidden
	case apperrors.KindAlreadyUsed, apperrors.KindExpired, apperrors.KindAuthFailed:
		return fiber.StatusUnauthorized
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindRateLimited:
		return fiber.StatusTooManyRequests
	case apperrors.KindInvalid:
		return fiber.StatusBadRequest
	case apperrors.KindDecryption, apperrors.KindUnavailable:
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}
