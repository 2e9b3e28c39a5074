package middlewares

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandanten-backend/apperrors"
)

func TestErrorHandlerKindMapping(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		kind       apperrors.Kind
		wantStatus int
	}{
		{apperrors.KindNotFound, fiber.StatusNotFound},
		{apperrors.KindSuspended, fiber.StatusForbidden},
		{apperrors.KindCrossTenantViolation, fiber.StatusForbidden},
		{apperrors.KindAlreadyUsed, fiber.StatusUnauthorized},
		{apperrors.KindExpired, fiber.StatusUnauthorized},
		{apperrors.KindAuthFailed, fiber.StatusUnauthorized},
		{apperrors.KindConflict, fiber.StatusConflict},
		{apperrors.KindRateLimited, fiber.StatusTooManyRequests},
		{apperrors.KindInvalid, fiber.StatusBadRequest},
		{apperrors.KindDecryption, fiber.StatusServiceUnavailable},
		{apperrors.KindUnavailable, fiber.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
			app.Get("/boom", func(c *fiber.Ctx) error {
				return apperrors.E(tt.kind, "boom")
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestErrorHandlerPreservesKindOnWire(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return apperrors.E(apperrors.KindSuspended, "tenant is suspended")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// Suspended stays distinguishable from not-found; support relies on it.
	assert.Contains(t, string(body), `"code":"suspended"`)
}

func TestErrorHandlerUnknownError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return assert.AnError
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
