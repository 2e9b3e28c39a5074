package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mandanten-backend/controllers"
	"mandanten-backend/metrics"
	"mandanten-backend/middlewares"
	"mandanten-backend/models"
)

// Deps is everything route wiring needs, constructed in main and passed
// down explicitly.
type Deps struct {
	Auth        *controllers.AuthController
	Tenants     *controllers.TenantController
	ResolveT    fiber.Handler // tenant resolution middleware
	Authed      fiber.Handler // bearer token verification
	TenantMatch fiber.Handler // claim/context binding gate
	AuthLimiter *middlewares.RateLimiter
	Metrics     *metrics.Metrics
}

// Register wires all HTTP routes.
func Register(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Public auth endpoints; discovery/login surfaces are throttled per
	// client to blunt enumeration and brute force.
	authGroup := api.Group("/auth")
	authGroup.Post("/discover",
		middlewares.RateLimit("discover", d.AuthLimiter, d.Metrics), d.Auth.Discover)
	authGroup.Post("/login",
		middlewares.RateLimit("login", d.AuthLimiter, d.Metrics), d.Auth.Login)
	authGroup.Post("/select-tenant",
		middlewares.RateLimit("select-tenant", d.AuthLimiter, d.Metrics), d.Auth.SelectTenant)
	authGroup.Post("/logout", d.Auth.Logout)

	// Tenant-scoped endpoints: token check, then host resolution, then the
	// claim/context binding gate. Order matters; the gate needs both. The
	// chain is attached per route so it never bleeds onto the admin surface,
	// which is host-independent.
	api.Get("/session", d.Authed, d.ResolveT, d.TenantMatch, d.Auth.Session)
	api.Get("/tenant/health", d.Authed, d.ResolveT, d.TenantMatch, d.Tenants.Health)

	// Administrative catalog surface.
	admin := api.Group("/admin")
	admin.Use(d.Authed)
	admin.Use(middlewares.RequireRole(models.RoleSuperAdmin))

	admin.Post("/tenants", d.Tenants.Create)
	admin.Get("/tenants/:id", d.Tenants.Get)
	admin.Patch("/tenants/:id", d.Tenants.Update)
	admin.Post("/tenants/:id/suspend", d.Tenants.Suspend)
	admin.Post("/tenants/:id/reactivate", d.Tenants.Reactivate)
}
