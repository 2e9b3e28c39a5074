package middlewares

import (
	"github.com/gofiber/fiber/v2"

	"mandanten-backend/tenant"
)

const tenantLocal = "tenantContext"

// ResolveTenant resolves the request's Host header to a tenant context and
// stashes it in request scope. Run it BEFORE IsAuthenticated's tenant gate
// so claim/context binding has a context to check against. The context is
// owned by this request alone and dies with it.
func ResolveTenant(resolver *tenant.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tctx, err := resolver.Resolve(c.UserContext(), c.Hostname())
		if err != nil {
			return err
		}
		c.Locals(tenantLocal, tctx)
		return c.Next()
	}
}

// TenantFromCtx returns the tenant context resolved for this request.
func TenantFromCtx(c *fiber.Ctx) (*tenant.Context, bool) {
	tctx, ok := c.Locals(tenantLocal).(*tenant.Context)
	return tctx, ok
}
