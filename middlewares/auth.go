package middlewares

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"mandanten-backend/apperrors"
	"mandanten-backend/auth"
	"mandanten-backend/metrics"
	"mandanten-backend/models"
	"mandanten-backend/tenant"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
	claimsLocal  = "claims"
)

// LegacyAlias is the single compatibility exception in the tenant gate:
// tokens minted before the tenant id format change carry Old and are
// accepted for exactly New. The check is one equality, never a pattern.
type LegacyAlias struct {
	Old string
	New string
}

// IsAuthenticated validates a Bearer token and stashes its claims in
// request scope. It does not bind the tenant; RequireTenantMatch does.
func IsAuthenticated(tokens *auth.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(authHeader)
		if h == "" || !strings.HasPrefix(strings.ToLower(h), strings.ToLower(bearerPrefix)) {
			return apperrors.E(apperrors.KindAuthFailed, "missing/invalid Authorization header")
		}
		raw := strings.TrimSpace(h[len(bearerPrefix):])
		if raw == "" {
			return apperrors.E(apperrors.KindAuthFailed, "invalid bearer token")
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			return err
		}

		c.Locals("userID", claims.Subject)
		c.Locals(claimsLocal, claims)
		return c.Next()
	}
}

// ClaimsFromCtx returns the verified claims for this request.
func ClaimsFromCtx(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals(claimsLocal).(*auth.Claims)
	return claims, ok
}

// CheckTenantClaims binds token claims to the resolved tenant context.
// Both tenant_id and subdomain must match; any mismatch is a hard
// CrossTenantViolation. Temp tokens never pass: they are valid only for
// the exchange endpoint, not for resource access.
func CheckTenantClaims(claims *auth.Claims, tctx *tenant.Context, alias LegacyAlias) error {
	if claims == nil || tctx == nil {
		return apperrors.E(apperrors.KindAuthFailed, "missing auth context")
	}
	if !claims.IsFull() {
		return apperrors.E(apperrors.KindAuthFailed, "token is not tenant-bound")
	}

	tenantMatches := claims.TenantID == tctx.TenantID
	if !tenantMatches && alias.Old != "" && alias.New != "" {
		tenantMatches = claims.TenantID == alias.Old && tctx.TenantID == alias.New
	}
	if !tenantMatches || claims.Subdomain != tctx.Subdomain {
		return apperrors.E(apperrors.KindCrossTenantViolation, "token does not match tenant")
	}
	return nil
}

// RequireTenantMatch enforces claim/context binding for every tenant-scoped
// route. Run it after IsAuthenticated and ResolveTenant.
func RequireTenantMatch(alias LegacyAlias, m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, _ := ClaimsFromCtx(c)
		tctx, _ := TenantFromCtx(c)
		if err := CheckTenantClaims(claims, tctx, alias); err != nil {
			if m != nil && apperrors.KindOf(err) == apperrors.KindCrossTenantViolation {
				m.CrossTenantDenied.Inc()
			}
			return err
		}
		return c.Next()
	}
}

// RequireRole gates a route on exactly one role; there is no role
// ordering. The admin surface gates on super_admin and nothing else.
func RequireRole(role models.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromCtx(c)
		if !ok || claims.Role != role {
			return apperrors.E(apperrors.KindAuthFailed, "insufficient role")
		}
		return c.Next()
	}
}
