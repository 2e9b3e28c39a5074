package controllers

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"mandanten-backend/apperrors"
	"mandanten-backend/auth"
	"mandanten-backend/middlewares"
)

// AuthController serves discovery, login, tenant selection and session
// endpoints on top of the discovery service and replay guard.
type AuthController struct {
	Discovery      *auth.DiscoveryService
	Replay         auth.ReplayGuard
	PlatformDomain string
}

type discoverRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type selectTenantRequest struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

func (ac *AuthController) redirectURL(subdomain string) string {
	return fmt.Sprintf("https://%s.%s", subdomain, ac.PlatformDomain)
}

// Discover answers "where can this email log in": one tenant yields a
// direct redirect, several yield the candidate list.
func (ac *AuthController) Discover(c *fiber.Ctx) error {
	var req discoverRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperrors.E(apperrors.KindInvalid, "invalid email format")
	}

	res, err := ac.Discovery.Discover(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	if res.Single != nil {
		return c.JSON(fiber.Map{
			"redirect_url": ac.redirectURL(res.Single.Subdomain),
			"tenant":       res.Single,
		})
	}
	return c.JSON(fiber.Map{"tenants": res.Tenants})
}

// Login verifies credentials and either binds the single tenant directly or
// returns a temp single-use token plus the tenant list for selection.
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := ac.Discovery.LoginAndDiscover(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	if res.Temporary {
		return c.JSON(fiber.Map{
			"token":              res.Token,
			"requires_selection": true,
			"tenants":            res.Tenants,
		})
	}
	return c.JSON(fiber.Map{
		"token":        res.Token,
		"redirect_url": ac.redirectURL(res.Single.Subdomain),
		"tenant":       res.Single,
	})
}

// SelectTenant exchanges the temp token from the Authorization header for a
// full token bound to the chosen tenant. Each temp token redeems once.
func (ac *AuthController) SelectTenant(c *fiber.Ctx) error {
	var req selectTenantRequest
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	raw := bearerToken(c)
	if raw == "" {
		return apperrors.E(apperrors.KindAuthFailed, "missing selection token")
	}

	token, selected, err := ac.Discovery.Exchange(c.UserContext(), ac.Replay, raw, req.TenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token":        token,
		"redirect_url": ac.redirectURL(selected.Subdomain),
		"tenant":       selected,
	})
}

// Session reports the authenticated user's claims and the resolved tenant.
func (ac *AuthController) Session(c *fiber.Ctx) error {
	claims, _ := middlewares.ClaimsFromCtx(c)
	tctx, _ := middlewares.TenantFromCtx(c)
	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":    claims.Subject,
			"email": claims.Email,
			"role":  claims.Role,
		},
		"tenant": fiber.Map{
			"tenant_id":    tctx.TenantID,
			"subdomain":    tctx.Subdomain,
			"company_name": tctx.CompanyName,
			"is_demo":      tctx.IsDemo(),
		},
	})
}

// Logout clears the legacy cookie; Bearer clients just drop the token.
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return c.JSON(fiber.Map{"message": "success"})
}

func bearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
