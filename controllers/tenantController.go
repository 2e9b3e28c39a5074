package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"mandanten-backend/apperrors"
	"mandanten-backend/database"
	"mandanten-backend/middlewares"
	"mandanten-backend/tenant"
	"mandanten-backend/utils"
)

// TenantController is the administrative surface over the tenant catalog.
// Credential-changing operations invalidate the tenant's pool so the next
// request rebuilds it with the rotated credentials.
type TenantController struct {
	Registry       tenant.Registry
	Pools          *database.PoolManager
	AcquireTimeout time.Duration
}

// Create provisions a tenant record. The database itself is provisioned
// out-of-band; this only registers subdomain and encrypted credentials.
func (tc *TenantController) Create(c *fiber.Ctx) error {
	var req tenant.NewTenant
	if err := middlewares.BindAndValidate(c, &req); err != nil {
		return err
	}
	utils.NormalizeDTO(&req)

	rec, err := tc.Registry.Create(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (tc *TenantController) Get(c *fiber.Ctx) error {
	rec, err := tc.Registry.GetByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// Update applies a partial patch. Only provided fields change; a credential
// change additionally drops the cached pool.
func (tc *TenantController) Update(c *fiber.Ctx) error {
	var patch tenant.TenantPatch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	utils.NormalizePtrDTO(&patch)

	id := c.Params("id")
	rec, err := tc.Registry.Update(c.UserContext(), id, &patch)
	if err != nil {
		return err
	}
	if patch.RotatesCredentials() {
		tc.Pools.Invalidate(id)
	}
	return c.JSON(rec)
}

func (tc *TenantController) Suspend(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := tc.Registry.Suspend(c.UserContext(), id); err != nil {
		return err
	}
	// A suspended tenant must not keep serving through a warm pool.
	tc.Pools.Invalidate(id)
	return c.JSON(fiber.Map{"message": "tenant suspended"})
}

func (tc *TenantController) Reactivate(c *fiber.Ctx) error {
	if err := tc.Registry.Reactivate(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "tenant reactivated"})
}

// Health acquires the tenant's pool and runs a liveness query against it.
func (tc *TenantController) Health(c *fiber.Ctx) error {
	tctx, ok := middlewares.TenantFromCtx(c)
	if !ok {
		return apperrors.E(apperrors.KindAuthFailed, "missing tenant context")
	}

	ctx := c.UserContext()
	pool, err := tc.Pools.Acquire(ctx, tctx)
	if err != nil {
		return err
	}

	timeout := tc.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var one int
	if err := pool.DB().WithContext(qctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return apperrors.Wrap(apperrors.KindUnavailable, "tenant database unreachable", err)
	}
	return c.JSON(fiber.Map{"status": "ok", "tenant_id": tctx.TenantID})
}
