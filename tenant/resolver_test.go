package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mandanten-backend/apperrors"
	"mandanten-backend/models"
	"mandanten-backend/secrets"
)

type fakeRegistry struct {
	bySubdomain map[string]*models.TenantRecord
	err         error
}

func (f *fakeRegistry) Create(context.Context, *NewTenant) (*models.TenantRecord, error) {
	panic("not used")
}

func (f *fakeRegistry) GetBySubdomain(_ context.Context, sub string) (*models.TenantRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if rec, ok := f.bySubdomain[sub]; ok {
		return rec, nil
	}
	return nil, apperrors.E(apperrors.KindNotFound, "tenant not found")
}

func (f *fakeRegistry) GetByID(context.Context, string) (*models.TenantRecord, error) {
	panic("not used")
}

func (f *fakeRegistry) Update(context.Context, string, *TenantPatch) (*models.TenantRecord, error) {
	panic("not used")
}

func (f *fakeRegistry) Suspend(context.Context, string) error    { panic("not used") }
func (f *fakeRegistry) Reactivate(context.Context, string) error { panic("not used") }

func encryptedRecord(t *testing.T, c *secrets.Cipher, id, sub string, active bool) *models.TenantRecord {
	t.Helper()
	encURL, err := c.Encrypt("postgres://" + sub + ".db.internal/app")
	require.NoError(t, err)
	blob, err := json.Marshal(models.TenantCredentials{AnonKey: "anon-" + sub, ServiceKey: "service-" + sub})
	require.NoError(t, err)
	encCreds, err := c.Encrypt(string(blob))
	require.NoError(t, err)
	return &models.TenantRecord{
		Id:                   id,
		Subdomain:            sub,
		CompanyName:          sub + " GmbH",
		EncryptedDatabaseURL: encURL,
		EncryptedCredentials: encCreds,
		IsActive:             active,
	}
}

func newResolverFixture(t *testing.T, reg Registry, devMode bool) *Resolver {
	t.Helper()
	cipher, err := secrets.NewCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewResolver(reg, cipher, ResolverConfig{
		InternalHostSuffix: ".internal.mandanten.app",
		DemoDatabaseURL:    "postgres://localhost/demo",
		DemoDatabaseKey:    "demo-key",
		DevMode:            devMode,
		Timeout:            time.Second,
	}, logger, nil)
}

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	c, err := secrets.NewCipher(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return c
}

func TestResolverDemoPaths(t *testing.T) {
	// A registry that fails loudly proves the demo path does no I/O.
	reg := &fakeRegistry{err: apperrors.E(apperrors.KindUnavailable, "registry down")}
	r := newResolverFixture(t, reg, false)
	ctx := context.Background()

	for _, host := range []string{"localhost:3000", "127.0.0.1", "preview.internal.mandanten.app", "mandanten.app", "demo.mandanten.app"} {
		t.Run(host, func(t *testing.T) {
			tctx, err := r.Resolve(ctx, host)
			require.NoError(t, err)
			assert.True(t, tctx.IsDemo())
			assert.Equal(t, "postgres://localhost/demo", tctx.DatabaseURL)
			assert.Equal(t, "demo-key", tctx.DatabaseKey)
		})
	}
}

func TestResolverTenantLookup(t *testing.T) {
	cipher := testCipher(t)
	reg := &fakeRegistry{bySubdomain: map[string]*models.TenantRecord{
		"acme": encryptedRecord(t, cipher, "t-acme", "acme", true),
		"beta": encryptedRecord(t, cipher, "t-beta", "beta", false),
	}}
	r := newResolverFixture(t, reg, false)
	ctx := context.Background()

	t.Run("active tenant resolves with decrypted credentials", func(t *testing.T) {
		tctx, err := r.Resolve(ctx, "acme.mandanten.app")
		require.NoError(t, err)
		assert.Equal(t, "t-acme", tctx.TenantID)
		assert.Equal(t, "acme", tctx.Subdomain)
		assert.Equal(t, "postgres://acme.db.internal/app", tctx.DatabaseURL)
		assert.Equal(t, "service-acme", tctx.DatabaseKey, "context carries the service key, not the anon key")
		assert.False(t, tctx.IsDemo())
	})

	t.Run("unknown subdomain is NotFound", func(t *testing.T) {
		_, err := r.Resolve(ctx, "unknown.mandanten.app")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("suspended tenant is Suspended, not NotFound", func(t *testing.T) {
		_, err := r.Resolve(ctx, "beta.mandanten.app")
		assert.Equal(t, apperrors.KindSuspended, apperrors.KindOf(err))
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		a, err := r.Resolve(ctx, "acme.mandanten.app")
		require.NoError(t, err)
		b, err := r.Resolve(ctx, "acme.mandanten.app")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestResolverRegistryFailure(t *testing.T) {
	ctx := context.Background()
	down := &fakeRegistry{
		bySubdomain: map[string]*models.TenantRecord{},
		err:         apperrors.E(apperrors.KindUnavailable, "registry down"),
	}

	t.Run("production propagates ServiceUnavailable", func(t *testing.T) {
		r := newResolverFixture(t, down, false)
		_, err := r.Resolve(ctx, "acme.mandanten.app")
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
	})

	t.Run("dev mode falls back to demo", func(t *testing.T) {
		r := newResolverFixture(t, down, true)
		tctx, err := r.Resolve(ctx, "acme.mandanten.app")
		require.NoError(t, err)
		assert.True(t, tctx.IsDemo())
	})
}

func TestResolverDecryptionFailure(t *testing.T) {
	// Record sealed under a different key than the resolver's.
	foreign, err := secrets.NewCipher(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	reg := &fakeRegistry{bySubdomain: map[string]*models.TenantRecord{
		"acme": encryptedRecord(t, foreign, "t-acme", "acme", true),
	}}

	t.Run("production fails closed", func(t *testing.T) {
		r := newResolverFixture(t, reg, false)
		_, err := r.Resolve(context.Background(), "acme.mandanten.app")
		assert.Equal(t, apperrors.KindDecryption, apperrors.KindOf(err))
	})

	t.Run("dev mode falls back to demo", func(t *testing.T) {
		r := newResolverFixture(t, reg, true)
		tctx, err := r.Resolve(context.Background(), "acme.mandanten.app")
		require.NoError(t, err)
		assert.True(t, tctx.IsDemo())
	})
}
