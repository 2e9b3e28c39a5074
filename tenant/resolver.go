package tenant

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"mandanten-backend/apperrors"
	"mandanten-backend/metrics"
	"mandanten-backend/models"
	"mandanten-backend/secrets"
)

// ResolverConfig carries the knobs the resolver needs from configuration.
type ResolverConfig struct {
	InternalHostSuffix string
	DemoDatabaseURL    string
	DemoDatabaseKey    string
	// DevMode permits falling back to the demo context on unexpected
	// registry errors. In production those errors propagate; fail-closed.
	DevMode bool
	Timeout time.Duration
}

// Resolver turns an inbound Host header into a fully-resolved tenant
// context: subdomain extraction, registry lookup, credential decryption.
// Resolution is idempotent and side-effect-free apart from metrics.
type Resolver struct {
	registry Registry
	cipher   *secrets.Cipher
	cfg      ResolverConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewResolver(registry Registry, cipher *secrets.Cipher, cfg ResolverConfig, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Resolver{registry: registry, cipher: cipher, cfg: cfg, logger: logger, metrics: m}
}

// Resolve maps a hostname to a tenant context. The demo sentinel and
// unresolvable hosts yield the constant demo context without registry I/O.
// Unknown subdomains fail NotFound, deactivated tenants fail Suspended.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Context, error) {
	sub, ok := ResolveSubdomain(host, r.cfg.InternalHostSuffix)
	if !ok || sub == DemoTenantID {
		if r.metrics != nil {
			r.metrics.TenantResolutions.WithLabelValues("demo").Inc()
		}
		return r.demo(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	rec, err := r.registry.GetBySubdomain(ctx, sub)
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindNotFound:
			if r.metrics != nil {
				r.metrics.TenantResolutions.WithLabelValues("not_found").Inc()
			}
			return nil, err
		default:
			return r.fallbackOrFail(sub, err)
		}
	}
	if !rec.IsActive {
		if r.metrics != nil {
			r.metrics.TenantResolutions.WithLabelValues("suspended").Inc()
		}
		return nil, apperrors.E(apperrors.KindSuspended, "tenant is suspended")
	}

	tctx, err := r.assemble(rec)
	if err != nil {
		// Decryption failure is an infrastructure/key problem, never a
		// reason to hand out the demo database in production.
		return r.fallbackOrFail(sub, err)
	}
	if r.metrics != nil {
		r.metrics.TenantResolutions.WithLabelValues("ok").Inc()
	}
	return tctx, nil
}

func (r *Resolver) assemble(rec *models.TenantRecord) (*Context, error) {
	dbURL, err := r.cipher.Decrypt(rec.EncryptedDatabaseURL)
	if err != nil {
		return nil, err
	}
	plain, err := r.cipher.Decrypt(rec.EncryptedCredentials)
	if err != nil {
		return nil, err
	}
	var creds models.TenantCredentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, apperrors.Wrap(apperrors.KindDecryption, "credentials blob is not valid JSON", err)
	}

	return &Context{
		TenantID:    rec.Id,
		Subdomain:   rec.Subdomain,
		CompanyName: rec.CompanyName,
		DatabaseURL: dbURL,
		DatabaseKey: creds.ServiceKey,
		IsActive:    rec.IsActive,
	}, nil
}

func (r *Resolver) fallbackOrFail(sub string, err error) (*Context, error) {
	if r.cfg.DevMode {
		r.logger.Warn("tenant resolution failed, falling back to demo (dev mode)",
			"subdomain", sub, "error", err)
		if r.metrics != nil {
			r.metrics.TenantResolutions.WithLabelValues("demo_fallback").Inc()
		}
		return r.demo(), nil
	}
	r.logger.Error("tenant resolution failed", "subdomain", sub, "error", err)
	if r.metrics != nil {
		r.metrics.TenantResolutions.WithLabelValues("error").Inc()
	}
	if apperrors.KindOf(err) == apperrors.KindUnknown {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "tenant resolution failed", err)
	}
	return nil, err
}

func (r *Resolver) demo() *Context {
	return DemoContext(r.cfg.DemoDatabaseURL, r.cfg.DemoDatabaseKey)
}
