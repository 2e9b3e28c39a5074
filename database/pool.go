package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mandanten-backend/apperrors"
	"mandanten-backend/metrics"
	"mandanten-backend/tenant"
)

// Pool is one tenant's live database handle.
type Pool interface {
	DB() *gorm.DB
	Ping(ctx context.Context) error
	Close() error
}

// OpenFunc opens a bounded pool against a tenant database URL. Injected so
// tests can supply fakes and so the opener stays swappable.
type OpenFunc func(ctx context.Context, databaseURL string, maxConns int) (Pool, error)

// PoolManagerConfig bounds pool size, connection wait and staleness.
type PoolManagerConfig struct {
	// CacheTTL is the staleness window measured since last access. Once
	// exceeded the credentials are treated as possibly rotated and the pool
	// is rebuilt even if the old one is still healthy.
	CacheTTL time.Duration
	// MaxConns caps connections per tenant.
	MaxConns int
	// ConnectTimeout bounds pool creation. Waiting for a free connection
	// is bounded by the query context the caller passes to the pool.
	ConnectTimeout time.Duration
}

type poolEntry struct {
	pool         Pool
	createdAt    time.Time
	lastAccessed time.Time
}

// PoolManager owns at most one live connection pool per tenant, lazily
// created and recycled on staleness. The cache is process-local and
// explicitly single-instance; the isolation invariant does not depend on
// it, only resource usage does.
type PoolManager struct {
	mu      sync.Mutex
	pools   map[string]*poolEntry
	open    OpenFunc
	cfg     PoolManagerConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewPoolManager(open OpenFunc, cfg PoolManagerConfig, logger *slog.Logger, m *metrics.Metrics) *PoolManager {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Minute
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if open == nil {
		open = OpenGorm
	}
	return &PoolManager{
		pools:   make(map[string]*poolEntry),
		open:    open,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Acquire returns the live pool for the tenant, creating or recycling it as
// needed. The cache is only written after the underlying open succeeds, so
// a cancelled request cannot leave a half-registered pool behind.
func (pm *PoolManager) Acquire(ctx context.Context, tctx *tenant.Context) (Pool, error) {
	if tctx.DatabaseURL == "" {
		return nil, apperrors.E(apperrors.KindUnavailable, "tenant has no database URL")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := pm.now()
	if entry, ok := pm.pools[tctx.TenantID]; ok {
		if now.Sub(entry.lastAccessed) < pm.cfg.CacheTTL {
			entry.lastAccessed = now
			return entry.pool, nil
		}
		// Stale: credentials may have rotated. Close and rebuild.
		pm.logger.Info("recycling stale tenant pool", "tenant_id", tctx.TenantID,
			"idle", now.Sub(entry.lastAccessed).String())
		if err := entry.pool.Close(); err != nil {
			pm.logger.Warn("closing stale pool failed", "tenant_id", tctx.TenantID, "error", err)
		}
		delete(pm.pools, tctx.TenantID)
		if pm.metrics != nil {
			pm.metrics.PoolRecycles.Inc()
			pm.metrics.PoolsActive.Dec()
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, pm.cfg.ConnectTimeout)
	defer cancel()
	pool, err := pm.open(openCtx, tctx.DatabaseURL, pm.cfg.MaxConns)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "open tenant pool failed", err)
	}
	if err := pool.Ping(openCtx); err != nil {
		_ = pool.Close()
		return nil, apperrors.Wrap(apperrors.KindUnavailable, "tenant database unreachable", err)
	}

	pm.pools[tctx.TenantID] = &poolEntry{pool: pool, createdAt: now, lastAccessed: now}
	if pm.metrics != nil {
		pm.metrics.PoolCreations.Inc()
		pm.metrics.PoolsActive.Inc()
	}
	return pool, nil
}

// Invalidate drops a tenant's cached pool. Administrative flows call this
// after a credential change so the next Acquire rebuilds with fresh
// credentials.
func (pm *PoolManager) Invalidate(tenantID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if entry, ok := pm.pools[tenantID]; ok {
		_ = entry.pool.Close()
		delete(pm.pools, tenantID)
		if pm.metrics != nil {
			pm.metrics.PoolsActive.Dec()
		}
	}
}

// CloseAll closes every cached pool. Safe to call concurrently with
// Acquire; the cache never points at a closed pool afterwards.
func (pm *PoolManager) CloseAll() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for id, entry := range pm.pools {
		if err := entry.pool.Close(); err != nil {
			pm.logger.Warn("closing pool failed", "tenant_id", id, "error", err)
		}
		delete(pm.pools, id)
		if pm.metrics != nil {
			pm.metrics.PoolsActive.Dec()
		}
	}
}

// Sweep evicts pools idle past the staleness window. Bounds idle resource
// usage even for tenants that stopped sending requests.
func (pm *PoolManager) Sweep() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	now := pm.now()
	for id, entry := range pm.pools {
		if now.Sub(entry.lastAccessed) >= pm.cfg.CacheTTL {
			pm.logger.Info("evicting idle tenant pool", "tenant_id", id)
			_ = entry.pool.Close()
			delete(pm.pools, id)
			if pm.metrics != nil {
				pm.metrics.PoolEvictions.Inc()
				pm.metrics.PoolsActive.Dec()
			}
		}
	}
}

// RunSweeper sweeps periodically until ctx is cancelled.
func (pm *PoolManager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = pm.cfg.CacheTTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.Sweep()
		}
	}
}

// Size returns the number of live pools.
func (pm *PoolManager) Size() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.pools)
}

// gormPool adapts a *gorm.DB to the Pool interface.
type gormPool struct {
	db *gorm.DB
}

func (p *gormPool) DB() *gorm.DB { return p.db }

func (p *gormPool) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *gormPool) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// OpenGorm is the production OpenFunc: a bounded gorm/postgres pool against
// the tenant's own database.
func OpenGorm(ctx context.Context, databaseURL string, maxConns int) (Pool, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open tenant database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return &gormPool{db: db}, nil
}
