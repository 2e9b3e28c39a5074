package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"mandanten-backend/auth"
	"mandanten-backend/config"
	"mandanten-backend/controllers"
	"mandanten-backend/database"
	"mandanten-backend/metrics"
	"mandanten-backend/middlewares"
	"mandanten-backend/routes"
	"mandanten-backend/secrets"
	"mandanten-backend/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	m := metrics.New()

	// ---- Master catalog
	db, err := database.Connect(cfg.MasterDSN())
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Error("master migration failed", "error", err)
		os.Exit(1)
	}

	// ---- Tenant core
	cipher, err := secrets.NewCipher(cfg.CredentialKeyBytes())
	if err != nil {
		logger.Error("cipher init failed", "error", err)
		os.Exit(1)
	}
	registry := tenant.NewRegistry(db, cipher)
	resolver := tenant.NewResolver(registry, cipher, tenant.ResolverConfig{
		InternalHostSuffix: cfg.InternalHostSuffix,
		DemoDatabaseURL:    cfg.DemoDatabaseURL,
		DemoDatabaseKey:    cfg.DemoDatabaseKey,
		DevMode:            cfg.IsDevelopment(),
		Timeout:            cfg.ResolveTimeout,
	}, logger, m)

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, cfg.TempTokenTTL)
	if err != nil {
		logger.Error("token service init failed", "error", err)
		os.Exit(1)
	}

	// The replay guard must live in a shared store to be correct across
	// instances; the in-memory guard is a dev-only stand-in.
	var replay auth.ReplayGuard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		replay = auth.NewRedisReplayGuard(rdb)
	} else {
		if !cfg.IsDevelopment() {
			logger.Error("REDIS_ADDR is required outside development")
			os.Exit(1)
		}
		logger.Warn("using in-memory replay guard; single instance only")
		replay = auth.NewMemoryReplayGuard()
	}

	pools := database.NewPoolManager(database.OpenGorm, database.PoolManagerConfig{
		CacheTTL:       cfg.PoolCacheTTL,
		MaxConns:       cfg.PoolMaxConns,
		ConnectTimeout: cfg.PoolConnectTimeout,
	}, logger, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go pools.RunSweeper(ctx, cfg.PoolCacheTTL/2)

	discovery := auth.NewDiscoveryService(auth.NewDirectoryStore(db), tokens, logger)

	// ---- Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler(logger),
		BodyLimit:    cfg.BodyLimitBytes,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.GlobalRateLimitMax,
		Expiration: cfg.GlobalRateLimitWindow,
	}))
	app.Use(middlewares.RequestLogging(logger))

	alias := middlewares.LegacyAlias{Old: cfg.LegacyTenantID, New: cfg.LegacyCanonicalTenantID}
	routes.Register(app, routes.Deps{
		Auth: &controllers.AuthController{
			Discovery:      discovery,
			Replay:         replay,
			PlatformDomain: cfg.PlatformDomain,
		},
		Tenants: &controllers.TenantController{
			Registry:       registry,
			Pools:          pools,
			AcquireTimeout: cfg.PoolAcquireTimeout,
		},
		ResolveT:    middlewares.ResolveTenant(resolver),
		Authed:      middlewares.IsAuthenticated(tokens),
		TenantMatch: middlewares.RequireTenantMatch(alias, m),
		AuthLimiter: middlewares.NewRateLimiter(cfg.AuthRateLimitMax, cfg.AuthRateLimitWindow),
		Metrics:     m,
	})

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
		pools.CloseAll()
	}()

	logger.Info("starting API server", "port", cfg.Port, "env", cfg.Env)
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
