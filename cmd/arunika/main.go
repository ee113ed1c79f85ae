package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arunika-edu/arunika-edu/internal/app"
	"github.com/arunika-edu/arunika-edu/internal/audit"
	"github.com/arunika-edu/arunika-edu/internal/auth"
	"github.com/arunika-edu/arunika-edu/internal/entitlements"
	"github.com/arunika-edu/arunika-edu/internal/identity"
	"github.com/arunika-edu/arunika-edu/internal/observability"
	"github.com/arunika-edu/arunika-edu/internal/permissions"
	"github.com/arunika-edu/arunika-edu/internal/platform/cache"
	"github.com/arunika-edu/arunika-edu/internal/platform/db"
	"github.com/arunika-edu/arunika-edu/internal/schools"
	"github.com/arunika-edu/arunika-edu/internal/shared"
	"github.com/arunika-edu/arunika-edu/internal/tenancy"
	"github.com/arunika-edu/arunika-edu/internal/users"
	"github.com/arunika-edu/arunika-edu/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnMaxLife,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens, err := identity.NewTokenService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, cfg.JWTIssuer)
	if err != nil {
		logger.Error("init token service", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditRepo := audit.NewRepository(pool)

	tenancyRepo := tenancy.NewRepository(pool)
	guard := tenancy.NewGuard(tenancyRepo, auditRepo, logger)
	tenantBinding := tenancy.Middleware{Guard: guard, Metrics: metrics}

	entitlementsRepo := entitlements.NewRepository(pool)
	entitlementsService := entitlements.NewService(entitlementsRepo, entitlements.DefaultCatalog(), auditRepo, logger)
	ledger := entitlements.NewLedger(entitlementsRepo, auditRepo, metrics, logger)

	grantStore := permissions.NewStore(pool)
	grantCache := permissions.NewGrantCache(redisClient, cfg.GrantCacheTTL)
	resolver := permissions.NewResolver(tenancyRepo, grantStore, grantCache)
	permissionsService := permissions.NewService(grantStore, grantCache, tenancyRepo, auditRepo, logger)
	capacity := permissions.NewCapacityChecker(tenancyRepo, entitlementsService)
	permissionsMiddleware := permissions.Middleware{Resolver: resolver, Logger: logger, Metrics: metrics}

	membersService := tenancy.NewService(tenancyRepo, capacity, permissionsService, auditRepo)

	schoolsService := schools.NewService(schools.NewRepository(pool), auditRepo)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, auditRepo)
	authService := auth.NewService(usersRepo, tenancyRepo, tokens)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,
		Tokens: tokens,

		TenantBinding: tenantBinding,
		Permissions:   permissionsMiddleware,

		AuthHandler:         auth.NewHandler(logger, authService),
		SchoolsHandler:      schools.NewHandler(logger, schoolsService),
		UsersHandler:        users.NewHandler(logger, usersService),
		MembersHandler:      tenancy.NewHandler(logger, membersService),
		PermissionsHandler:  permissions.NewHandler(logger, permissionsService, capacity),
		EntitlementsHandler: entitlements.NewHandler(logger, entitlementsService, ledger, queueClient),
		WebhookHandler:      entitlements.NewWebhookHandler(logger, shared.NewIdempotencyStore(pool), queueClient),
		AuditHandler:        audit.NewHandler(logger, auditRepo),
		JobHandler:          jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
