package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"storefront/internal/caching"
	"storefront/internal/common"
	"storefront/internal/config"
	"storefront/internal/handlers"
	"storefront/internal/jobs/background"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		appLog.Fatal("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := database.Migrate(ctx, pool); err != nil {
			appLog.Fatal("failed to run migrations", "error", err)
		}
	}

	// Cache
	redisClient := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cacheService := caching.NewRedisCacheService(redisClient)
	defer cacheService.Close()
	if err := cacheService.Ping(ctx); err != nil {
		// the tree is rebuilt from Postgres on every read until Redis is back
		appLog.Warn("redis unavailable, category tree will not be cached", "addr", cfg.RedisAddr, "error", err)
	}

	// Repositories
	categoryRepo := repositories.NewCategoryRepo(pool)
	productRepo := repositories.NewProductRepo(pool)

	// Services
	propagator := services.NewPropagator(categoryRepo, cfg.CascadeConcurrency, appLog.With("component", "propagator"))
	synchronizer := services.NewCategorySynchronizer(categoryRepo, productRepo, cfg.CascadeConcurrency, appLog.With("component", "synchronizer"))
	treeService := services.NewCategoryTreeService(categoryRepo, cacheService, cfg.TreeCacheTTL, appLog.With("component", "category_tree"))
	categoryService := services.NewCategoryService(categoryRepo, productRepo, propagator, synchronizer, treeService, cfg.CascadeConcurrency, appLog.With("component", "categories"))
	productService := services.NewProductService(productRepo, categoryRepo, synchronizer, appLog.With("component", "products"))

	// Auth
	var auth handlers.RouteAuth
	if cfg.AuthEnabled() {
		jwks, err := middleware.NewJWKS(cfg.JWKSURL, appLog)
		if err != nil {
			appLog.Fatal("failed to load signing keys", "error", err)
		}
		defer jwks.EndBackground()

		authCfg := middleware.AuthConfig{KeyFunc: jwks.Keyfunc, Audience: cfg.JWTAudience, Issuer: cfg.JWTIssuer}
		auth = handlers.RouteAuth{
			Required: middleware.JWTAuth(authCfg),
			Optional: middleware.OptionalJWTAuth(authCfg),
		}
	} else {
		appLog.Warn("AUTH_JWKS_URL not set, every request is treated as a local administrator")
		dev := middleware.StaticPrincipal("local-dev", []string{
			common.PermissionReadCategories,
			common.PermissionCreateCategories,
			common.PermissionUpdateCategories,
			common.PermissionDeleteCategories,
			common.PermissionCreateProducts,
			common.PermissionUpdateProducts,
			common.PermissionDeleteProducts,
			common.PermissionReadInventory,
		})
		auth = handlers.RouteAuth{Required: dev, Optional: dev}
	}

	// Background jobs
	scheduler, err := background.NewJobScheduler(treeService, categoryService, cacheService, background.Intervals{
		TreeWarm:  cfg.TreeWarmInterval,
		TreeAudit: cfg.TreeAuditInterval,
	}, appLog)
	if err != nil {
		appLog.Fatal("failed to create job scheduler", "error", err)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			appLog.Error("failed to stop job scheduler", "error", err)
		}
	}()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewRequestValidator()

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())
	e.Use(middleware.RequestLogger(appLog))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	handlers.RegisterHealthRoutes(e, handlers.NewHealthHandlers(pool, cacheService, version))

	audit := middleware.NewAuditMiddleware(appLog)
	v1 := versionMiddleware.VersionRoute(e, "v1")
	v1.Use(audit.AuditMutations())
	handlers.RegisterCategoryRoutes(v1, handlers.NewCategoryHandlers(categoryService, appLog), auth)
	handlers.RegisterProductRoutes(v1, handlers.NewProductHandlers(productService, appLog), auth)
	handlers.RegisterJobRoutes(v1, handlers.NewJobHandlers(scheduler), auth)

	go func() {
		appLog.Info("starting server", "addr", cfg.Addr(), "env", cfg.Env, "version", version)
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", "error", err)
	}
}
