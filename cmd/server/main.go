package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/eo-nwanze/lavish-sub000/internal/bootstrap"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/cache"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/config"
	"github.com/eo-nwanze/lavish-sub000/internal/infrastructure/logger"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/handler"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/middleware"
	"github.com/eo-nwanze/lavish-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/eo-nwanze/lavish-sub000/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Subscription Sync Engine API
//	@version		1.0
//	@description	Push synchronizer, billing scheduler, webhook reconciler and sync audit log of a subscription commerce backend.

//	@host		localhost:8080
//	@BasePath	/

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Operator bearer token. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		panic("failed to start: " + err.Error())
	}
	log := app.Logger

	log.Info("Starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	engine := newEngine(app, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := app.Close(shutdownCtx); err != nil {
		log.Error("Shutdown finished with errors", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func newEngine(app *bootstrap.App, log *zap.Logger) *gin.Engine {
	cfg := app.Config

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID  2. Tracing  3. Recovery  4. Logger  5. Metrics
	// 6. Security   7. BodyLimit  8. Span enrichment
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(app.Telemetry.Meter))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.SpanEnricher(), middleware.SpanErrorMarker())
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}

	jwtConfig := middleware.DefaultJWTConfig(app.Tokens)
	jwtConfig.Logger = log
	jwt := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)
	// The docs guard runs the check itself, so it must not skip the /swagger prefix
	docsAuth := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		Validator:    app.Tokens,
		RequiredRole: jwtConfig.RequiredRole,
		Logger:       log,
	})

	checks := map[string]handler.Pinger{"database": app.Database}
	if redis, ok := app.Delivery.(*cache.RedisDeliveryStore); ok {
		checks["redis"] = handler.PingerFunc(redis.Ping)
	}
	systemHandler := handler.NewSystemHandler(version, checks)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/ready", systemHandler.Ready)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.HTTP.SwaggerEnabled,
			RequireAuth: cfg.App.IsProduction(),
		}, docsAuth),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Webhooks authenticate with the payload signature, not the operator token
	webhookHandler := handler.NewWebhookHandler(app.Verifier, app.Reconciler, cfg.HTTP.MaxBodySize)
	engine.POST("/webhooks/:topic", webhookHandler.Receive)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(jwt)

	syncHandler := handler.NewSyncHandler(app.Billing, app.Pusher, app.Scheduler)
	syncLogHandler := handler.NewSyncLogHandler(app.SyncLogs)
	syncRoutes := router.NewDomainGroup("sync", "/sync")
	syncRoutes.POST("/billing/run", syncHandler.RunBilling)
	syncRoutes.POST("/billing/retry", syncHandler.RetryBilling)
	syncRoutes.POST("/push", syncHandler.PushPendingEntities)
	syncRoutes.POST("/push/:kind/:id", syncHandler.PushEntity)
	syncRoutes.GET("/jobs", syncHandler.ListJobs)
	syncRoutes.GET("/entities/:kind/:id", syncLogHandler.ResolveEntity)
	logRoutes := syncRoutes.Group("logs", "/logs")
	logRoutes.GET("", syncLogHandler.List)
	logRoutes.GET("/:id", syncLogHandler.Get)
	logRoutes.GET("/:id/errors/:index/entity", syncLogHandler.ResolveError)

	subscriptionHandler := handler.NewSubscriptionHandler(app.Subscriptions)
	subscriptionRoutes := router.NewDomainGroup("subscriptions", "/subscriptions")
	subscriptionRoutes.POST("", subscriptionHandler.Create)
	subscriptionRoutes.GET("", subscriptionHandler.List)
	subscriptionRoutes.GET("/:id", subscriptionHandler.Get)
	subscriptionRoutes.PUT("/:id", subscriptionHandler.Update)
	subscriptionRoutes.POST("/:id/pause", subscriptionHandler.Pause)
	subscriptionRoutes.POST("/:id/resume", subscriptionHandler.Resume)
	subscriptionRoutes.POST("/:id/cancel", subscriptionHandler.Cancel)
	subscriptionRoutes.POST("/:id/reactivate", subscriptionHandler.Reactivate)

	planHandler := handler.NewSellingPlanHandler(app.Plans)
	planRoutes := router.NewDomainGroup("selling-plans", "/selling-plans")
	planRoutes.POST("", planHandler.Create)
	planRoutes.GET("", planHandler.List)
	planRoutes.GET("/:id", planHandler.Get)
	planRoutes.PUT("/:id", planHandler.Update)
	planRoutes.POST("/:id/deactivate", planHandler.Deactivate)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	groups := []*router.DomainGroup{syncRoutes, subscriptionRoutes, planRoutes, systemRoutes}
	for _, g := range groups {
		r.Register(g)
		log.Debug("Registered route group",
			zap.String("group", g.Name()),
			zap.Int("routes", len(g.Routes())),
		)
	}
	r.Setup()

	return engine
}
