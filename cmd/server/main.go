package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/accumanager/backend/internal/application/billing"
	"github.com/accumanager/backend/internal/infrastructure/config"
	"github.com/accumanager/backend/internal/infrastructure/event"
	"github.com/accumanager/backend/internal/infrastructure/logger"
	"github.com/accumanager/backend/internal/infrastructure/persistence"
	"github.com/accumanager/backend/internal/infrastructure/scheduler"
	"github.com/accumanager/backend/internal/interfaces/http/handler"
	"github.com/accumanager/backend/internal/interfaces/http/middleware"
	"github.com/accumanager/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			AccuManager Billing API
//	@version		1.0
//	@description	Multi-tenant invoicing and recurring billing backend

//	@contact.name	API Support
//	@contact.email	support@accumanager.example.com

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	TenantHeader
//	@in							header
//	@name						X-Tenant-ID
//	@description				Tenant identifier scoping every billing operation

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync(log) }()

	log.Info("Starting AccuManager billing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Connect to database with zap-backed gorm logging
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()
	db.DB.Logger = logger.NewGormLogger(log, gormLogLevel)
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	// Repositories
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	scheduleRepo := persistence.NewGormRecurringScheduleRepository(db.DB)
	usageRepo := persistence.NewGormUsageCounterRepository(db.DB)
	subscriptionRepo := persistence.NewGormSubscriptionRepository(db.DB)
	summaryRepo := persistence.NewGormSummaryRepository(db.DB)

	// Application services
	usageService := billingapp.NewUsageService(usageRepo, subscriptionRepo)
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, usageService)
	scheduleService := billingapp.NewScheduleService(scheduleRepo, invoiceRepo, usageService, log)
	scheduleService.SetTickBatchSize(cfg.Scheduler.BatchSize)
	summaryService := billingapp.NewSummaryService(summaryRepo)

	// Domain event bus for cross-context integration
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	eventBus.Subscribe(billingapp.NewBillingActivityLogger(log))
	invoiceService.SetEventPublisher(eventBus)
	scheduleService.SetEventPublisher(eventBus)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eventBus.Stop(stopCtx)
	}()

	// Recurring invoice scheduler
	recurringScheduler, err := scheduler.NewRecurringInvoiceScheduler(scheduleService, log, scheduler.RecurringInvoiceSchedulerConfig{
		Enabled:      cfg.Scheduler.Enabled,
		TickInterval: cfg.Scheduler.TickInterval,
		TickTimeout:  cfg.Scheduler.TickTimeout,
	})
	if err != nil {
		log.Fatal("Failed to create recurring invoice scheduler", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := recurringScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start recurring invoice scheduler", zap.Error(err))
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := recurringScheduler.Stop(stopCtx); err != nil {
				log.Error("Failed to stop recurring invoice scheduler", zap.Error(err))
			}
		}()
		log.Info("Recurring invoice scheduler started",
			zap.Duration("tick_interval", cfg.Scheduler.TickInterval),
			zap.Duration("tick_timeout", cfg.Scheduler.TickTimeout),
		)
	} else {
		log.Info("Recurring invoice scheduler disabled, manual tick endpoint only")
	}

	// HTTP handlers
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	scheduleHandler := handler.NewRecurringScheduleHandler(scheduleService)
	usageHandler := handler.NewUsageHandler(usageService)
	summaryHandler := handler.NewSummaryHandler(summaryService)
	schedulerHandler := handler.NewSchedulerHandler(recurringScheduler)
	systemHandler := handler.NewSystemHandler()

	// Gin engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
	}

	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		SkipPaths: []string{"/health", "/api/v1/system"},
		Required:  true,
		Logger:    log,
	}))

	billingGroup := router.NewDomainGroup("billing", "/billing")
	billingGroup.POST("/invoices", invoiceHandler.Create)
	billingGroup.GET("/invoices", invoiceHandler.List)
	billingGroup.GET("/invoices/:id", invoiceHandler.GetByID)
	billingGroup.GET("/invoices/number/:number", invoiceHandler.GetByNumber)
	billingGroup.POST("/invoices/:id/confirm", invoiceHandler.Confirm)
	billingGroup.POST("/invoices/:id/cancel", invoiceHandler.Cancel)
	billingGroup.POST("/invoices/:id/payments", invoiceHandler.RecordPayment)
	billingGroup.POST("/recurring-schedules", scheduleHandler.Create)
	billingGroup.GET("/recurring-schedules", scheduleHandler.List)
	billingGroup.GET("/recurring-schedules/:id", scheduleHandler.GetByID)
	billingGroup.POST("/recurring-schedules/:id/pause", scheduleHandler.Pause)
	billingGroup.POST("/recurring-schedules/:id/resume", scheduleHandler.Resume)
	billingGroup.POST("/recurring-schedules/:id/cancel", scheduleHandler.Cancel)
	billingGroup.GET("/usage", usageHandler.GetUsage)
	billingGroup.GET("/usage/:kind", usageHandler.GetUsageByKind)
	billingGroup.POST("/usage/release", usageHandler.Release)
	billingGroup.GET("/summary", summaryHandler.GetSummary)
	billingGroup.GET("/summary/:year/:month", summaryHandler.GetMonthSummary)
	billingGroup.POST("/scheduler/tick", schedulerHandler.TriggerTick)
	billingGroup.GET("/scheduler/status", schedulerHandler.Status)

	systemGroup := router.NewDomainGroup("system", "/system")
	systemGroup.GET("/info", systemHandler.GetSystemInfo)

	r.Register(billingGroup)
	r.Register(systemGroup)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// healthHandler reports process and database health for load balancer probes
func healthHandler(db *persistence.Database, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
