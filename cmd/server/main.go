// Command server is the optimizer's composition root: it wires the Lead
// Ingestion Pipeline, Analytics Engine, Outbound Sequence Scheduler,
// Optimization Loop, Error Monitor, and Control Plane around one shared
// Store, observer bus, and circuit breaker registry, then serves the
// webhook and Control Plane HTTP surface until signalled to stop.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadctl/optimizer/internal/application/analytics"
	"github.com/leadctl/optimizer/internal/application/controlplane"
	"github.com/leadctl/optimizer/internal/application/errormonitor"
	"github.com/leadctl/optimizer/internal/application/ingestion"
	"github.com/leadctl/optimizer/internal/application/ingestion/poller"
	"github.com/leadctl/optimizer/internal/application/observer"
	"github.com/leadctl/optimizer/internal/application/optimizer"
	"github.com/leadctl/optimizer/internal/application/sequencer"
	"github.com/leadctl/optimizer/internal/config"
	"github.com/leadctl/optimizer/internal/infrastructure/api/rest"
	"github.com/leadctl/optimizer/internal/infrastructure/cache"
	"github.com/leadctl/optimizer/internal/infrastructure/logger"
	"github.com/leadctl/optimizer/internal/infrastructure/storage"
	ws "github.com/leadctl/optimizer/internal/infrastructure/websocket"
	"github.com/leadctl/optimizer/internal/platform/breaker"
	"github.com/leadctl/optimizer/internal/platform/clock"
	"github.com/leadctl/optimizer/pkg/models"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	logger.SetDefault(appLogger)

	appLogger.Info("starting optimizer", "port", cfg.Server.Port)

	ctx := context.Background()
	db, err := storage.Connect(ctx, cfg.Database)
	if err != nil {
		appLogger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	appLogger.Info("database connected", "max_conns", cfg.Database.MaxConnections)

	store := storage.New(db)

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		appLogger.Warn("redis cache unavailable, proceeding without it", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
		appLogger.Info("redis cache connected")
	}

	observerManager := observer.NewObserverManager(
		observer.WithLogger(appLogger),
		observer.WithBufferSize(cfg.Observer.BufferSize),
	)

	breakerRegistry := breaker.NewRegistry(
		breaker.DefaultSettings(),
		breaker.WithOnStateChange(func(resource string, from, to models.BreakerState) {
			eventType := observer.EventTypeBreakerClosed
			if to == models.BreakerOpen {
				eventType = observer.EventTypeBreakerOpened
			}
			observerManager.Notify(context.Background(), observer.Event{
				Type:      eventType,
				Timestamp: time.Now(),
				Resource:  &resource,
				Status:    string(to),
			})
		}),
	)

	// Error Monitor: alert channels are wired from whichever config fields
	// are non-empty, so a deployment can run with just stderr logging.
	alertChannels := []errormonitor.AlertChannel{errormonitor.NewLogChannel(appLogger)}
	if cfg.Alerts.SlackWebhookURL != "" {
		alertChannels = append(alertChannels, errormonitor.NewSlackChannel(cfg.Alerts.SlackWebhookURL))
	}
	if cfg.Alerts.WebhookURL != "" {
		alertChannels = append(alertChannels, errormonitor.NewWebhookChannel(cfg.Alerts.WebhookURL))
	}
	if cfg.Alerts.SMTPHost != "" && len(cfg.Alerts.SMTPTo) > 0 {
		alertChannels = append(alertChannels, errormonitor.NewEmailChannel(
			cfg.Alerts.SMTPHost, cfg.Alerts.SMTPPort, cfg.Alerts.SMTPFrom, cfg.Alerts.SMTPTo, nil,
		))
	}

	errorMonitor := errormonitor.New(cfg.Alerts, breakerRegistry, appLogger, nil, alertChannels...)
	if err := observerManager.Register(errorMonitor); err != nil {
		appLogger.Error("failed to register error monitor observer", "error", err)
	}

	if cfg.Observer.EnableLogger {
		if err := observerManager.Register(observer.NewLoggerObserver(observer.WithLoggerInstance(appLogger))); err != nil {
			appLogger.Error("failed to register logger observer", "error", err)
		}
	}

	if cfg.Observer.EnableDatabase {
		if err := observerManager.Register(observer.NewDatabaseObserver(store)); err != nil {
			appLogger.Error("failed to register database observer", "error", err)
		}
	}

	// Lead Ingestion Pipeline (§4.4): fed by the webhook boundary and, when
	// credentials are configured, by the Gmail/Meta pollers.
	pipeline := ingestion.New(store, observerManager, appLogger)

	var leadPoller *poller.Poller
	var sources []poller.Source
	// Gmail/Meta SourceFetcher implementations are external collaborators
	// out of scope for this core (spec §1, §6) — sources stay empty until
	// a deployment supplies its own fetcher; the poller itself still runs
	// so adding a source later needs no further wiring.
	if cfg.Polling.Enabled && redisCache != nil {
		leadPoller = poller.New(poller.Config{
			Pipeline: pipeline,
			Cache:    redisCache,
			Breakers: breakerRegistry,
			Logger:   appLogger,
			Interval: time.Duration(cfg.Polling.IntervalMinutes) * time.Minute,
			Sources:  sources,
		})
		if err := leadPoller.Start(ctx); err != nil {
			appLogger.Error("failed to start ingestion poller", "error", err)
		} else {
			appLogger.Info("ingestion poller started", "interval_minutes", cfg.Polling.IntervalMinutes)
		}
	}

	// Analytics Engine (§4.5): ScriptAnalyzer is an external collaborator,
	// left nil until a deployment wires one (AnalyzeScriptPerformance then
	// simply returns no script telemetry rather than failing).
	analyticsEngine := analytics.New(store, nil, clock.Real{})

	// Outbound Sequence Scheduler (§4.6): MessageSender is likewise an
	// external collaborator; with a nil sender Fire returns an error (which
	// the TickPoller logs) and leaves the sequence unchanged rather than
	// panicking, so standing up the poller before one is configured is safe.
	scheduler := sequencer.New(sequencer.Config{
		Store:    store,
		Sender:   nil,
		Breakers: breakerRegistry,
		Logger:   appLogger,
	})
	sequencePoller := sequencer.NewTickPoller(sequencer.TickPollerConfig{
		Scheduler: scheduler,
		Store:     store,
		Logger:    appLogger,
		Interval:  time.Duration(cfg.Sequencer.TickIntervalSeconds) * time.Second,
		BatchSize: cfg.Sequencer.BatchSize,
	})
	if err := sequencePoller.Start(ctx); err != nil {
		appLogger.Error("failed to start sequence poller", "error", err)
	} else {
		appLogger.Info("sequence poller started", "tick_interval_seconds", cfg.Sequencer.TickIntervalSeconds)
	}

	// Control Plane (§4.9), built before the Optimization Loop so the Loop
	// can consult it as an OverrideChecker.
	plane := controlplane.New(controlplane.Config{
		Store:     store,
		Analytics: analyticsEngine,
		Monitor:   errorMonitor,
		Observers: observerManager,
		Logger:    appLogger,
	})

	// Optimization Loop (§4.7): Routing/Scripts/Timing are external
	// collaborators, left nil until a deployment wires them (mutate then
	// treats the recommendation type as a no-op rather than failing).
	loop := optimizer.New(optimizer.Config{
		Store:              store,
		Analytics:          analyticsEngine,
		Logger:             appLogger,
		Overrides:          plane,
		CycleInterval:      time.Duration(cfg.Optimization.CycleHours) * time.Hour,
		MinImprovementPct:  cfg.Optimization.MinImprovementPct,
		TestingDaysDefault: cfg.Optimization.TestingDaysDefault,
	})

	loopCtx, cancelLoop := context.WithCancel(ctx)
	go loop.Run(loopCtx)
	appLogger.Info("optimization loop started", "cycle_hours", cfg.Optimization.CycleHours)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	go errorMonitor.Run(monitorCtx, time.Hour)

	// Dashboard websocket hub and its observer bridge.
	hub := ws.NewHub(appLogger)
	if cfg.Observer.EnableWebSocket {
		if err := observerManager.Register(controlplane.NewWebSocketObserver(hub, appLogger)); err != nil {
			appLogger.Error("failed to register dashboard websocket observer", "error", err)
		}
	}

	appLogger.Info("observer system initialized", "observer_count", observerManager.Count())

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(rest.NewRecoveryMiddleware(appLogger).Recovery())
	router.Use(rest.NewLoggingMiddleware(appLogger).RequestLogger())

	if cfg.Server.CORS {
		router.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			c.Writer.Header().Set("Access-Control-Max-Age", "86400")
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
	}

	router.GET("/health", func(c *gin.Context) {
		healthCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(healthCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": fmt.Sprintf("database: %s", err.Error())})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "system_status": errorMonitor.SystemStatus(time.Now())})
	})
	router.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ready"}) })

	router.GET("/metrics", func(c *gin.Context) {
		dbStats := db.Stats()
		m := gin.H{
			"database": gin.H{
				"open_connections": dbStats.OpenConnections,
				"in_use":           dbStats.InUse,
				"idle":             dbStats.Idle,
				"max_open_conns":   dbStats.MaxOpenConnections,
			},
			"websocket_clients": hub.ClientCount(),
			"breakers":          breakerRegistry.Snapshot(),
		}
		c.JSON(http.StatusOK, gin.H{"metrics": m})
	})

	wsHandlers := rest.NewWebSocketHandlers(hub, appLogger)
	router.GET("/ws/dashboard", wsHandlers.HandleDashboard)

	webhookHandlers := rest.NewWebhookHandlers(pipeline, cfg.Sources.MetaAppSecret, cfg.Sources.MetaVerifyToken, appLogger)
	webhook := router.Group("/webhook")
	{
		webhook.POST("/website", webhookHandlers.HandleWebsite)
		webhook.POST("/zapier", webhookHandlers.HandleZapier)
		webhook.POST("/integromat", webhookHandlers.HandleIntegromat)
		webhook.GET("/meta", webhookHandlers.HandleMetaVerify)
		webhook.POST("/meta", webhookHandlers.HandleMeta)
		webhook.POST("/:source", webhookHandlers.HandleGeneric)
	}

	controlPlaneHandlers := rest.NewControlPlaneHandlers(plane)
	cp := router.Group("/control-plane")
	{
		cp.GET("/dashboard", controlPlaneHandlers.HandleDashboard)
		cp.GET("/agents", controlPlaneHandlers.HandleListAgents)
		cp.POST("/agents", controlPlaneHandlers.HandleRegisterAgent)
		cp.POST("/directives", controlPlaneHandlers.HandleIssueDirective)
		cp.POST("/directives/:id/activate", controlPlaneHandlers.HandleActivateDirective)
		cp.POST("/directives/:id/complete", controlPlaneHandlers.HandleCompleteDirective)
		cp.POST("/directives/:id/cancel", controlPlaneHandlers.HandleCancelDirective)
		cp.GET("/overrides", controlPlaneHandlers.HandleListOverrides)
		cp.POST("/overrides", controlPlaneHandlers.HandleApplyOverride)
		cp.POST("/overrides/:id/revert", controlPlaneHandlers.HandleRevertOverride)
	}

	appLogger.Info("REST API routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		appLogger.Info("http server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		appLogger.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		appLogger.Info("shutdown initiated", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		cancelLoop()
		cancelMonitor()

		if leadPoller != nil {
			leadPoller.Stop()
		}
		sequencePoller.Stop()

		if err := server.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				appLogger.Error("server close failed", "error", err)
			}
		}

		appLogger.Info("server stopped")
	}
}
