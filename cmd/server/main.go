package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parcelforge/api/internal/arcgis"
	"github.com/parcelforge/api/internal/cache"
	"github.com/parcelforge/api/internal/config"
	"github.com/parcelforge/api/internal/database"
	"github.com/parcelforge/api/internal/enrich"
	"github.com/parcelforge/api/internal/geocode"
	"github.com/parcelforge/api/internal/handlers"
	"github.com/parcelforge/api/internal/ingest"
	"github.com/parcelforge/api/internal/logger"
	"github.com/parcelforge/api/internal/middleware"
	"github.com/parcelforge/api/internal/observability"
	"github.com/parcelforge/api/internal/registry"
	"github.com/parcelforge/api/internal/repository"
	"github.com/parcelforge/api/internal/resolver"
	"github.com/parcelforge/api/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting ParcelForge API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	// Create database connection pool
	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Optional Redis-backed resolver cache; an empty REDIS_ADDR disables it.
	redisClient := cache.Open(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("Resolver cache enabled", map[string]interface{}{
			"addr": cfg.Redis.Addr,
			"ttl":  cfg.Redis.TTL.String(),
		})
	}
	resolveCache := cache.New(redisClient, cfg.Redis.TTL)

	// Prometheus metrics
	metrics := observability.NewMetrics()

	// Upstream clients
	gisClient := arcgis.NewClient(cfg.GIS.TaxlotsURL, cfg.GIS.QueryTimeout, log, metrics)
	parcelResolver := resolver.New(gisClient, resolveCache, log, metrics)
	geocoder := geocode.New(cfg.Geocoder.URL, cfg.Geocoder.Timeout, log, metrics)
	demographics := enrich.New(cfg.Demo.URL, cfg.Demo.Timeout, log, metrics)

	// Data-source registry
	sourceStore, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		log.Fatal("Failed to open data source registry", err, map[string]interface{}{
			"path": cfg.Registry.Path,
		})
	}

	// Ingestion pipeline
	loader := ingest.NewLoader(db, cfg.Ingest.BatchSize, log, metrics)
	pipeline, err := ingest.NewPipeline(cfg.Ingest, loader, log, metrics)
	if err != nil {
		log.Fatal("Failed to build ingestion pipeline", err, nil)
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check and metrics routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Initialize repository and service layers
	parcelRepo := repository.NewParcelRepository(db)
	parcelService := services.NewParcelService(parcelRepo, enrich.StaticNarrative{}, log)
	reportService := services.NewReportService(parcelResolver, demographics, log)

	// Initialize handlers
	parcelHandler := handlers.NewParcelHandler(parcelService)
	resolveHandler := handlers.NewResolveHandler(parcelResolver, geocoder)
	reportHandler := handlers.NewReportHandler(reportService)
	dataSourceHandler := handlers.NewDataSourceHandler(sourceStore)
	ingestHandler := handlers.NewIngestHandler(pipeline, log)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		parcels := v1.Group("/parcels")
		{
			parcels.GET("/at-point", parcelHandler.AtPoint)
			parcels.POST("/analyze", parcelHandler.Analyze)
			parcels.GET("/resolve", resolveHandler.Resolve)
			parcels.GET("/:id/report", reportHandler.Report)
			parcels.GET("/:id/links", reportHandler.Links)
		}

		v1.GET("/geocode", resolveHandler.Geocode)

		sources := v1.Group("/datasources")
		{
			sources.GET("", dataSourceHandler.List)
			sources.POST("", dataSourceHandler.Create)
			sources.GET("/:id", dataSourceHandler.Get)
			sources.PUT("/:id", dataSourceHandler.Update)
			sources.DELETE("/:id", dataSourceHandler.Delete)
		}

		v1.POST("/ingest", ingestHandler.Trigger)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
