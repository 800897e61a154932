package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/parthsharma2/linksight/internal/analytics"
	"github.com/parthsharma2/linksight/internal/clickstream"
	"github.com/parthsharma2/linksight/internal/config"
	"github.com/parthsharma2/linksight/internal/domain"
	"github.com/parthsharma2/linksight/internal/handler"
	"github.com/parthsharma2/linksight/internal/middleware"
	"github.com/parthsharma2/linksight/internal/pkg/keygen"
	"github.com/parthsharma2/linksight/internal/pkg/metrics"
	"github.com/parthsharma2/linksight/internal/quota"
	"github.com/parthsharma2/linksight/internal/repository"
	"github.com/parthsharma2/linksight/internal/repository/cache"
	"github.com/parthsharma2/linksight/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	logger := initLogger()
	defer logger.Sync()
	logger.Info("starting linksight service")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	db, err := repository.NewPostgresConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repository.Close(db, logger)
	if err := repository.RunMigrations(db, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	redisClient, err := cache.NewRedisClient(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer cache.Close(redisClient, logger)

	keyGen, err := keygen.NewSnowflakeGenerator(keygen.Config{
		MachineID: getMachineID(),
		MinLength: cfg.Link.CodeLength,
	})
	if err != nil {
		logger.Fatal("failed to initialize key generator", zap.Error(err))
	}

	linkRepo := repository.NewPostgresLinkRepository(db, m)
	clickRepo := repository.NewPostgresClickRepository(db, m)
	linkCache := repository.NewRedisLinkCache(redisClient, cfg.Link.CacheTTL, m)

	ledger := quota.NewRedisLedger(redisClient, logger)
	planSource := quota.NewStaticPlanSource(domain.Plan{
		Name:      cfg.Quota.DefaultPlanName,
		MaxLinks:  cfg.Quota.DefaultMaxLinks,
		MaxClicks: cfg.Quota.DefaultMaxClicks,
	})

	geo := newGeoResolver(cfg.Geo, logger)
	defer geo.Close()

	pipeline := clickstream.NewPipeline(clickRepo, linkRepo, ledger, planSource, geo, logger, m, clickstream.Config{
		QueueSize:      cfg.Pipeline.QueueSize,
		Workers:        cfg.Pipeline.Workers,
		MaxRetries:     cfg.Pipeline.MaxRetries,
		RetryBackoff:   cfg.Pipeline.RetryBackoff,
		EnrichTimeout:  cfg.Pipeline.EnrichTimeout,
		PersistTimeout: cfg.Pipeline.PersistTimeout,
	})
	pipeline.Start()
	defer pipeline.Close()

	linkService := service.NewLinkService(linkRepo, linkCache, ledger, planSource, keyGen, logger, m, service.LinkServiceConfig{
		BaseURL:       cfg.Server.BaseURL,
		MaxAllocTries: cfg.Link.MaxAllocTries,
		CacheTTL:      cfg.Link.CacheTTL,
	})
	resolver := service.NewResolver(linkRepo, linkCache, pipeline, logger, m, cfg.Link.CacheTTL, cfg.Link.ResolveTimeout)
	aggregator := analytics.NewAggregator(clickRepo, logger)

	linkHandler := handler.NewLinkHandler(linkService, resolver, aggregator, logger)
	analyticsHandler := handler.NewAnalyticsHandler(aggregator, linkHandler, logger)
	router := setupRouter(cfg, linkHandler, analyticsHandler, m)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting",
			zap.String("address", srv.Addr),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited properly")
}

func setupRouter(
	cfg *config.Config,
	linkHandler *handler.LinkHandler,
	analyticsHandler *handler.AnalyticsHandler,
	m *metrics.Metrics,
) *gin.Engine {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.MetricsMiddleware(m))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", linkHandler.HealthCheck)

	// the public redirect path stays at the root
	router.GET("/:shortID", linkHandler.Redirect)

	api := router.Group("/api/v1")
	api.POST("/links", linkHandler.CreateLink)
	api.GET("/links", linkHandler.ListLinks)
	api.PATCH("/links/:shortID", linkHandler.UpdateLink)
	api.DELETE("/links/:shortID", linkHandler.DeleteLink)
	api.GET("/links/:shortID/stats", linkHandler.LinkStats)
	api.GET("/usage", linkHandler.Usage)
	api.GET("/analytics/daily", analyticsHandler.DailySeries)
	api.GET("/analytics/breakdown", analyticsHandler.Breakdown)
	api.GET("/admin/stats", analyticsHandler.PlatformStats)

	return router
}

func newGeoResolver(cfg config.GeoConfig, logger *zap.Logger) clickstream.GeoResolver {
	if cfg.DBPath == "" {
		logger.Info("no geo database configured, clicks will carry unknown locations")
		return clickstream.NoopGeoResolver{}
	}

	resolver, err := clickstream.NewMaxMindResolver(cfg.DBPath)
	if err != nil {
		logger.Warn("failed to open geo database, falling back to unknown locations",
			zap.String("path", cfg.DBPath),
			zap.Error(err),
		)
		return clickstream.NoopGeoResolver{}
	}

	logger.Info("geo database loaded", zap.String("path", cfg.DBPath))
	return resolver
}

func initLogger() *zap.Logger {
	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapcore.InfoLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		config.Development = true
	}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	return logger
}

func getMachineID() int64 {
	machineIDStr := os.Getenv("MACHINE_ID")
	if machineIDStr == "" {
		return 1
	}

	var machineID int64
	for _, c := range machineIDStr {
		if c >= '0' && c <= '9' {
			machineID = machineID*10 + int64(c-'0')
		}
	}

	if machineID > keygen.MaxMachineID {
		machineID = machineID % (keygen.MaxMachineID + 1)
	}

	return machineID
}
