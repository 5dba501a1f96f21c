package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocksaga/internal/auth"
	"stocksaga/internal/cache"
	"stocksaga/internal/config"
	"stocksaga/internal/database"
	"stocksaga/internal/events"
	"stocksaga/internal/handlers"
	"stocksaga/internal/kafka"
	"stocksaga/internal/saga"
	"stocksaga/internal/service"
	"stocksaga/pkg/logger"
	"stocksaga/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	appLogger := logger.New(cfg.Environment)
	defer appLogger.Sync()

	appLogger.Info("Starting inventory service",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
		zap.Strings("kafka_brokers", cfg.KafkaBrokers),
	)

	store, err := database.Open(cfg.SQLitePath, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open database", zap.Error(err))
	}
	defer store.Close()

	var publisher events.Publisher
	kafkaPublisher, err := events.NewKafkaPublisher(cfg, appLogger)
	if err != nil {
		appLogger.Warn("Failed to initialize Kafka publisher, using in-memory fallback", zap.Error(err))
		publisher = events.NewInMemoryPublisher(appLogger)
	} else {
		publisher = kafkaPublisher
		defer kafkaPublisher.Close()
	}

	inventoryService := service.NewInventoryService(store, publisher, appLogger, cfg.ConflictRetries, cfg.ReservationTTL)
	processor := saga.NewProcessor(store, inventoryService, publisher, appLogger)

	// Root context cancelled on shutdown drives the consumer and the sweep.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := kafka.NewConsumer(cfg, processor, appLogger)
	if err != nil {
		appLogger.Warn("Failed to create Kafka consumer, order events will not be processed", zap.Error(err))
	} else {
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLogger.Error("Consumer stopped", zap.Error(err))
			}
		}()
		defer consumer.Close()
	}

	go runExpirySweep(ctx, inventoryService, cfg.ExpirySweepInterval, appLogger)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.ServiceName, appLogger)
	authHandler := auth.NewAuthHandler(jwtManager, appLogger)
	productCache := cache.New(cfg, appLogger)
	inventoryHandler := handlers.NewInventoryHandler(inventoryService, productCache, cfg.CacheTTL, appLogger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.RecoveryHandler(appLogger))
	router.Use(logger.GinMiddleware(appLogger))
	router.Use(middleware.RequestID(appLogger))
	router.Use(middleware.ErrorHandler(appLogger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			status := "ok"
			code := http.StatusOK
			if err := store.Ping(); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, gin.H{"status": status, "service": cfg.ServiceName})
		})

		v1.POST("/auth/login", authHandler.Login)

		protected := v1.Group("")
		protected.Use(middleware.Auth(jwtManager, appLogger))
		inventoryHandler.RegisterRoutes(protected)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server exited")
}

// runExpirySweep periodically returns stock held by reservations that were
// never confirmed or cancelled.
func runExpirySweep(ctx context.Context, inventory *service.InventoryService, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := inventory.ExpireStaleReservations(ctx); err != nil {
				log.Error("Expiry sweep failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
