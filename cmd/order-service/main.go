package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocksaga/internal/auth"
	"stocksaga/internal/config"
	"stocksaga/internal/database"
	"stocksaga/internal/events"
	"stocksaga/internal/handlers"
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

	appLogger.Info("Starting order service",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
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

	orderService := service.NewOrderService(store, publisher, appLogger, cfg.ConflictRetries)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.ServiceName, appLogger)
	authHandler := auth.NewAuthHandler(jwtManager, appLogger)
	orderHandler := handlers.NewOrderHandler(orderService, appLogger)

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
		orderHandler.RegisterRoutes(protected)
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	appLogger.Info("Server exited")
}
