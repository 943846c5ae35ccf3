package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assetdesk/stock-ledger-service/pkg/kafka"
	"github.com/assetdesk/stock-ledger-service/pkg/logging"
	"github.com/assetdesk/stock-ledger-service/pkg/metrics"
	"github.com/assetdesk/stock-ledger-service/pkg/middleware"
	"github.com/assetdesk/stock-ledger-service/pkg/mongodb"

	"github.com/assetdesk/stock-ledger-service/internal/application"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/messaging"
	mongoRepo "github.com/assetdesk/stock-ledger-service/internal/infrastructure/mongodb"
	"github.com/assetdesk/stock-ledger-service/internal/infrastructure/projections"
)

const serviceName = "stock-ledger-service"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting stock-ledger-service API")

	config := loadConfig()
	ctx := context.Background()

	// Prometheus metrics
	m := metrics.New(metrics.DefaultConfig(serviceName))

	// MongoDB
	mongoClient, err := mongodb.Connect(ctx, config.MongoDB)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Kafka producer behind a circuit breaker
	producer := kafka.NewCircuitBreakerProducer(kafka.NewProducer(config.Kafka), logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Repositories
	itemRepo := mongoRepo.NewItemRepository(mongoClient.Database())
	ledgerRepo := mongoRepo.NewLedgerRepository(mongoClient.Database())
	summaryRepo := projections.NewStockSummaryRepository(mongoClient.Database())

	// Read model projector and event publisher
	projector := projections.NewStockProjector(summaryRepo, logger)
	publisher := messaging.NewKafkaEventPublisher(producer, logger)

	// Application services
	transactionService := application.NewTransactionService(itemRepo, ledgerRepo, publisher, projector, m, logger)
	queryService := application.NewQueryService(itemRepo, ledgerRepo, summaryRepo, logger)
	notificationService := application.NewNotificationService(itemRepo, publisher, logger)
	importService := application.NewImportService(transactionService, logger)

	// Gin router with standard middleware
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1/stock")
	{
		// Static routes first (must come before wildcard routes)
		api.POST("", createItemHandler(transactionService, logger))
		api.GET("", listItemsHandler(queryService, logger))
		api.GET("/low-stock", lowStockHandler(notificationService, logger))
		api.POST("/transactions", applyTransactionHandler(transactionService, logger))
		api.POST("/import", importHandler(importService, logger))

		// Wildcard item routes
		api.GET("/:itemId", getItemHandler(queryService, logger))
		api.POST("/:itemId/add", mutationHandler(transactionService, logger, "add"))
		api.POST("/:itemId/issue", mutationHandler(transactionService, logger, "issue"))
		api.POST("/:itemId/return", mutationHandler(transactionService, logger, "return"))
		api.POST("/:itemId/consume", mutationHandler(transactionService, logger, "consume"))
		api.POST("/:itemId/move", mutationHandler(transactionService, logger, "move"))
		api.POST("/:itemId/edit", mutationHandler(transactionService, logger, "edit"))
		api.GET("/:itemId/ledger", getLedgerHandler(queryService, logger))
		api.GET("/:itemId/availability", availabilityHandler(queryService, logger))
		api.GET("/:itemId/audit", auditHandler(queryService, logger))
	}

	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	MongoDB    *mongodb.Config
	Kafka      *kafka.Config
}

func loadConfig() *Config {
	mongoConfig := mongodb.DefaultConfig()
	mongoConfig.URI = getEnv("MONGODB_URI", mongoConfig.URI)
	mongoConfig.Database = getEnv("MONGODB_DATABASE", mongoConfig.Database)
	mongoConfig.ReplicaSet = getEnv("MONGODB_REPLICA_SET", "")

	kafkaConfig := kafka.DefaultConfig()
	kafkaConfig.Brokers = []string{getEnv("KAFKA_BROKERS", "localhost:9092")}
	kafkaConfig.ClientID = serviceName

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		MongoDB:    mongoConfig,
		Kafka:      kafkaConfig,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
