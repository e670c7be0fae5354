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

	"github.com/bernarddwumfour/estore-backend/config"
	"github.com/bernarddwumfour/estore-backend/internal/api"
	"github.com/bernarddwumfour/estore-backend/internal/broker"
	"github.com/bernarddwumfour/estore-backend/internal/mailer"
	"github.com/bernarddwumfour/estore-backend/internal/redisclient"
	"github.com/bernarddwumfour/estore-backend/internal/service"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
	"github.com/bernarddwumfour/estore-backend/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting estore backend")

	tp, err := util.InitTracer("estore-backend", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// The app runs without Redis; caching and the stock snapshot degrade.
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, running without cache: %v", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	mail := mailer.New(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		BaseURL:  cfg.SMTP.BaseURL,
	})

	authService := service.NewAuthService(db, service.AuthConfig{
		JWTSecret:                cfg.Auth.JWTSecret,
		AccessTokenTTL:           cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:          cfg.Auth.RefreshTokenTTL,
		DisableEmailVerification: cfg.Auth.DisableEmailVerification,
	}, mail)
	catalogService := service.NewCatalogService(db, redisClient)
	addressService := service.NewAddressService(db)
	orderService := service.NewOrderService(db, addressService, redisClient, eventPublisher, service.OrderConfig{
		DefaultTaxRate:      cfg.Business.DefaultTaxRate,
		DefaultShippingCost: cfg.Business.DefaultShippingCost,
		DefaultCurrency:     cfg.Business.DefaultCurrency,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, mail, db)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	snapshotWorker := worker.NewStockSnapshotWorker(catalogService, cfg.Business.StockSnapshotInterval)
	go func() {
		if err := snapshotWorker.Start(workerCtx); err != nil && workerCtx.Err() == nil {
			log.Printf("Stock snapshot worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(authService, catalogService, orderService, addressService)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}
