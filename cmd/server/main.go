package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crestline-tours/service-booking/internal/application"
	"github.com/crestline-tours/service-booking/internal/availability"
	"github.com/crestline-tours/service-booking/internal/cache"
	"github.com/crestline-tours/service-booking/internal/config"
	"github.com/crestline-tours/service-booking/internal/database"
	bookingEvents "github.com/crestline-tours/service-booking/internal/events"
	"github.com/crestline-tours/service-booking/internal/handler"
	"github.com/crestline-tours/service-booking/internal/health"
	"github.com/crestline-tours/service-booking/internal/logger"
	"github.com/crestline-tours/service-booking/internal/middleware"
	"github.com/crestline-tours/service-booking/internal/pricing"
	"github.com/crestline-tours/service-booking/internal/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.ResourceAssignmentModel{},
			&repository.BookingSequenceModel{},
			&repository.TimelineEventModel{},
			&repository.ResourceModel{},
			&repository.AvailabilityRuleModel{},
			&repository.PricingRuleModel{},
			&repository.HolidayModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.URL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize snapshot cache
	snapshotCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.SnapshotTTL())
	defer func() { _ = snapshotCache.Close() }()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := snapshotCache.Ping(pingCtx); err != nil {
		log.Warn("redis unreachable at startup, snapshot caching degraded", zap.Error(err))
	}
	pingCancel()

	// Initialize Kafka producer
	kafkaProducer := bookingEvents.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db, cfg.Booking.NumberPrefix)
	directoryRepo := repository.NewGormDirectoryRepository(db)
	ruleRepo := repository.NewGormRuleRepository(db)

	// Initialize the engine, evaluator and snapshot source
	engine := availability.NewEngine(availability.Config{
		HorizonDays:        cfg.Booking.HorizonDays,
		AllowedDurations:   cfg.Booking.AllowedDurationsMin,
		OpenMinute:         cfg.Booking.OperatingOpenMinute,
		CloseMinute:        cfg.Booking.OperatingCloseMinute,
		GranularityMinutes: cfg.Booking.SlotGranularityMin,
	}, log)
	evaluator := pricing.NewEvaluator(cfg.Booking.DepositPercent, cfg.Booking.Currency, log)
	snapshots := application.NewSnapshotSource(directoryRepo, ruleRepo, snapshotCache, log)

	// Initialize application service
	bookingService := application.NewBookingService(
		bookingRepo,
		snapshots,
		engine,
		evaluator,
		kafkaProducer,
		cfg.Booking,
		cfg.Kafka.BookingTopic,
		log,
	)

	// Initialize and start payment event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.Kafka.GroupPrefix + "booking-service"
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.Kafka.Brokers,
		groupID,
		cfg.Kafka.PaymentTopic,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Initialize HTTP handlers
	bookingHandler := handler.NewBookingHandler(bookingService)
	adminBookingHandler := handler.NewAdminBookingHandler(bookingService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	// Register health check routes
	healthHandler := health.NewHandler(db, snapshotCache, "service-booking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	bookingHandler.RegisterRoutes(&router.RouterGroup)
	adminBookingHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
