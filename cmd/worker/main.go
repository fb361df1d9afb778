package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crestline-tours/service-booking/internal/application"
	"github.com/crestline-tours/service-booking/internal/availability"
	"github.com/crestline-tours/service-booking/internal/config"
	"github.com/crestline-tours/service-booking/internal/database"
	bookingEvents "github.com/crestline-tours/service-booking/internal/events"
	"github.com/crestline-tours/service-booking/internal/logger"
	"github.com/crestline-tours/service-booking/internal/pricing"
	"github.com/crestline-tours/service-booking/internal/repository"
	"go.uber.org/zap"
)

// The worker releases expired holds on a fixed interval so abandoned
// checkouts hand their vehicles and drivers back without operator action.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewNamed(cfg.AppEnv, "booking-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	kafkaProducer := bookingEvents.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	bookingRepo := repository.NewGormBookingRepository(db, cfg.Booking.NumberPrefix)
	directoryRepo := repository.NewGormDirectoryRepository(db)
	ruleRepo := repository.NewGormRuleRepository(db)

	engine := availability.NewEngine(availability.Config{
		HorizonDays:        cfg.Booking.HorizonDays,
		AllowedDurations:   cfg.Booking.AllowedDurationsMin,
		OpenMinute:         cfg.Booking.OperatingOpenMinute,
		CloseMinute:        cfg.Booking.OperatingCloseMinute,
		GranularityMinutes: cfg.Booking.SlotGranularityMin,
	}, log)
	evaluator := pricing.NewEvaluator(cfg.Booking.DepositPercent, cfg.Booking.Currency, log)

	// The worker never serves read traffic, so it skips the cache.
	snapshots := application.NewSnapshotSource(directoryRepo, ruleRepo, nil, log)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := time.Duration(cfg.Worker.SweepIntervalMinutes) * time.Minute
	log.Info("starting hold-expiry sweeper",
		zap.Duration("interval", interval),
		zap.Duration("hold_ttl", cfg.Booking.HoldTTL()),
	)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, sweepCancel := context.WithTimeout(ctx, interval)
				if _, err := bookingService.ReleaseExpiredHolds(sweepCtx); err != nil {
					log.Error("hold-expiry sweep failed", zap.Error(err))
				}
				sweepCancel()
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down booking-worker")
	cancel()
}
