//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/crestline-tours/service-booking/internal/application"
	"github.com/crestline-tours/service-booking/internal/availability"
	"github.com/crestline-tours/service-booking/internal/config"
	bookingEvents "github.com/crestline-tours/service-booking/internal/events"
	"github.com/crestline-tours/service-booking/internal/pricing"
	"github.com/crestline-tours/service-booking/internal/repository"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *bookingEvents.PaymentEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.BookingModel{},
		&repository.ResourceAssignmentModel{},
		&repository.BookingSequenceModel{},
		&repository.TimelineEventModel{},
		&repository.ResourceModel{},
		&repository.AvailabilityRuleModel{},
		&repository.PricingRuleModel{},
		&repository.HolidayModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	// Pre-create required topics.
	createTopics(t, kafkaBrokers, "booking.events", "payment.events")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

func testBookingConfig() config.BookingConfig {
	return config.BookingConfig{
		NumberPrefix:         "CRS",
		Currency:             "EUR",
		HorizonDays:          365,
		AllowedDurationsMin:  []int{120, 240, 360, 480},
		OperatingOpenMinute:  480,
		OperatingCloseMinute: 1200,
		SlotGranularityMin:   60,
		DepositPercent:       30,
		CommitTimeoutSeconds: 10,
		SnapshotTTLSeconds:   60,
		HoldTTLMinutes:       30,
	}
}

// setupBookingStack wires up the full booking service stack without redis:
// the snapshot source falls back to direct database reads.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	cfg := testBookingConfig()

	bookingRepo := repository.NewGormBookingRepository(db, cfg.NumberPrefix)
	directoryRepo := repository.NewGormDirectoryRepository(db)
	ruleRepo := repository.NewGormRuleRepository(db)

	engine := availability.NewEngine(availability.Config{
		HorizonDays:        cfg.HorizonDays,
		AllowedDurations:   cfg.AllowedDurationsMin,
		OpenMinute:         cfg.OperatingOpenMinute,
		CloseMinute:        cfg.OperatingCloseMinute,
		GranularityMinutes: cfg.SlotGranularityMin,
	}, logger)
	evaluator := pricing.NewEvaluator(cfg.DepositPercent, cfg.Currency, logger)
	snapshots := application.NewSnapshotSource(directoryRepo, ruleRepo, nil, logger)

	producer := bookingEvents.NewProducer(brokers, logger)
	bookingSvc := application.NewBookingService(
		bookingRepo, snapshots, engine, evaluator, producer, cfg, "booking.events", logger,
	)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, "payment.events", bookingSvc, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Consumer:        consumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedFleet inserts one vehicle and one driver and returns their ids.
func seedFleet(t *testing.T, db *gorm.DB) (vehicleID, driverID int64) {
	t.Helper()
	vehicle := repository.ResourceModel{Kind: "vehicle", Name: "Coach 12", Class: "coach", Capacity: 30, Active: true}
	driver := repository.ResourceModel{Kind: "driver", Name: "A. Keller", Active: true}
	require.NoError(t, db.Create(&vehicle).Error)
	require.NoError(t, db.Create(&driver).Error)
	return vehicle.ID, driver.ID
}

// seedBasePricingRule inserts a catch-all pricing rule.
func seedBasePricingRule(t *testing.T, db *gorm.DB) {
	t.Helper()
	rule := repository.PricingRuleModel{
		Name:              "base rate",
		BasePriceCents:    20000,
		PerHourCents:      6000,
		PerPersonCents:    500,
		MultiplierPercent: 100,
		Priority:          0,
		Active:            true,
	}
	require.NoError(t, db.Create(&rule).Error)
}

// commitTestBooking commits one booking through the full service path.
func commitTestBooking(t *testing.T, svc *application.BookingService, date string, start int) *application.BookingDTO {
	t.Helper()
	dto, err := svc.CommitBooking(context.Background(), application.CommitBookingRequest{
		Date:            date,
		StartMinute:     &start,
		DurationMinutes: 240,
		PartySize:       8,
		VehicleClass:    "coach",
	})
	require.NoError(t, err, "commit failed")
	return dto
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := bookingEvents.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := bookingEvents.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBookingStatus polls the bookings table until the status matches.
func waitForBookingStatus(t *testing.T, db *gorm.DB, bookingID uuid.UUID, expectedStatus string, timeout time.Duration) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		err := db.Where("id = ?", bookingID).First(&model).Error
		if err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) bookingEvents.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := bookingEvents.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}

// tourDate returns a bookable date comfortably inside the horizon.
func tourDate() string {
	return time.Now().UTC().AddDate(0, 0, 14).Format("2006-01-02")
}
