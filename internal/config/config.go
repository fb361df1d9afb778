package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port    string
	AppEnv  string
	DB      DatabaseConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	Booking BookingConfig
	Worker  WorkerConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL returns the migration-runner form of the connection string.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig holds the snapshot-cache connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds broker and topic settings.
type KafkaConfig struct {
	Brokers      []string
	BookingTopic string
	PaymentTopic string
	GroupPrefix  string
}

// BookingConfig holds the orchestration-core tunables.
type BookingConfig struct {
	NumberPrefix         string
	Currency             string
	HorizonDays          int
	AllowedDurationsMin  []int
	OperatingOpenMinute  int
	OperatingCloseMinute int
	SlotGranularityMin   int
	DepositPercent       int
	CommitTimeoutSeconds int
	SnapshotTTLSeconds   int
	HoldTTLMinutes       int
}

// CommitTimeout returns the commit-phase deadline covering lock, re-check
// and persist.
func (b BookingConfig) CommitTimeout() time.Duration {
	return time.Duration(b.CommitTimeoutSeconds) * time.Second
}

// SnapshotTTL returns how long cached directory/rule snapshots stay fresh.
func (b BookingConfig) SnapshotTTL() time.Duration {
	return time.Duration(b.SnapshotTTLSeconds) * time.Second
}

// HoldTTL returns how long a held booking survives before the sweeper
// releases it.
func (b BookingConfig) HoldTTL() time.Duration {
	return time.Duration(b.HoldTTLMinutes) * time.Minute
}

// WorkerConfig holds the hold-expiry sweeper settings.
type WorkerConfig struct {
	SweepIntervalMinutes int
}

// Load reads configuration from config.yaml (if present) and BOOKING_*
// environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BOOKING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &ServiceConfig{
		Port:   v.GetString("service_port"),
		AppEnv: v.GetString("app_env"),
		DB: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			Name:     v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers:      v.GetStringSlice("kafka.brokers"),
			BookingTopic: v.GetString("kafka.booking_topic"),
			PaymentTopic: v.GetString("kafka.payment_topic"),
			GroupPrefix:  v.GetString("kafka.group_prefix"),
		},
		Booking: BookingConfig{
			NumberPrefix:         v.GetString("booking.number_prefix"),
			Currency:             v.GetString("booking.currency"),
			HorizonDays:          v.GetInt("booking.horizon_days"),
			AllowedDurationsMin:  v.GetIntSlice("booking.allowed_durations_minutes"),
			OperatingOpenMinute:  v.GetInt("booking.operating_open_minute"),
			OperatingCloseMinute: v.GetInt("booking.operating_close_minute"),
			SlotGranularityMin:   v.GetInt("booking.slot_granularity_minutes"),
			DepositPercent:       v.GetInt("booking.deposit_percent"),
			CommitTimeoutSeconds: v.GetInt("booking.commit_timeout_seconds"),
			SnapshotTTLSeconds:   v.GetInt("booking.snapshot_ttl_seconds"),
			HoldTTLMinutes:       v.GetInt("booking.hold_ttl_minutes"),
		},
		Worker: WorkerConfig{
			SweepIntervalMinutes: v.GetInt("worker.sweep_interval_minutes"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServiceConfig) validate() error {
	if c.Booking.OperatingCloseMinute <= c.Booking.OperatingOpenMinute {
		return fmt.Errorf("operating close minute must be after open minute")
	}
	if c.Booking.SlotGranularityMin <= 0 {
		return fmt.Errorf("slot granularity must be positive")
	}
	if len(c.Booking.AllowedDurationsMin) == 0 {
		return fmt.Errorf("at least one allowed duration must be configured")
	}
	if c.Booking.DepositPercent < 0 || c.Booking.DepositPercent > 100 {
		return fmt.Errorf("deposit percent must be within [0,100]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_port", ":8084")
	v.SetDefault("app_env", "development")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "booking")
	v.SetDefault("db.password", "booking")
	v.SetDefault("db.name", "booking")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.booking_topic", "booking.events")
	v.SetDefault("kafka.payment_topic", "payment.events")
	v.SetDefault("kafka.group_prefix", "crestline.")
	v.SetDefault("booking.number_prefix", "CRS")
	v.SetDefault("booking.currency", "EUR")
	v.SetDefault("booking.horizon_days", 365)
	v.SetDefault("booking.allowed_durations_minutes", []int{120, 240, 360, 480})
	v.SetDefault("booking.operating_open_minute", 8*60)
	v.SetDefault("booking.operating_close_minute", 20*60)
	v.SetDefault("booking.slot_granularity_minutes", 60)
	v.SetDefault("booking.deposit_percent", 30)
	v.SetDefault("booking.commit_timeout_seconds", 10)
	v.SetDefault("booking.snapshot_ttl_seconds", 60)
	v.SetDefault("booking.hold_ttl_minutes", 30)
	v.SetDefault("worker.sweep_interval_minutes", 5)
}
