package config

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Settings holds the typed configuration of the booking service.
type Settings struct {
	AppPort     string `mapstructure:"APP_PORT"`
	AppEnv      string `mapstructure:"APP_ENV"`
	AppTimezone string `mapstructure:"APP_TIMEZONE"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	PaymentDeadlineHours int `mapstructure:"PAYMENT_DEADLINE_HOURS"`
	PrepaymentPercent    int `mapstructure:"PREPAYMENT_PERCENT"`

	// Queue processor.
	QueueSchedule      string        `mapstructure:"QUEUE_SCHEDULE"`
	QueueBatchSize     int           `mapstructure:"QUEUE_BATCH_SIZE"`
	QueueConcurrency   int           `mapstructure:"QUEUE_CONCURRENCY"`
	QueueClaimTimeout  time.Duration `mapstructure:"QUEUE_CLAIM_TIMEOUT"`
	DeliveryRatePerSec float64       `mapstructure:"DELIVERY_RATE_PER_SEC"`

	// Redis is optional; an empty address disables the tick lease.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	BrevoAPIKey     string `mapstructure:"BREVO_API_KEY"`
	EmailSender     string `mapstructure:"EMAIL_SENDER"`
	EmailSenderName string `mapstructure:"EMAIL_SENDER_NAME"`

	PaymentCheckoutURL   string `mapstructure:"PAYMENT_CHECKOUT_URL"`
	PaymentWebhookSecret string `mapstructure:"PAYMENT_WEBHOOK_SECRET"`
}

var AppConfig Settings

var loadEnvOnce sync.Once

func loadEnv() {
	loadEnvOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

// Config returns the raw value of an environment variable after loading .env.
func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

func defaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_TIMEZONE", "Africa/Nairobi")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("PAYMENT_DEADLINE_HOURS", 2)
	v.SetDefault("PREPAYMENT_PERCENT", 20)
	v.SetDefault("QUEUE_SCHEDULE", "@every 1m")
	v.SetDefault("QUEUE_BATCH_SIZE", 100)
	v.SetDefault("QUEUE_CONCURRENCY", 4)
	v.SetDefault("QUEUE_CLAIM_TIMEOUT", "5m")
	v.SetDefault("DELIVERY_RATE_PER_SEC", 10)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BREVO_API_KEY", "")
	v.SetDefault("EMAIL_SENDER", "")
	v.SetDefault("EMAIL_SENDER_NAME", "")
	v.SetDefault("PAYMENT_CHECKOUT_URL", "")
	v.SetDefault("PAYMENT_WEBHOOK_SECRET", "")
}

// LoadConfig reads .env, an optional config.yaml and the environment into
// AppConfig.
func LoadConfig() (*Settings, error) {
	loadEnv()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	AppConfig = s
	return &s, nil
}

func (s Settings) validate() error {
	if s.PaymentDeadlineHours <= 0 {
		return fmt.Errorf("PAYMENT_DEADLINE_HOURS must be positive, got %d", s.PaymentDeadlineHours)
	}
	if s.PrepaymentPercent < 0 || s.PrepaymentPercent > 100 {
		return fmt.Errorf("PREPAYMENT_PERCENT must be between 0 and 100, got %d", s.PrepaymentPercent)
	}
	if s.QueueBatchSize <= 0 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be positive, got %d", s.QueueBatchSize)
	}
	if s.QueueConcurrency <= 0 {
		return fmt.Errorf("QUEUE_CONCURRENCY must be positive, got %d", s.QueueConcurrency)
	}
	if s.QueueClaimTimeout <= 0 {
		return fmt.Errorf("QUEUE_CLAIM_TIMEOUT must be positive, got %s", s.QueueClaimTimeout)
	}
	if _, err := time.LoadLocation(s.AppTimezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE %q: %w", s.AppTimezone, err)
	}
	return nil
}

func (s Settings) PaymentDeadline() time.Duration {
	return time.Duration(s.PaymentDeadlineHours) * time.Hour
}

// Location is the zone booking dates and times are interpreted in.
func (s Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func IsProduction() bool {
	return AppConfig.AppEnv == "production"
}
