package config

import (
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Storage backend: firestore, mongo or memory.
	StoreDriver  string `mapstructure:"STORE_DRIVER"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Firebase / Firestore.
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	NotificationsEnabled    bool   `mapstructure:"NOTIFICATIONS_ENABLED"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB     int    `mapstructure:"REDIS_QUEUE_DB"`
	PropertyCacheTTL int    `mapstructure:"PROPERTY_CACHE_TTL"` // seconds

	// Stripe.
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// Shared secrets for the scheduler trigger and admin API.
	CronSecret string `mapstructure:"CRON_SECRET"`
	AdminToken string `mapstructure:"ADMIN_TOKEN"`

	// Booking core.
	SweepCron            string `mapstructure:"SWEEP_CRON"`
	SweepBatchSize       int    `mapstructure:"SWEEP_BATCH_SIZE"`
	DefaultHoldMinutes   int    `mapstructure:"DEFAULT_HOLD_MINUTES"`
	AvailabilityStrategy string `mapstructure:"AVAILABILITY_STRATEGY"`
	ReadRetryAttempts    int    `mapstructure:"READ_RETRY_ATTEMPTS"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig.StoreDriver = strings.ToLower(AppConfig.StoreDriver)
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 120)
	viper.SetDefault("STORE_DRIVER", "firestore")
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "rentalspot")
	viper.SetDefault("FIREBASE_PROJECT_ID", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	viper.SetDefault("NOTIFICATIONS_ENABLED", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("PROPERTY_CACHE_TTL", 300)
	viper.SetDefault("STRIPE_SECRET_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("CRON_SECRET", "")
	viper.SetDefault("ADMIN_TOKEN", "")
	viper.SetDefault("SWEEP_CRON", "0 */12 * * *")
	viper.SetDefault("SWEEP_BATCH_SIZE", 200)
	viper.SetDefault("DEFAULT_HOLD_MINUTES", 24*60)
	viper.SetDefault("AVAILABILITY_STRATEGY", "dual")
	viper.SetDefault("READ_RETRY_ATTEMPTS", 3)
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
