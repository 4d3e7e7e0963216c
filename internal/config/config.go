/**
 * @description
 * This package handles the configuration management for the fraud-service. It uses the
 * Viper library to read configuration from environment variables (and an optional
 * .env file), providing a centralized place for every tunable the pipeline uses.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	VelocityBackendPostgres = "postgres"
	VelocityBackendRedis    = "redis"

	defaultEventsExchange        = "transfa.events"
	defaultTransactionEventQueue = "fraud_service.transaction_writes"
	defaultRedisVelocityPrefix   = "fraud:velocity"
	defaultFCMSendTimeoutSeconds = 10
	defaultPipelineTimeoutSecs   = 30
)

// Config holds all the configuration variables for the fraud-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisVelocityPrefix      string `mapstructure:"REDIS_VELOCITY_PREFIX"`
	VelocityBackend          string `mapstructure:"VELOCITY_BACKEND"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string `mapstructure:"EVENTS_EXCHANGE"`
	TransactionEventQueue    string `mapstructure:"TRANSACTION_EVENT_QUEUE"`
	WebhookAPIKey            string `mapstructure:"WEBHOOK_API_KEY"`
	GoogleServiceAccountJSON string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	FCMSendTimeoutSeconds    int    `mapstructure:"FCM_SEND_TIMEOUT_SECONDS"`
	PipelineTimeoutSeconds   int    `mapstructure:"PIPELINE_TIMEOUT_SECONDS"`
	RiskTimezone             string `mapstructure:"RISK_TIMEZONE"`
	CORSAllowedOrigins       string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_VELOCITY_PREFIX", defaultRedisVelocityPrefix)
	viper.SetDefault("VELOCITY_BACKEND", VelocityBackendPostgres)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("TRANSACTION_EVENT_QUEUE", defaultTransactionEventQueue)
	viper.SetDefault("FCM_SEND_TIMEOUT_SECONDS", defaultFCMSendTimeoutSeconds)
	viper.SetDefault("PIPELINE_TIMEOUT_SECONDS", defaultPipelineTimeoutSecs)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "FRAUD_REDIS_URL")
	_ = viper.BindEnv("REDIS_VELOCITY_PREFIX")
	_ = viper.BindEnv("VELOCITY_BACKEND")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("TRANSACTION_EVENT_QUEUE")
	_ = viper.BindEnv("WEBHOOK_API_KEY", "WEBHOOK_API_KEY", "FRAUD_WEBHOOK_API_KEY")
	_ = viper.BindEnv("GOOGLE_SERVICE_ACCOUNT_JSON")
	_ = viper.BindEnv("FCM_SEND_TIMEOUT_SECONDS")
	_ = viper.BindEnv("PIPELINE_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RISK_TIMEZONE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.WebhookAPIKey = strings.TrimSpace(config.WebhookAPIKey)
	if config.WebhookAPIKey == "" {
		config.WebhookAPIKey = strings.TrimSpace(os.Getenv("FRAUD_WEBHOOK_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisVelocityPrefix = strings.TrimSpace(config.RedisVelocityPrefix)
	if config.RedisVelocityPrefix == "" {
		config.RedisVelocityPrefix = defaultRedisVelocityPrefix
	}

	config.VelocityBackend = strings.ToLower(strings.TrimSpace(config.VelocityBackend))
	switch config.VelocityBackend {
	case VelocityBackendPostgres, VelocityBackendRedis:
	default:
		log.Printf("level=warn component=config msg=\"unknown velocity backend; using postgres\" value=%q", config.VelocityBackend)
		config.VelocityBackend = VelocityBackendPostgres
	}
	if config.VelocityBackend == VelocityBackendRedis && config.RedisURL == "" {
		log.Printf("level=warn component=config msg=\"redis velocity backend requires REDIS_URL; using postgres\"")
		config.VelocityBackend = VelocityBackendPostgres
	}

	if strings.TrimSpace(config.EventsExchange) == "" {
		config.EventsExchange = defaultEventsExchange
	}
	if strings.TrimSpace(config.TransactionEventQueue) == "" {
		config.TransactionEventQueue = defaultTransactionEventQueue
	}
	if config.FCMSendTimeoutSeconds <= 0 {
		config.FCMSendTimeoutSeconds = defaultFCMSendTimeoutSeconds
	}
	if config.PipelineTimeoutSeconds <= 0 {
		config.PipelineTimeoutSeconds = defaultPipelineTimeoutSecs
	}
	config.RiskTimezone = strings.TrimSpace(config.RiskTimezone)
	if strings.TrimSpace(config.CORSAllowedOrigins) == "" {
		config.CORSAllowedOrigins = "*"
	}

	return
}

// FCMSendTimeout is the per-token push deadline.
func (c Config) FCMSendTimeout() time.Duration {
	return time.Duration(c.FCMSendTimeoutSeconds) * time.Second
}

// PipelineTimeout bounds one evaluation triggered by a transaction event.
func (c Config) PipelineTimeout() time.Duration {
	return time.Duration(c.PipelineTimeoutSeconds) * time.Second
}

// RiskLocation resolves RISK_TIMEZONE. An empty or unknown zone falls back to the
// server's local time.
func (c Config) RiskLocation() *time.Location {
	if c.RiskTimezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.RiskTimezone)
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid RISK_TIMEZONE; using local time\" value=%q err=%v", c.RiskTimezone, err)
		return time.Local
	}
	return loc
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
