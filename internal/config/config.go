/**
 * @description
 * This package handles the configuration management for the portal API and the
 * loan scheduler. It uses Viper to read configuration from environment
 * variables and an optional .env file, then normalises the values so the rest
 * of the code never has to second-guess them.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 * - github.com/sirupsen/logrus: warnings about coerced values.
 */

package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Notification sinks.
const (
	SinkRabbitMQ = "rabbitmq"
	SinkKafka    = "kafka"
	SinkNone     = "none"
)

// Document stores.
const (
	StoreCloudinary = "cloudinary"
	StoreLocal      = "local"
)

// Config holds every setting for the portal binaries.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTTTLMinutes      int    `mapstructure:"JWT_TTL_MINUTES"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	LoginRateLimitPerMinute int    `mapstructure:"LOGIN_RATE_LIMIT_PER_MINUTE"`
	OTPRateLimitPerMinute   int    `mapstructure:"OTP_RATE_LIMIT_PER_MINUTE"`

	NotificationSink     string `mapstructure:"NOTIFICATION_SINK"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange string `mapstructure:"NOTIFICATION_EXCHANGE"`
	KafkaBrokers         string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic           string `mapstructure:"KAFKA_TOPIC"`
	KafkaUsername        string `mapstructure:"KAFKA_USERNAME"`
	KafkaPassword        string `mapstructure:"KAFKA_PASSWORD"`

	DocumentStore    string `mapstructure:"DOCUMENT_STORE"`
	CloudinaryURL    string `mapstructure:"CLOUDINARY_URL"`
	CloudinaryFolder string `mapstructure:"CLOUDINARY_FOLDER"`
	LocalDocumentDir string `mapstructure:"LOCAL_DOCUMENT_DIR"`
	MaxUploadBytes   int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	OTPTTLMinutes        int     `mapstructure:"OTP_TTL_MINUTES"`
	OTPMaxAttempts       int     `mapstructure:"OTP_MAX_ATTEMPTS"`
	TransferOTPThreshold float64 `mapstructure:"TRANSFER_OTP_THRESHOLD"`

	LoanDisbursementSchedule string `mapstructure:"LOAN_DISBURSEMENT_SCHEDULE"`
	EMICollectionSchedule    string `mapstructure:"EMI_COLLECTION_SCHEDULE"`
	OTPPurgeSchedule         string `mapstructure:"OTP_PURGE_SCHEDULE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS into a list.
func (c Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// Brokers splits KAFKA_BROKERS into a list.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIN_CONNS", 2)
	viper.SetDefault("AUTO_MIGRATE", false)
	viper.SetDefault("JWT_TTL_MINUTES", 1440)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "finsecure:rate_limit")
	viper.SetDefault("LOGIN_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("OTP_RATE_LIMIT_PER_MINUTE", 3)
	viper.SetDefault("NOTIFICATION_SINK", SinkRabbitMQ)
	viper.SetDefault("NOTIFICATION_EXCHANGE", "finsecure.notifications")
	viper.SetDefault("KAFKA_TOPIC", "finsecure.notifications")
	viper.SetDefault("DOCUMENT_STORE", StoreLocal)
	viper.SetDefault("CLOUDINARY_FOLDER", "finsecure/kyc")
	viper.SetDefault("LOCAL_DOCUMENT_DIR", "./uploads/kyc")
	viper.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	viper.SetDefault("OTP_TTL_MINUTES", 5)
	viper.SetDefault("OTP_MAX_ATTEMPTS", 5)
	viper.SetDefault("TRANSFER_OTP_THRESHOLD", 10000)
	viper.SetDefault("LOAN_DISBURSEMENT_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("EMI_COLLECTION_SCHEDULE", "0 6 * * *")
	viper.SetDefault("OTP_PURGE_SCHEDULE", "0 * * * *")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DB_MAX_CONNS")
	_ = viper.BindEnv("DB_MIN_CONNS")
	_ = viper.BindEnv("AUTO_MIGRATE")
	_ = viper.BindEnv("JWT_SECRET", "JWT_SECRET", "FINSECURE_JWT_SECRET")
	_ = viper.BindEnv("JWT_TTL_MINUTES")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("LOGIN_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("OTP_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("NOTIFICATION_SINK")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("NOTIFICATION_EXCHANGE")
	_ = viper.BindEnv("KAFKA_BROKERS")
	_ = viper.BindEnv("KAFKA_TOPIC")
	_ = viper.BindEnv("KAFKA_USERNAME")
	_ = viper.BindEnv("KAFKA_PASSWORD")
	_ = viper.BindEnv("DOCUMENT_STORE")
	_ = viper.BindEnv("CLOUDINARY_URL")
	_ = viper.BindEnv("CLOUDINARY_FOLDER")
	_ = viper.BindEnv("LOCAL_DOCUMENT_DIR")
	_ = viper.BindEnv("MAX_UPLOAD_BYTES")
	_ = viper.BindEnv("OTP_TTL_MINUTES")
	_ = viper.BindEnv("OTP_MAX_ATTEMPTS")
	_ = viper.BindEnv("TRANSFER_OTP_THRESHOLD")
	_ = viper.BindEnv("LOAN_DISBURSEMENT_SCHEDULE")
	_ = viper.BindEnv("EMI_COLLECTION_SCHEDULE")
	_ = viper.BindEnv("OTP_PURGE_SCHEDULE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")

	log := logrus.WithField("component", "config")

	// The .env file is optional.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.WithError(err).Warn("failed to read config file; using environment values")
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}

	config.JWTSecret = strings.TrimSpace(config.JWTSecret)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "finsecure:rate_limit"
	}

	if config.DBMaxConns <= 0 {
		config.DBMaxConns = 10
	}
	if config.DBMinConns < 0 {
		config.DBMinConns = 0
	}
	if config.DBMinConns > config.DBMaxConns {
		log.WithFields(logrus.Fields{"min": config.DBMinConns, "max": config.DBMaxConns}).
			Warn("DB_MIN_CONNS above DB_MAX_CONNS; capping")
		config.DBMinConns = config.DBMaxConns
	}

	if config.JWTTTLMinutes <= 0 {
		config.JWTTTLMinutes = 1440
	}
	if config.LoginRateLimitPerMinute <= 0 {
		config.LoginRateLimitPerMinute = 10
	}
	if config.OTPRateLimitPerMinute <= 0 {
		config.OTPRateLimitPerMinute = 3
	}

	config.NotificationSink = strings.ToLower(strings.TrimSpace(config.NotificationSink))
	switch config.NotificationSink {
	case SinkRabbitMQ, SinkKafka, SinkNone:
	default:
		log.WithField("value", config.NotificationSink).Warn("unknown NOTIFICATION_SINK; falling back to none")
		config.NotificationSink = SinkNone
	}

	config.DocumentStore = strings.ToLower(strings.TrimSpace(config.DocumentStore))
	switch config.DocumentStore {
	case StoreCloudinary:
		if strings.TrimSpace(config.CloudinaryURL) == "" {
			log.Warn("DOCUMENT_STORE=cloudinary without CLOUDINARY_URL; falling back to local storage")
			config.DocumentStore = StoreLocal
		}
	case StoreLocal:
	default:
		log.WithField("value", config.DocumentStore).Warn("unknown DOCUMENT_STORE; falling back to local")
		config.DocumentStore = StoreLocal
	}

	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 10 << 20
	}
	if config.OTPTTLMinutes <= 0 {
		config.OTPTTLMinutes = 5
	}
	if config.OTPMaxAttempts <= 0 {
		config.OTPMaxAttempts = 5
	}
	if config.TransferOTPThreshold < 0 {
		log.WithField("threshold", config.TransferOTPThreshold).Warn("negative TRANSFER_OTP_THRESHOLD; coercing to zero")
		config.TransferOTPThreshold = 0
	}

	config.LogLevel = strings.ToLower(strings.TrimSpace(config.LogLevel))
	config.LogFormat = strings.ToLower(strings.TrimSpace(config.LogFormat))

	return
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
