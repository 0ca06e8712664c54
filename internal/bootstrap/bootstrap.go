/**
 * @description
 * This package wires the infrastructure shared by the portal API and the loan
 * scheduler: the PostgreSQL pool, the notification sink, the Redis rate
 * limiter, the KYC document store and the service options. Optional
 * dependencies degrade to a disabled mode with a warning instead of failing
 * startup.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver and pool.
 * - github.com/redis/go-redis/v9: Rate limiter backend.
 * - pkg/rabbitmq, pkg/kafka: Notification sinks.
 * - pkg/docstore: KYC document storage.
 */
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/config"
	"github.com/finsecure/portal-core/pkg/docstore"
	"github.com/finsecure/portal-core/pkg/kafka"
	"github.com/finsecure/portal-core/pkg/rabbitmq"
)

// OpenPool connects to PostgreSQL and verifies the connection.
func OpenPool(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url parse failed: %w", err)
	}
	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}

// NotificationSink returns the configured sink and its close function. An
// unreachable RabbitMQ broker falls back to a logging no-op publisher.
func NotificationSink(cfg config.Config, logger *logrus.Logger) (app.NotificationSink, func()) {
	log := logger.WithField("component", "bootstrap")

	switch cfg.NotificationSink {
	case config.SinkRabbitMQ:
		producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, cfg.NotificationExchange, logger)
		if err != nil {
			log.WithError(err).Warn("rabbitmq producer unavailable; using fallback")
			return &rabbitmq.EventProducerFallback{Log: logger.WithField("component", "rabbitmq_producer")}, func() {}
		}
		log.WithField("exchange", cfg.NotificationExchange).Info("rabbitmq producer connected")
		return producer, producer.Close
	case config.SinkKafka:
		brokers := cfg.Brokers()
		if len(brokers) == 0 {
			log.Warn("KAFKA_BROKERS not set; notification events will not be published")
			return nil, func() {}
		}
		producer := kafka.NewProducer(brokers, cfg.KafkaTopic, cfg.KafkaUsername, cfg.KafkaPassword, logger)
		log.WithFields(logrus.Fields{"brokers": brokers, "topic": cfg.KafkaTopic}).Info("kafka producer configured")
		return producer, producer.Close
	default:
		log.Info("notification sink disabled; notifications are stored only")
		return nil, func() {}
	}
}

// RateLimiter returns a Redis-backed limiter, or nil when Redis is not
// configured or unreachable.
func RateLimiter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (app.RateLimiter, func()) {
	log := logger.WithField("component", "bootstrap")
	if cfg.RedisURL == "" {
		log.Warn("redis url missing; rate limiting disabled")
		return nil, func() {}
	}

	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis url parse failed; rate limiting disabled")
		return nil, func() {}
	}
	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis ping failed; rate limiting disabled")
		client.Close()
		return nil, func() {}
	}
	log.Info("redis connected")

	return app.NewAttemptLimiter(client, cfg.RedisRateLimitPrefix, LimitPolicy(cfg)), func() { client.Close() }
}

// DocumentStore returns the configured KYC document store.
func DocumentStore(cfg config.Config) (docstore.Store, error) {
	if cfg.DocumentStore == config.StoreCloudinary {
		store, err := docstore.NewCloudinaryStore(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, fmt.Errorf("cloudinary init failed: %w", err)
		}
		return store, nil
	}
	return docstore.NewLocalStore(cfg.LocalDocumentDir), nil
}

// ServiceOptions maps configuration onto the service tunables.
func ServiceOptions(cfg config.Config) app.Options {
	return app.Options{
		OtpTTL:               time.Duration(cfg.OTPTTLMinutes) * time.Minute,
		OtpMaxAttempts:       cfg.OTPMaxAttempts,
		TransferOtpThreshold: decimal.NewFromFloat(cfg.TransferOTPThreshold),
		MaxUploadBytes:       cfg.MaxUploadBytes,
	}
}

// LimitPolicy maps the per-minute limits in configuration onto limiter scopes.
func LimitPolicy(cfg config.Config) map[app.LimitScope]int {
	return map[app.LimitScope]int{
		app.LimitLogin:   cfg.LoginRateLimitPerMinute,
		app.LimitOtpSend: cfg.OTPRateLimitPerMinute,
	}
}

// TokenManager builds the session token manager. The secret must be set.
func TokenManager(cfg config.Config) (*app.TokenManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be configured")
	}
	return app.NewTokenManager(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute), nil
}
