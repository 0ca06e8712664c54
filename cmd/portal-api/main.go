/**
 * @description
 * This is the main entry point for the FinSecure portal API. It loads the
 * configuration, connects to PostgreSQL, wires the notification sink, rate
 * limiter and document store into the portal service, and serves the customer
 * and employee portal routes until it receives SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/sirupsen/logrus: Structured logging.
 * - internal/api, internal/app, internal/bootstrap, internal/config, internal/store.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/api"
	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/bootstrap"
	"github.com/finsecure/portal-core/internal/config"
	"github.com/finsecure/portal-core/internal/logging"
	"github.com/finsecure/portal-core/internal/store"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.WithError(err).Fatal("cannot load config")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("component", "bootstrap")
	if envErr != nil {
		log.Debug("no .env file found, using environment variables")
	}
	log.WithField("port", cfg.ServerPort).Info("starting portal-api")

	ctx := context.Background()

	pool, err := bootstrap.OpenPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()
	log.Info("database connected")

	repository := store.NewPostgresRepository(pool)
	if cfg.AutoMigrate {
		if err := repository.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
		log.Info("schema up to date")
	}

	tokens, err := bootstrap.TokenManager(cfg)
	if err != nil {
		log.WithError(err).Fatal("token manager init failed")
	}

	sink, closeSink := bootstrap.NotificationSink(cfg, logger)
	defer closeSink()

	limiter, closeLimiter := bootstrap.RateLimiter(ctx, cfg, logger)
	defer closeLimiter()

	docs, err := bootstrap.DocumentStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("document store init failed")
	}

	service := app.NewService(repository, tokens, limiter, sink, docs, bootstrap.ServiceOptions(cfg), logger)
	handlers := api.NewHandlers(service, cfg.MaxUploadBytes, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           api.NewRouter(handlers, tokens, cfg.AllowedOrigins(), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{"component": "http", "addr": server.Addr}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("component", "http").WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.WithField("component", "http").Info("shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("component", "http").WithError(err).Error("shutdown failed")
	}
	logger.WithField("component", "http").Info("shutdown complete")
}
