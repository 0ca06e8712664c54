/**
 * @description
 * Entry point for the loan scheduler. It runs the loan disbursement, EMI
 * collection and OTP purge jobs on cron schedules against the same database
 * and notification sink as the portal API.
 *
 * @dependencies
 * - github.com/robfig/cron/v3 (via internal/scheduler): Job scheduling.
 * - github.com/sirupsen/logrus: Structured logging.
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/finsecure/portal-core/internal/app"
	"github.com/finsecure/portal-core/internal/bootstrap"
	"github.com/finsecure/portal-core/internal/config"
	"github.com/finsecure/portal-core/internal/logging"
	"github.com/finsecure/portal-core/internal/scheduler"
	"github.com/finsecure/portal-core/internal/store"
)

func main() {
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
	log.Info("starting loan-scheduler")

	ctx := context.Background()

	pool, err := bootstrap.OpenPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()

	repository := store.NewPostgresRepository(pool)
	if cfg.AutoMigrate {
		if err := repository.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	tokens, err := bootstrap.TokenManager(cfg)
	if err != nil {
		log.WithError(err).Fatal("token manager init failed")
	}

	sink, closeSink := bootstrap.NotificationSink(cfg, logger)
	defer closeSink()

	// Jobs never rate limit or store documents.
	service := app.NewService(repository, tokens, nil, sink, nil, bootstrap.ServiceOptions(cfg), logger)

	jobs := scheduler.NewJobs(service, 5*time.Minute, logger)
	cronScheduler := scheduler.NewScheduler(jobs, scheduler.Schedules{
		Disbursement:  cfg.LoanDisbursementSchedule,
		EmiCollection: cfg.EMICollectionSchedule,
		OtpPurge:      cfg.OTPPurgeSchedule,
	}, logger)
	if err := cronScheduler.Register(); err != nil {
		log.WithError(err).Fatal("job registration failed")
	}
	cronScheduler.Start()
	log.WithField("jobs", cronScheduler.Entries()).Info("scheduler started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("waiting for running jobs")
	select {
	case <-cronScheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		log.Warn("jobs still running at shutdown")
	}
	log.Info("scheduler stopped")
}
