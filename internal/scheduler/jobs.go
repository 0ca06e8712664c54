/**
 * @description
 * Scheduled loan servicing and housekeeping jobs run by the loan scheduler.
 */
package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Servicer is the slice of the portal service the jobs drive.
type Servicer interface {
	DisburseApprovedLoans(ctx context.Context) (int, error)
	CollectDueEmis(ctx context.Context) (int, error)
	PurgeExpiredOtps(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	service Servicer
	timeout time.Duration
	log     *logrus.Entry
}

// NewJobs creates a new Jobs runner. Each run is bounded by timeout.
func NewJobs(service Servicer, timeout time.Duration, logger *logrus.Logger) *Jobs {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Jobs{
		service: service,
		timeout: timeout,
		log:     logger.WithField("component", "scheduler"),
	}
}

// DisburseLoans moves approved loans with an approved KYC into DISBURSED.
func (j *Jobs) DisburseLoans() {
	j.log.Info("starting loan disbursement job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	count, err := j.service.DisburseApprovedLoans(ctx)
	if err != nil {
		j.log.WithError(err).Error("loan disbursement job failed")
		return
	}
	j.log.WithField("disbursed", count).Info("loan disbursement job finished")
}

// CollectEmis applies one instalment to every loan whose EMI date has passed.
func (j *Jobs) CollectEmis() {
	j.log.Info("starting EMI collection job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	count, err := j.service.CollectDueEmis(ctx)
	if err != nil {
		j.log.WithError(err).Error("EMI collection job failed")
		return
	}
	j.log.WithField("collected", count).Info("EMI collection job finished")
}

func (j *Jobs) PurgeOtps() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	removed, err := j.service.PurgeExpiredOtps(ctx)
	if err != nil {
		j.log.WithError(err).Error("OTP purge job failed")
		return
	}
	if removed > 0 {
		j.log.WithField("removed", removed).Info("purged expired OTPs")
	}
}
