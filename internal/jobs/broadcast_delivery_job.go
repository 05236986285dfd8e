package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// Redeliverer finishes broadcasts whose fan-out did not complete
type Redeliverer interface {
	RedeliverPending(ctx context.Context, minAge time.Duration) (int, error)
}

// BroadcastDeliveryJob periodically retries notifications left in draft
type BroadcastDeliveryJob struct {
	notifications Redeliverer
	interval      time.Duration
	minAge        time.Duration
	log           logrus.FieldLogger
	scheduler     gocron.Scheduler
}

// NewBroadcastDeliveryJob creates the job; minAge keeps it away from
// broadcasts that are still in flight.
func NewBroadcastDeliveryJob(notifications Redeliverer, interval, minAge time.Duration, log logrus.FieldLogger) *BroadcastDeliveryJob {
	return &BroadcastDeliveryJob{
		notifications: notifications,
		interval:      interval,
		minAge:        minAge,
		log:           log.WithField("job", "broadcast_delivery"),
	}
}

// Start schedules the job
func (j *BroadcastDeliveryJob) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(j.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), j.interval)
			defer cancel()
			j.RunOnce(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule broadcast delivery: %w", err)
	}

	sched.Start()
	j.scheduler = sched
	j.log.WithField("interval", j.interval.String()).Info("broadcast delivery job started")
	return nil
}

// Stop shuts the scheduler down
func (j *BroadcastDeliveryJob) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	j.log.Info("stopping broadcast delivery job")
	return j.scheduler.Shutdown()
}

// RunOnce performs a single redelivery pass
func (j *BroadcastDeliveryJob) RunOnce(ctx context.Context) int {
	delivered, err := j.notifications.RedeliverPending(ctx, j.minAge)
	if err != nil {
		j.log.WithError(err).Error("redelivery pass had failures")
	}
	if delivered > 0 {
		j.log.WithField("delivered", delivered).Info("redelivered draft notifications")
	}
	return delivered
}
