package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const retentionRunTimeout = 5 * time.Minute

// RetentionJob runs Cleanup in-process on a standard cron schedule. It is an
// alternative to running cmd/cleanup from an external scheduler.
type RetentionJob struct {
	service  NotificationService
	schedule string
	days     int
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
}

func NewRetentionJob(service NotificationService, schedule string, days int, logger *zap.Logger) *RetentionJob {
	return &RetentionJob{
		service:  service,
		schedule: schedule,
		days:     days,
		logger:   logger.With(zap.String("component", "retention")),
	}
}

// Start is a no-op when no schedule is configured.
func (j *RetentionJob) Start() error {
	if j.schedule == "" {
		return nil
	}
	schedule, err := cron.ParseStandard(j.schedule)
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", j.schedule, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.scheduler != nil {
		return nil
	}

	j.scheduler = cron.New()
	j.scheduler.Schedule(schedule, j.job())
	j.scheduler.Start()

	j.logger.Info("Retention job scheduled", zap.String("schedule", j.schedule), zap.Int("days", j.days))
	return nil
}

func (j *RetentionJob) Stop() {
	j.mu.Lock()
	scheduler := j.scheduler
	j.scheduler = nil
	j.mu.Unlock()

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
}

// job is RunOnce behind panic recovery and overlap skipping.
func (j *RetentionJob) job() cron.Job {
	cl := cron.PrintfLogger(zap.NewStdLog(j.logger))
	return cron.NewChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	).Then(cron.FuncJob(j.RunOnce))
}

func (j *RetentionJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), retentionRunTimeout)
	defer cancel()

	if _, err := j.service.Cleanup(ctx, j.days); err != nil {
		j.logger.Error("Retention cleanup failed", zap.Error(err))
	}
}
