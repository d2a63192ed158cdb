package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/KotFed0t/sp500_loader/utils"
	"github.com/go-co-op/gocron/v2"
)

type taskFn func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
}

func New() (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("gocron.NewScheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown error", slog.String("err", err.Error()))
	}
}

func (s *Scheduler) createJob(jobDefinition gocron.JobDefinition, name string, fn taskFn, startImmediately bool) error {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := s.scheduler.NewJob(jobDefinition, gocron.NewTask(s.taskWithRecover(fn, name)), opts...)
	if err != nil {
		slog.Error("Scheduler creating job error", slog.String("jobName", name), slog.String("err", err.Error()))
		return fmt.Errorf("create job %q: %w", name, err)
	}

	return nil
}

func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) error {
	return s.createJob(gocron.DurationJob(interval), name, fn, startImmediately)
}

func (s *Scheduler) NewCrontabJob(name string, fn taskFn, crontab string, startImmediately bool) error {
	return s.createJob(gocron.CronJob(crontab, true), name, fn, startImmediately)
}

// taskWithRecover gives every run its own request id and keeps a panicking job from killing the process.
// ctx is the job context from gocron, cancelled on Shutdown.
func (s *Scheduler) taskWithRecover(fn taskFn, jobName string) func(ctx context.Context) {
	return func(ctx context.Context) {
		ctx = utils.CreateCtxWithRqID(ctx)
		rqID := utils.GetRequestIDFromCtx(ctx)

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"Panic recovered in scheduler job",
					slog.String("rqID", rqID),
					slog.String("jobName", jobName),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		slog.Info("job start", slog.String("rqID", rqID), slog.String("jobName", jobName))

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Error("job failed", slog.String("rqID", rqID), slog.String("jobName", jobName), slog.Any("error", err))
			return
		}
		slog.Info("job completed", slog.String("rqID", rqID), slog.String("jobName", jobName), slog.Duration("took", time.Since(start)))
	}
}
