package scheduler

import (
	"context"
	"fmt"
	"time"

	"rewards-controlplane/pkg/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues every sweep for every company once per SCHEDULER.SPEC
// tick. Without a spec it fires daily at SCHEDULER.HOUR:SCHEDULER.MINUTE.
type Scheduler struct {
	service  *Service
	spec     string
	schedule cron.Schedule
}

func dailySpec(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

func NewScheduler(cfg *config.Config, svc *Service) (*Scheduler, error) {
	spec := cfg.Scheduler.Spec
	if spec == "" {
		spec = dailySpec(cfg.Scheduler.Hour, cfg.Scheduler.Minute)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler spec %q: %w", spec, err)
	}
	return &Scheduler{service: svc, spec: spec, schedule: schedule}, nil
}

// Next reports when the scheduler fires after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// StartScheduler runs the cron loop for the lifetime of the app.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(s.runOnce))

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			zap.L().Info("sweep scheduler started",
				zap.String("spec", s.spec),
				zap.Time("next_run", s.Next(time.Now())))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
			}
			zap.L().Info("sweep scheduler stopped")
			return nil
		},
	})
}

func (s *Scheduler) runOnce() {
	start := time.Now()
	n, err := s.service.EnqueueAll(context.Background())
	if err != nil {
		zap.L().Error("sweep enqueue failed", zap.Error(err))
		return
	}
	zap.L().Info("sweep enqueue finished",
		zap.Int("jobs", n),
		zap.Duration("duration", time.Since(start)),
		zap.Time("next_run", s.Next(time.Now())))
}
