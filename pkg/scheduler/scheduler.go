package scheduler

import (
	"context"
	"cyberlearn_backend/pkg/logger"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Job 周期任务，返回的错误只记录日志
type Job func(ctx context.Context) error

// Scheduler gocron 的薄封装
type Scheduler struct {
	scheduler *gocron.Scheduler
	timeout   time.Duration
}

func New(timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		timeout:   timeout,
	}
}

// Every 注册任务并在启动后立刻执行一次
func (s *Scheduler) Every(interval time.Duration, name string, job Job) error {
	_, err := s.scheduler.Every(interval).Tag(name).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			logger.Log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
			return
		}
		logger.Log.Debug("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
	})
	return err
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
