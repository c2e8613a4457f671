package worker

import (
	"context"
	"errors"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务（消费者与周期调度）
type Service struct {
	name      string
	server    *asynq.Server
	mux       *asynq.ServeMux
	consumer  *Consumer
	scheduler *queue.Scheduler
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Queue.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	serverCfg.ErrorHandler = asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		logger.Warnw("worker_task_failed", "task_type", task.Type(), "error", err)
	})
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	scheduler, err := queue.NewScheduler(&cfg.Queue, cfg.Engine, consumer.Settings.Location)
	if err != nil {
		return nil, err
	}
	return &Service{
		name:      "worker",
		server:    server,
		mux:       mux,
		consumer:  consumer,
		scheduler: scheduler,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.scheduler.Shutdown()
	s.server.Shutdown()
	return nil
}
