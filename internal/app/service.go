package app

import (
	"context"
	"errors"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultStopTimeout = 15 * time.Second

// Service 长驻服务（HTTP、队列消费者）
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Closer 服务全部停止后释放的资源（队列客户端、Redis、数据库）
type Closer func() error

// Runner 服务运行器
type Runner struct {
	services []Service
	closers  []Closer
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// OnShutdown 注册停止后的资源释放，按注册的逆序执行
func (r *Runner) OnShutdown(closers ...Closer) *Runner {
	if r == nil {
		return r
	}
	r.closers = append(r.closers, closers...)
	return r
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	return runner.Run(ctx, opts.ShutdownTimeout, opts.Logger)
}

// Run 并发启动全部服务，任一服务退出或收到信号后整体停止
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration, log *zap.SugaredLogger) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	for _, svc := range r.services {
		if svc == nil {
			return errors.New("service is nil")
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range r.services {
		service := svc
		group.Go(func() error {
			logw(log, "service_start", "service", service.Name())
			err := service.Start(groupCtx)
			logw(log, "service_exit", "service", service.Name(), "error", err)
			if err == nil {
				// 服务正常返回也视为退出信号，带动其他服务停止
				return context.Canceled
			}
			return err
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		r.stopAll(stopTimeout, log)
		return groupCtx.Err()
	})

	runErr := group.Wait()
	r.closeAll(log)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func (r *Runner) stopAll(stopTimeout time.Duration, log *zap.SugaredLogger) {
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil && log != nil {
			log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
}

func (r *Runner) closeAll(log *zap.SugaredLogger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if r.closers[i] == nil {
			continue
		}
		if err := r.closers[i](); err != nil && log != nil {
			log.Warnw("resource_close_failed", "error", err)
		}
	}
	r.closers = nil
}

func logw(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	if log != nil {
		log.Infow(msg, kv...)
	}
}
