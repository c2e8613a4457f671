package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"
	"github.com/asterdex-mlm/internal/router"
	"github.com/asterdex-mlm/internal/service"
	"github.com/asterdex-mlm/internal/worker"
)

// BuildRunner 按模式组装长驻服务
func BuildRunner(cfg *config.Config, container *provider.Container, mode string) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if container == nil {
		return nil, errors.New("container is nil")
	}

	var services []Service
	if mode == ModeAll || mode == ModeAPI {
		services = append(services, NewHTTPService(cfg.Server, router.SetupRouter(cfg, container)))
	}

	// all 模式下队列未启用时跳过 worker
	if mode == ModeWorker || (mode == ModeAll && cfg.Queue.Enabled) {
		workerService, err := worker.NewService(cfg, worker.NewConsumer(container))
		if err != nil {
			return nil, err
		}
		services = append(services, workerService)
	} else if mode == ModeAll {
		logger.Warnw("app_worker_skipped_queue_disabled")
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no services initialized for mode %q", mode)
	}
	return NewRunner(services...).OnShutdown(closeDB, container.Close), nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}
	if !ValidMode(opts.Mode) {
		return fmt.Errorf("unsupported mode: %s", opts.Mode)
	}

	container, err := provider.NewContainer(opts.Config)
	if err != nil {
		return err
	}
	if opts.Mode == ModeAccrual {
		defer func() {
			_ = container.Close()
			_ = closeDB()
		}()
		return runAccrualOnce(container, opts)
	}

	runner, err := BuildRunner(opts.Config, container, opts.Mode)
	if err != nil {
		_ = container.Close()
		return err
	}
	opts.Logger.Infow("app_start", "addr", opts.Config.Server.Addr(), "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}

func runAccrualOnce(container *provider.Container, opts Options) error {
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var cancel context.CancelFunc
		ctx, cancel = signal.NotifyContext(ctx, opts.Signals...)
		defer cancel()
	}
	asOf, err := service.ParseAsOf(opts.AsOf, container.Settings.Location)
	if err != nil {
		return err
	}
	report, err := container.AccrualService.RunDailyAccrual(ctx, asOf)
	if err != nil {
		return err
	}
	opts.Logger.Infow("app_accrual_done",
		"as_of", report.AsOf,
		"scanned", report.Scanned,
		"credited", report.Credited,
		"skipped", report.Skipped,
		"matured", report.Matured,
		"failed", report.Failed,
		"total_credited", report.TotalCredited.String(),
	)
	if report.Failed > 0 {
		return fmt.Errorf("accrual finished with %d failed packages", report.Failed)
	}
	return nil
}

// OpenDatabase 初始化全局连接并迁移表结构
func OpenDatabase(cfg config.DatabaseConfig) error {
	err := models.InitDB(cfg.Driver, cfg.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Pool.ConnMaxIdleTimeSeconds,
		LogLevel:               cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := models.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func closeDB() error {
	if models.DB == nil {
		return nil
	}
	sqlDB, err := models.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
