package provider

import (
	"github.com/asterdex-mlm/internal/cache"
	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/queue"
	"github.com/asterdex-mlm/internal/repository"
	"github.com/asterdex-mlm/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Settings    service.EngineSettings

	// Repositories
	MemberRepo           repository.MemberRepository
	TreeRepo             repository.TreeRepository
	PackageRepo          repository.PackageRepository
	WalletRepo           repository.WalletRepository
	VolumeRepo           repository.VolumeRepository
	RankRepo             repository.RankRepository
	CommissionConfigRepo repository.CommissionConfigRepository

	// Services
	PlanService       *service.PlanService
	WalletService     *service.WalletService
	TreeService       *service.TreeService
	MemberService     *service.MemberService
	CommissionService *service.CommissionService
	RankService       *service.RankService
	PackageService    *service.PackageService
	AccrualService    *service.AccrualService
	AuditService      *service.AuditService
}

// NewContainer 初始化容器（写入默认奖金方案并加载）
func NewContainer(cfg *config.Config) (*Container, error) {
	return NewContainerWithDB(cfg, models.DB)
}

// NewContainerWithDB 使用指定数据库初始化容器
func NewContainerWithDB(cfg *config.Config, db *gorm.DB) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	settings, err := service.NewEngineSettings(cfg.Engine, cfg.ROI, cfg.Stop)
	if err != nil {
		logger.Errorw("provider_engine_settings_invalid", "error", err)
		return nil, err
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Settings:    settings,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 写入并加载奖金方案
	planJSON, ranks := service.BuildPlanSeed(cfg.Plan, cfg.ROI)
	if err := models.SeedPlan(db, planJSON, ranks); err != nil {
		logger.Errorw("provider_seed_plan_failed", "error", err)
		return nil, err
	}
	c.PlanService = service.NewPlanService(c.CommissionConfigRepo, c.RankRepo)
	if _, err := c.PlanService.Load(); err != nil {
		logger.Errorw("provider_load_plan_failed", "error", err)
		return nil, err
	}

	// 3. 初始化 Services
	c.initServices()

	return c, nil
}

// Close 释放队列客户端与 Redis 连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			firstErr = err
		}
	}
	if err := cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.MemberRepo = repository.NewMemberRepository(db)
	c.TreeRepo = repository.NewTreeRepository(db)
	c.PackageRepo = repository.NewPackageRepository(db)
	c.WalletRepo = repository.NewWalletRepository(db)
	c.VolumeRepo = repository.NewVolumeRepository(db)
	c.RankRepo = repository.NewRankRepository(db)
	c.CommissionConfigRepo = repository.NewCommissionConfigRepository(db)
}

func (c *Container) initServices() {
	var locker service.RunLocker
	if cache.Enabled() {
		locker = cache.NewRunLock(cache.Default())
	}

	c.WalletService = service.NewWalletService(c.WalletRepo, c.MemberRepo)
	c.TreeService = service.NewTreeService(c.TreeRepo, c.MemberRepo, c.Settings)
	c.MemberService = service.NewMemberService(c.MemberRepo, c.WalletService, c.TreeService)
	c.CommissionService = service.NewCommissionService(c.MemberRepo, c.TreeRepo, c.PackageRepo, c.VolumeRepo, c.WalletRepo, c.WalletService, c.PlanService, c.Settings)
	c.RankService = service.NewRankService(c.MemberRepo, c.RankRepo, c.WalletService, c.PlanService, cache.Default(), c.Settings)
	c.PackageService = service.NewPackageService(c.PackageRepo, c.MemberRepo, c.WalletService, c.CommissionService, c.RankService, c.PlanService, c.Settings)
	c.AccrualService = service.NewAccrualService(c.PackageRepo, c.MemberRepo, c.WalletService, c.CommissionService, locker, c.Settings)
	c.AuditService = service.NewAuditService(c.WalletRepo, c.TreeRepo, c.MemberRepo)
}
