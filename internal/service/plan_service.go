package service

import (
	"sync"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/repository"
)

// PlanProvider 奖金方案提供者
type PlanProvider interface {
	Current() (*CompensationPlan, error)
}

// PlanService 从配置表加载奖金方案并缓存
type PlanService struct {
	configRepo repository.CommissionConfigRepository
	rankRepo   repository.RankRepository

	mu   sync.RWMutex
	plan *CompensationPlan
}

// NewPlanService 创建奖金方案服务
func NewPlanService(configRepo repository.CommissionConfigRepository, rankRepo repository.RankRepository) *PlanService {
	return &PlanService{configRepo: configRepo, rankRepo: rankRepo}
}

// Load 读取并校验配置表，成功后替换缓存
func (s *PlanService) Load() (*CompensationPlan, error) {
	row, err := s.configRepo.GetByKey(constants.CommissionConfigKeyPlan)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrPlanMissing
	}
	ranks, err := s.rankRepo.ListDefinitions()
	if err != nil {
		return nil, err
	}
	plan, err := ParseCompensationPlan(row.ValueJSON, ranks)
	if err != nil {
		logger.Errorw("commission_plan_invalid", "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.plan = plan
	s.mu.Unlock()
	logger.Infow("commission_plan_loaded",
		"levels", len(plan.LevelPercents),
		"matching_tiers", len(plan.MatchingTiers),
		"package_tiers", len(plan.PackageTiers),
		"ranks", len(plan.Ranks),
	)
	return plan, nil
}

// Current 返回已加载的方案（未加载时首次加载）
func (s *PlanService) Current() (*CompensationPlan, error) {
	s.mu.RLock()
	plan := s.plan
	s.mu.RUnlock()
	if plan != nil {
		return plan, nil
	}
	return s.Load()
}

// StaticPlan 固定方案（测试与离线工具使用）
type StaticPlan struct {
	Plan *CompensationPlan
}

// Current 返回固定方案
func (p StaticPlan) Current() (*CompensationPlan, error) {
	if p.Plan == nil {
		return nil, ErrPlanMissing
	}
	return p.Plan, nil
}
