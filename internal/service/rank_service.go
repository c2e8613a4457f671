package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"gorm.io/gorm"
)

const rankStatusCacheTTL = 10 * time.Minute

// StatusCache 等级状态读缓存
type StatusCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RankService 等级评估引擎
type RankService struct {
	memberRepo repository.MemberRepository
	rankRepo   repository.RankRepository
	walletSvc  *WalletService
	plans      PlanProvider
	cache      StatusCache
	settings   EngineSettings
}

// RankEvaluation 等级评估结果
type RankEvaluation struct {
	MemberID       uint         `json:"member_id"`
	CurrentRank    int          `json:"current_rank"`
	EligibleRank   int          `json:"eligible_rank"`
	ShouldUpgrade  bool         `json:"should_upgrade"`
	DirectCount    int          `json:"direct_count"`
	TeamVolume     models.Money `json:"team_volume"`
	PersonalVolume models.Money `json:"personal_volume"`
}

// RankApplyResult 晋升结果
type RankApplyResult struct {
	Evaluation RankEvaluation       `json:"evaluation"`
	Upgraded   bool                 `json:"upgraded"`
	Rewards    []models.LedgerEntry `json:"rewards"`
}

// RankSweepReport 全量评估报告
type RankSweepReport struct {
	Evaluated int `json:"evaluated"`
	Upgraded  int `json:"upgraded"`
	Failed    int `json:"failed"`
}

// NewRankService 创建等级评估引擎
func NewRankService(
	memberRepo repository.MemberRepository,
	rankRepo repository.RankRepository,
	walletSvc *WalletService,
	plans PlanProvider,
	cache StatusCache,
	settings EngineSettings,
) *RankService {
	return &RankService{
		memberRepo: memberRepo,
		rankRepo:   rankRepo,
		walletSvc:  walletSvc,
		plans:      plans,
		cache:      cache,
		settings:   settings.normalized(),
	}
}

// Evaluate 只读评估：按等级升序，最后一个满足全部门槛的等级即为可达等级
func (s *RankService) Evaluate(ctx context.Context, memberID uint) (*RankEvaluation, error) {
	ranks, err := s.ranks()
	if err != nil {
		return nil, err
	}
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	evaluation := evaluateMember(member, ranks)
	return &evaluation, nil
}

// GetRankStatus 带缓存的等级状态查询
func (s *RankService) GetRankStatus(ctx context.Context, memberID uint) (*RankEvaluation, error) {
	key := rankCacheKey(memberID)
	if s.cache != nil {
		var cached RankEvaluation
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			logger.Warnw("rank_status_cache_get_failed", "member_id", memberID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}
	evaluation, err := s.Evaluate(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, evaluation, rankStatusCacheTTL); err != nil {
			logger.Warnw("rank_status_cache_set_failed", "member_id", memberID, "error", err)
		}
	}
	return evaluation, nil
}

// EvaluateAndApply 晋升（不降级）并为每个新达成且未发放的等级发放一次性奖励
func (s *RankService) EvaluateAndApply(ctx context.Context, memberID uint) (*RankApplyResult, error) {
	ranks, err := s.ranks()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &RankApplyResult{Rewards: []models.LedgerEntry{}}
	err = s.memberRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		rankRepo := s.rankRepo.WithTx(tx)
		member, err := memberRepo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		evaluation := evaluateMember(member, ranks)
		result.Evaluation = evaluation
		if !evaluation.ShouldUpgrade {
			return nil
		}

		now := time.Now()
		for _, rank := range ranks {
			if rank.Level > evaluation.EligibleRank {
				break
			}
			if rank.Level <= member.RankLevel {
				continue
			}
			achieved, err := rankRepo.GetAchievement(member.ID, rank.Level)
			if err != nil {
				return err
			}
			if achieved != nil {
				continue
			}
			reference := buildReference(constants.ReferencePrefixRank, member.ID, rank.Level)
			if rank.RewardAmount.IsPositive() {
				entry, err := s.walletSvc.ApplyInTx(tx, LedgerInput{
					MemberID:  member.ID,
					Amount:    rank.RewardAmount,
					Type:      constants.LedgerTypeRankReward,
					Reference: reference,
					Remark:    fmt.Sprintf("rank %d %s reward", rank.Level, rank.Name),
				})
				if err != nil && !errors.Is(err, ErrAlreadyProcessed) {
					return err
				}
				if err == nil && entry != nil {
					result.Rewards = append(result.Rewards, *entry)
				}
			}
			if err := rankRepo.CreateAchievement(&models.RankAchievement{
				MemberID:     member.ID,
				RankLevel:    rank.Level,
				RewardAmount: rank.RewardAmount,
				ReferenceID:  reference,
				AchievedAt:   now,
			}); err != nil {
				return err
			}
		}

		member.RankLevel = evaluation.EligibleRank
		member.UpdatedAt = now
		if err := memberRepo.Update(member); err != nil {
			return err
		}
		result.Upgraded = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Upgraded {
		metrics.RankUpgradesTotal.Inc()
		logger.Infow("rank_upgraded",
			"member_id", memberID,
			"from", result.Evaluation.CurrentRank,
			"to", result.Evaluation.EligibleRank,
			"rewards", len(result.Rewards),
		)
	}
	s.invalidate(ctx, memberID)
	return result, nil
}

// EvaluateChain 购买后评估会员本人及其推荐链（有深度上限）
func (s *RankService) EvaluateChain(ctx context.Context, memberID uint) ([]RankApplyResult, error) {
	chain, err := walkSponsorChain(ctx, s.memberRepo, memberID, s.settings.MaxWalkDepth)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(chain)+1)
	ids = append(ids, memberID)
	for _, sponsor := range chain {
		ids = append(ids, sponsor.ID)
	}
	results := make([]RankApplyResult, 0, len(ids))
	for _, id := range ids {
		applied, err := s.EvaluateAndApply(ctx, id)
		if err != nil {
			if errors.Is(err, ErrConfigurationMissing) || ctx.Err() != nil {
				return results, err
			}
			logger.Errorw("rank_chain_evaluate_failed", "member_id", id, "origin_member_id", memberID, "error", err)
			continue
		}
		results = append(results, *applied)
	}
	return results, nil
}

// EvaluateAll 周期性全量评估
func (s *RankService) EvaluateAll(ctx context.Context) (*RankSweepReport, error) {
	if _, err := s.ranks(); err != nil {
		return nil, err
	}
	report := &RankSweepReport{}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ids, err := s.memberRepo.ListIDsAfter(afterID, s.settings.AccrualBatchSize)
		if err != nil {
			return report, err
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]
		for _, id := range ids {
			applied, err := s.EvaluateAndApply(ctx, id)
			report.Evaluated++
			if err != nil {
				report.Failed++
				logger.Errorw("rank_sweep_member_failed", "member_id", id, "error", err)
				continue
			}
			if applied.Upgraded {
				report.Upgraded++
			}
		}
	}
	logger.Infow("rank_sweep_finished", "evaluated", report.Evaluated, "upgraded", report.Upgraded, "failed", report.Failed)
	return report, nil
}

func (s *RankService) ranks() ([]models.RankDefinition, error) {
	plan, err := s.plans.Current()
	if err != nil {
		return nil, err
	}
	if !plan.HasRanks() {
		return nil, ErrRankTableMissing
	}
	return plan.Ranks, nil
}

func (s *RankService) invalidate(ctx context.Context, memberID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, rankCacheKey(memberID)); err != nil {
		logger.Warnw("rank_status_cache_del_failed", "member_id", memberID, "error", err)
	}
}

func evaluateMember(member *models.Member, ranks []models.RankDefinition) RankEvaluation {
	eligible := 0
	for _, rank := range ranks {
		if member.DirectCount >= rank.MinDirects &&
			!member.TeamVolume.Decimal.LessThan(rank.MinTeamVolume.Decimal) &&
			!member.PersonalVolume.Decimal.LessThan(rank.MinPersonalVolume.Decimal) {
			eligible = rank.Level
		}
	}
	return RankEvaluation{
		MemberID:       member.ID,
		CurrentRank:    member.RankLevel,
		EligibleRank:   eligible,
		ShouldUpgrade:  eligible > member.RankLevel,
		DirectCount:    member.DirectCount,
		TeamVolume:     member.TeamVolume,
		PersonalVolume: member.PersonalVolume,
	}
}

func rankCacheKey(memberID uint) string {
	return fmt.Sprintf("rank:%d", memberID)
}
