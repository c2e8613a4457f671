package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionService 奖金引擎（层级奖与对碰奖）
type CommissionService struct {
	memberRepo  repository.MemberRepository
	treeRepo    repository.TreeRepository
	packageRepo repository.PackageRepository
	volumeRepo  repository.VolumeRepository
	walletRepo  repository.WalletRepository
	walletSvc   *WalletService
	plans       PlanProvider
	settings    EngineSettings
	now         func() time.Time
}

// VolumeEventInput 业绩事件
type VolumeEventInput struct {
	MemberID  uint         `json:"member_id"`
	Amount    models.Money `json:"amount"`
	EventType string       `json:"event_type"`
	Reference string       `json:"reference"`
}

// CommissionCredit 单笔奖金
type CommissionCredit struct {
	MemberID         uint         `json:"member_id"`
	Level            int          `json:"level,omitempty"`
	Amount           models.Money `json:"amount"`
	Matched          models.Money `json:"matched,omitempty"`
	Reference        string       `json:"reference"`
	AlreadyProcessed bool         `json:"already_processed,omitempty"`
}

// CommissionFailure 单笔奖金失败（可人工重放）
type CommissionFailure struct {
	MemberID  uint      `json:"member_id"`
	Level     int       `json:"level,omitempty"`
	Reference string    `json:"reference"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

// CommissionResult 业绩事件处理结果
type CommissionResult struct {
	EventReference  string              `json:"event_reference"`
	VolumeApplied   bool                `json:"volume_applied"`
	LevelCredits    []CommissionCredit  `json:"level_credits"`
	MatchingCredits []CommissionCredit  `json:"matching_credits"`
	Failures        []CommissionFailure `json:"failures"`
}

// NewCommissionService 创建奖金引擎
func NewCommissionService(
	memberRepo repository.MemberRepository,
	treeRepo repository.TreeRepository,
	packageRepo repository.PackageRepository,
	volumeRepo repository.VolumeRepository,
	walletRepo repository.WalletRepository,
	walletSvc *WalletService,
	plans PlanProvider,
	settings EngineSettings,
) *CommissionService {
	return &CommissionService{
		memberRepo:  memberRepo,
		treeRepo:    treeRepo,
		packageRepo: packageRepo,
		volumeRepo:  volumeRepo,
		walletRepo:  walletRepo,
		walletSvc:   walletSvc,
		plans:       plans,
		settings:    settings.normalized(),
		now:         time.Now,
	}
}

// OnVolumeEvent 处理一次业绩事件：入树业绩、层级奖、对碰奖
func (s *CommissionService) OnVolumeEvent(ctx context.Context, input VolumeEventInput) (*CommissionResult, error) {
	input, err := normalizeVolumeEvent(input)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.Current()
	if err != nil {
		return nil, err
	}
	member, err := s.memberRepo.GetByID(input.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	result := &CommissionResult{
		EventReference:  input.Reference,
		LevelCredits:    []CommissionCredit{},
		MatchingCredits: []CommissionCredit{},
		Failures:        []CommissionFailure{},
	}
	binary := s.countsTowardBinary(input.EventType)

	applied, err := s.applyVolume(ctx, input, binary)
	if err != nil {
		return nil, err
	}
	result.VolumeApplied = applied

	s.payLevelIncome(ctx, plan, input, result)

	if binary {
		ancestors, err := walkAncestors(ctx, s.treeRepo, input.MemberID, s.settings.MaxWalkDepth)
		if err != nil && !errors.Is(err, ErrTreeNodeNotFound) {
			return result, err
		}
		for _, step := range ancestors {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			credit, err := s.matchAncestor(plan, step.MemberID, input.Reference)
			if err != nil {
				reference := buildReference(constants.ReferencePrefixMatching, input.Reference, step.MemberID)
				logger.Errorw("commission_matching_credit_failed",
					"member_id", step.MemberID,
					"reference_id", reference,
					"event_reference", input.Reference,
					"error", err,
				)
				metrics.CommissionCreditsTotal.WithLabelValues("matching", "failed").Inc()
				result.Failures = append(result.Failures, CommissionFailure{
					MemberID:  step.MemberID,
					Reference: reference,
					Kind:      KindOf(err),
					Reason:    err.Error(),
				})
				continue
			}
			if credit != nil {
				result.MatchingCredits = append(result.MatchingCredits, *credit)
			}
		}
	}

	logger.Infow("commission_volume_event_processed",
		"member_id", input.MemberID,
		"event_type", input.EventType,
		"event_reference", input.Reference,
		"amount", input.Amount.String(),
		"volume_applied", result.VolumeApplied,
		"level_credits", len(result.LevelCredits),
		"matching_credits", len(result.MatchingCredits),
		"failures", len(result.Failures),
	)
	return result, nil
}

func (s *CommissionService) countsTowardBinary(eventType string) bool {
	return eventType == constants.VolumeEventPurchase || s.settings.BinaryVolumeOnROI
}

// applyVolume 单事务内记录业绩事件并累加祖先区业绩、推荐链团队业绩，参考号已存在时跳过
func (s *CommissionService) applyVolume(ctx context.Context, input VolumeEventInput, binary bool) (bool, error) {
	applied := false
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		volumeRepo := s.volumeRepo.WithTx(tx)
		exists, err := volumeRepo.GetByReference(input.Reference)
		if err != nil {
			return err
		}
		if exists != nil {
			return nil
		}
		if err := volumeRepo.Create(&models.VolumeEvent{
			Reference: input.Reference,
			MemberID:  input.MemberID,
			Amount:    input.Amount,
			EventType: input.EventType,
		}); err != nil {
			if isDuplicateKeyError(err) {
				return nil
			}
			return err
		}

		if binary {
			treeRepo := s.treeRepo.WithTx(tx)
			steps, err := walkAncestors(ctx, treeRepo, input.MemberID, s.settings.MaxWalkDepth)
			if err != nil && !errors.Is(err, ErrTreeNodeNotFound) {
				return err
			}
			if errors.Is(err, ErrTreeNodeNotFound) {
				logger.Warnw("commission_volume_member_unplaced", "member_id", input.MemberID, "event_reference", input.Reference)
			}
			for _, step := range steps {
				if err := treeRepo.AddSideVolume(step.MemberID, step.Side, input.Amount); err != nil {
					return err
				}
			}
		}

		if input.EventType == constants.VolumeEventPurchase {
			memberRepo := s.memberRepo.WithTx(tx)
			if err := memberRepo.AddPersonalVolume(input.MemberID, input.Amount); err != nil {
				return err
			}
			chain, err := walkSponsorChain(ctx, memberRepo, input.MemberID, s.settings.MaxWalkDepth)
			if err != nil {
				return err
			}
			ids := make([]uint, 0, len(chain))
			for _, sponsor := range chain {
				ids = append(ids, sponsor.ID)
			}
			if err := memberRepo.AddTeamVolume(ids, input.Amount); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

// payLevelIncome 沿推荐链逐代发放层级奖，每笔独立事务，失败记录后继续
func (s *CommissionService) payLevelIncome(ctx context.Context, plan *CompensationPlan, input VolumeEventInput, result *CommissionResult) {
	depth := len(plan.LevelPercents)
	if depth > s.settings.MaxWalkDepth {
		depth = s.settings.MaxWalkDepth
	}
	chain, err := walkSponsorChain(ctx, s.memberRepo, input.MemberID, depth)
	if err != nil {
		logger.Errorw("commission_sponsor_chain_failed", "member_id", input.MemberID, "event_reference", input.Reference, "error", err)
		result.Failures = append(result.Failures, CommissionFailure{
			MemberID:  input.MemberID,
			Reference: input.Reference,
			Kind:      KindOf(err),
			Reason:    err.Error(),
		})
		return
	}
	ids := make([]uint, 0, len(chain))
	for _, sponsor := range chain {
		ids = append(ids, sponsor.ID)
	}
	unlocks, err := s.packageRepo.MaxUnlockedLevels(ids)
	if err != nil {
		logger.Errorw("commission_unlocks_load_failed", "member_id", input.MemberID, "event_reference", input.Reference, "error", err)
		result.Failures = append(result.Failures, CommissionFailure{
			MemberID:  input.MemberID,
			Reference: input.Reference,
			Kind:      KindOf(err),
			Reason:    err.Error(),
		})
		return
	}

	sourceID := input.MemberID
	for i, sponsor := range chain {
		level := i + 1
		percent, ok := plan.LevelPercent(level)
		if !ok {
			break
		}
		if sponsor.Status != constants.MemberStatusActive {
			logger.Debugw("commission_level_skipped_inactive", "member_id", sponsor.ID, "level", level)
			metrics.CommissionCreditsTotal.WithLabelValues("level", "skipped").Inc()
			continue
		}
		if unlocks[sponsor.ID] < level {
			logger.Debugw("commission_level_skipped_locked", "member_id", sponsor.ID, "level", level, "unlocked", unlocks[sponsor.ID])
			metrics.CommissionCreditsTotal.WithLabelValues("level", "skipped").Inc()
			continue
		}
		amount := percentOf(input.Amount, percent)
		if !amount.IsPositive() {
			continue
		}
		reference := buildReference(constants.ReferencePrefixLevel, input.Reference, level)
		src := sourceID
		entry, err := s.walletSvc.Credit(ctx, LedgerInput{
			MemberID:       sponsor.ID,
			Amount:         amount,
			Type:           constants.LedgerTypeLevelIncome,
			Reference:      reference,
			Remark:         fmt.Sprintf("level %d income from member %d", level, input.MemberID),
			SourceMemberID: &src,
			Level:          level,
		})
		if errors.Is(err, ErrAlreadyProcessed) {
			paid := amount
			if entry != nil {
				paid = entry.Amount
			}
			result.LevelCredits = append(result.LevelCredits, CommissionCredit{
				MemberID:         sponsor.ID,
				Level:            level,
				Amount:           paid,
				Reference:        reference,
				AlreadyProcessed: true,
			})
			continue
		}
		if err != nil {
			logger.Errorw("commission_level_credit_failed",
				"member_id", sponsor.ID,
				"level", level,
				"reference_id", reference,
				"event_reference", input.Reference,
				"error", err,
			)
			metrics.CommissionCreditsTotal.WithLabelValues("level", "failed").Inc()
			result.Failures = append(result.Failures, CommissionFailure{
				MemberID:  sponsor.ID,
				Level:     level,
				Reference: reference,
				Kind:      KindOf(err),
				Reason:    err.Error(),
			})
			continue
		}
		metrics.CommissionCreditsTotal.WithLabelValues("level", "credited").Inc()
		result.LevelCredits = append(result.LevelCredits, CommissionCredit{
			MemberID:  sponsor.ID,
			Level:     level,
			Amount:    entry.Amount,
			Reference: reference,
		})
	}
}

// matchAncestor 单事务内计算对碰奖、扣减两区业绩并入账
func (s *CommissionService) matchAncestor(plan *CompensationPlan, memberID uint, eventReference string) (*CommissionCredit, error) {
	reference := buildReference(constants.ReferencePrefixMatching, eventReference, memberID)
	var credit *CommissionCredit
	err := s.treeRepo.Transaction(func(tx *gorm.DB) error {
		walletRepo := s.walletRepo.WithTx(tx)
		treeRepo := s.treeRepo.WithTx(tx)

		exists, err := walletRepo.GetEntryByReference(reference)
		if err != nil {
			return err
		}
		if exists != nil {
			credit = &CommissionCredit{MemberID: memberID, Amount: exists.Amount, Reference: reference, AlreadyProcessed: true}
			return nil
		}

		node, err := treeRepo.GetByMemberIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if node == nil {
			return ErrTreeNodeNotFound
		}
		matchable := node.Matchable()
		if !matchable.IsPositive() {
			return nil
		}
		tier, ok := plan.MatchingTierFor(matchable)
		if !ok {
			return nil
		}
		member, err := s.memberRepo.WithTx(tx).GetByID(memberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Status != constants.MemberStatusActive {
			logger.Debugw("commission_matching_skipped_inactive", "member_id", memberID, "matchable", matchable.String())
			return nil
		}

		bonus := percentOf(matchable, tier.Percent)
		if plan.MatchingDailyCap.IsPositive() {
			now := s.now()
			dayStart := s.settings.calendarDate(now)
			paid, err := walletRepo.SumAmountByType(memberID, constants.LedgerTypeMatchingBonus, dayStart, dayStart.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			remaining := plan.MatchingDailyCap.Sub(paid)
			if !remaining.IsPositive() {
				bonus = models.ZeroMoney()
			} else {
				bonus = models.MinMoney(bonus, remaining)
			}
		}

		if err := treeRepo.ConsumeMatched(memberID, matchable); err != nil {
			return err
		}
		credit = &CommissionCredit{MemberID: memberID, Amount: bonus, Matched: matchable, Reference: reference}
		if !bonus.IsPositive() {
			logger.Infow("commission_matching_capped", "member_id", memberID, "matched", matchable.String(), "reference_id", reference)
			return nil
		}
		_, err = s.walletSvc.ApplyInTx(tx, LedgerInput{
			MemberID:  memberID,
			Amount:    bonus,
			Type:      constants.LedgerTypeMatchingBonus,
			Reference: reference,
			Remark:    fmt.Sprintf("matching %s at %s%%", matchable.String(), tier.Percent.String()),
		})
		return err
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		return &CommissionCredit{MemberID: memberID, Reference: reference, AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, err
	}
	if credit != nil && !credit.AlreadyProcessed {
		metrics.CommissionCreditsTotal.WithLabelValues("matching", "credited").Inc()
	}
	return credit, nil
}

func normalizeVolumeEvent(input VolumeEventInput) (VolumeEventInput, error) {
	if input.MemberID == 0 {
		return input, ErrInvalidMemberID
	}
	input.Amount = models.NewMoneyFromDecimal(input.Amount.Decimal)
	if !input.Amount.IsPositive() {
		return input, ErrInvalidAmount
	}
	input.Reference = strings.TrimSpace(input.Reference)
	if input.Reference == "" {
		return input, ErrInvalidReference
	}
	input.EventType = strings.ToLower(strings.TrimSpace(input.EventType))
	switch input.EventType {
	case constants.VolumeEventPurchase, constants.VolumeEventROI:
	default:
		return input, ErrInvalidEventType
	}
	return input, nil
}

// percentOf amount * percent / 100，保留 2 位
func percentOf(amount models.Money, percent decimal.Decimal) models.Money {
	return amount.Percent(percent)
}
