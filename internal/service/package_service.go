package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PackageService 投资包服务（创建、停止、提取本金、取消）
type PackageService struct {
	packageRepo repository.PackageRepository
	memberRepo  repository.MemberRepository
	walletSvc   *WalletService
	commission  VolumeEventHandler
	rankSvc     *RankService
	plans       PlanProvider
	settings    EngineSettings
}

// CreatePackageInput 创建投资包输入
type CreatePackageInput struct {
	MemberID       uint         `json:"member_id"`
	Principal      models.Money `json:"principal"`
	Reference      string       `json:"reference"`
	ActivationDate *time.Time   `json:"activation_date,omitempty"`
	FromWallet     bool         `json:"from_wallet"`
}

// PurchaseResult 购买结果
type PurchaseResult struct {
	Package    *models.Package   `json:"package"`
	Created    bool              `json:"created"`
	Commission *CommissionResult `json:"commission,omitempty"`
	Ranks      []RankApplyResult `json:"ranks,omitempty"`
}

// StopResult 停止结果（供调用方展示违约金）
type StopResult struct {
	PackageID          uint            `json:"package_id"`
	Principal          models.Money    `json:"principal"`
	DaysActive         int             `json:"days_active"`
	PenaltyPercentage  decimal.Decimal `json:"penalty_percentage"`
	PenaltyAmount      models.Money    `json:"penalty_amount"`
	PrincipalRemaining models.Money    `json:"principal_remaining"`
	StopDate           time.Time       `json:"stop_date"`
	Status             string          `json:"status"`
}

// WithdrawResult 本金提取结果
type WithdrawResult struct {
	PackageID uint                `json:"package_id"`
	Amount    models.Money        `json:"amount"`
	Entry     *models.LedgerEntry `json:"entry,omitempty"`
	Status    string              `json:"status"`
}

// NewPackageService 创建投资包服务
func NewPackageService(
	packageRepo repository.PackageRepository,
	memberRepo repository.MemberRepository,
	walletSvc *WalletService,
	commission VolumeEventHandler,
	rankSvc *RankService,
	plans PlanProvider,
	settings EngineSettings,
) *PackageService {
	return &PackageService{
		packageRepo: packageRepo,
		memberRepo:  memberRepo,
		walletSvc:   walletSvc,
		commission:  commission,
		rankSvc:     rankSvc,
		plans:       plans,
		settings:    settings.normalized(),
	}
}

// Create 登记投资包（按参考号幂等），FromWallet 时同一事务内扣减钱包
func (s *PackageService) Create(ctx context.Context, input CreatePackageInput) (*models.Package, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if input.MemberID == 0 {
		return nil, false, ErrInvalidMemberID
	}
	principal := models.NewMoneyFromDecimal(input.Principal.Decimal)
	if !principal.IsPositive() {
		return nil, false, ErrInvalidAmount
	}
	reference := strings.TrimSpace(input.Reference)
	if reference == "" {
		reference = uuid.NewString()
	}
	plan, err := s.plans.Current()
	if err != nil {
		return nil, false, err
	}
	tier, err := s.resolveTier(plan, principal)
	if err != nil {
		return nil, false, err
	}

	var pkg *models.Package
	created := false
	err = s.packageRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.packageRepo.WithTx(tx)
		memberRepo := s.memberRepo.WithTx(tx)

		existing, err := repo.GetByReference(reference)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.MemberID != input.MemberID || !existing.Principal.Decimal.Equal(principal.Decimal) {
				return ErrReferenceConflict
			}
			pkg = existing
			return nil
		}

		member, err := memberRepo.GetByIDForUpdate(input.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}
		if member.Status != constants.MemberStatusActive {
			return ErrMemberInactive
		}

		now := time.Now()
		activation := now
		if input.ActivationDate != nil && !input.ActivationDate.IsZero() {
			activation = *input.ActivationDate
		}
		pkg = &models.Package{
			MemberID:           input.MemberID,
			Reference:          reference,
			TierName:           tier.Name,
			UnlockedLevels:     tier.UnlockedLevels,
			Principal:          principal,
			DailyROIPercent:    tier.DailyPercent,
			DurationDays:       s.settings.packageDurationDays(),
			MaxROIMultiple:     s.settings.packageROIMultiple(),
			Status:             constants.PackageStatusActive,
			TotalROIEarned:     models.ZeroMoney(),
			ActivationDate:     activation,
			PenaltyPercentage:  decimal.Zero,
			PrincipalRemaining: models.ZeroMoney(),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := repo.Create(pkg); err != nil {
			return err
		}
		if input.FromWallet {
			pkgID := pkg.ID
			if _, err := s.walletSvc.ApplyInTx(tx, LedgerInput{
				MemberID:  input.MemberID,
				Amount:    principal,
				Type:      constants.LedgerTypePackagePurchase,
				Direction: constants.LedgerDirectionOut,
				Reference: buildReference(constants.ReferencePrefixPurchase, reference),
				Remark:    fmt.Sprintf("package %s purchase", tier.Name),
				PackageID: &pkgID,
			}); err != nil {
				return err
			}
		}
		if err := memberRepo.AddInvestment(input.MemberID, principal); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		logger.Infow("package_created",
			"package_id", pkg.ID,
			"member_id", pkg.MemberID,
			"tier", pkg.TierName,
			"principal", pkg.Principal.String(),
			"reference", pkg.Reference,
		)
	}
	return pkg, created, nil
}

// Purchase 登记投资包并同步触发奖金引擎与推荐链等级评估
func (s *PackageService) Purchase(ctx context.Context, input CreatePackageInput) (*PurchaseResult, error) {
	pkg, created, err := s.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	result := &PurchaseResult{Package: pkg, Created: created}
	if s.commission != nil {
		commission, err := s.commission.OnVolumeEvent(ctx, VolumeEventInput{
			MemberID:  pkg.MemberID,
			Amount:    pkg.Principal,
			EventType: constants.VolumeEventPurchase,
			Reference: buildReference(constants.ReferencePrefixPurchase, pkg.Reference),
		})
		if err != nil {
			logger.Errorw("package_purchase_commission_failed", "package_id", pkg.ID, "member_id", pkg.MemberID, "error", err)
			return result, err
		}
		result.Commission = commission
	}
	if s.rankSvc != nil {
		ranks, err := s.rankSvc.EvaluateChain(ctx, pkg.MemberID)
		if err != nil && !errors.Is(err, ErrRankTableMissing) {
			logger.Errorw("package_purchase_rank_failed", "package_id", pkg.ID, "member_id", pkg.MemberID, "error", err)
			return result, err
		}
		result.Ranks = ranks
	}
	return result, nil
}

// Stop 仅 active 可停止：激活 early_window_days 天内按高比例扣违约金，否则按低比例
func (s *PackageService) Stop(ctx context.Context, packageID uint, now time.Time) (*StopResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if now.IsZero() {
		now = time.Now()
	}
	var result *StopResult
	err := s.packageRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.packageRepo.WithTx(tx)
		pkg, err := repo.GetByIDForUpdate(packageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return ErrPackageNotFound
		}
		if pkg.Status != constants.PackageStatusActive {
			return ErrPackageNotActive
		}
		days := s.settings.daysBetween(pkg.ActivationDate, now)
		if days < 0 {
			days = 0
		}
		penalty := s.settings.LatePenaltyPercent
		if days <= s.settings.EarlyWindowDays {
			penalty = s.settings.EarlyPenaltyPercent
		}
		penaltyAmount := percentOf(pkg.Principal, penalty)
		remaining := pkg.Principal.Sub(penaltyAmount)
		if remaining.IsNegative() {
			remaining = models.ZeroMoney()
		}

		stopAt := now
		pkg.Status = constants.PackageStatusStopped
		pkg.StopDate = &stopAt
		pkg.PenaltyPercentage = penalty
		pkg.PrincipalRemaining = remaining
		pkg.UpdatedAt = time.Now()
		if err := repo.Update(pkg); err != nil {
			return err
		}
		result = &StopResult{
			PackageID:          pkg.ID,
			Principal:          pkg.Principal,
			DaysActive:         days,
			PenaltyPercentage:  penalty,
			PenaltyAmount:      penaltyAmount,
			PrincipalRemaining: remaining,
			StopDate:           stopAt,
			Status:             pkg.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("package_stopped",
		"package_id", packageID,
		"days_active", result.DaysActive,
		"penalty_percentage", result.PenaltyPercentage.String(),
		"principal_remaining", result.PrincipalRemaining.String(),
	)
	return result, nil
}

// WithdrawPrincipal 仅 stopped 可提取：剩余本金入账并置为 withdrawn（同一事务）
func (s *PackageService) WithdrawPrincipal(ctx context.Context, packageID uint) (*WithdrawResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *WithdrawResult
	err := s.packageRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.packageRepo.WithTx(tx)
		pkg, err := repo.GetByIDForUpdate(packageID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return ErrPackageNotFound
		}
		if pkg.Status != constants.PackageStatusStopped {
			return ErrPackageNotStopped
		}
		result = &WithdrawResult{PackageID: pkg.ID, Amount: pkg.PrincipalRemaining}
		if pkg.PrincipalRemaining.IsPositive() {
			pkgID := pkg.ID
			entry, err := s.walletSvc.ApplyInTx(tx, LedgerInput{
				MemberID:  pkg.MemberID,
				Amount:    pkg.PrincipalRemaining,
				Type:      constants.LedgerTypeWithdrawal,
				Reference: buildReference(constants.ReferencePrefixPrincipal, pkg.ID),
				Remark:    "principal withdrawal",
				PackageID: &pkgID,
			})
			if err != nil {
				return err
			}
			result.Entry = entry
		}
		pkg.Status = constants.PackageStatusWithdrawn
		pkg.UpdatedAt = time.Now()
		if err := repo.Update(pkg); err != nil {
			return err
		}
		result.Status = pkg.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("package_principal_withdrawn", "package_id", packageID, "amount", result.Amount.String())
	return result, nil
}

// Cancel 管理员取消（仅 active）
func (s *PackageService) Cancel(ctx context.Context, packageID uint, reason string) (*models.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pkg *models.Package
	err := s.packageRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.packageRepo.WithTx(tx)
		found, err := repo.GetByIDForUpdate(packageID)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrPackageNotFound
		}
		if found.Status != constants.PackageStatusActive {
			return ErrPackageNotActive
		}
		now := time.Now()
		found.Status = constants.PackageStatusCancelled
		found.StopDate = &now
		found.CancelReason = cleanLedgerRemark(reason, "cancelled by admin")
		found.UpdatedAt = now
		if err := repo.Update(found); err != nil {
			return err
		}
		pkg = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Warnw("package_cancelled", "package_id", packageID, "reason", pkg.CancelReason)
	return pkg, nil
}

// Get 获取投资包
func (s *PackageService) Get(packageID uint) (*models.Package, error) {
	pkg, err := s.packageRepo.GetByID(packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// ListByMember 获取会员投资包
func (s *PackageService) ListByMember(memberID uint) ([]models.Package, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return s.packageRepo.ListByMember(memberID)
}

// List 分页查询投资包
func (s *PackageService) List(filter repository.PackageListFilter) ([]models.Package, int64, error) {
	return s.packageRepo.List(filter)
}

func (s *PackageService) resolveTier(plan *CompensationPlan, principal models.Money) (PackageTier, error) {
	if len(plan.PackageTiers) == 0 {
		return PackageTier{
			Name:           "standard",
			MinPrincipal:   models.ZeroMoney(),
			DailyPercent:   s.settings.DefaultDailyPercent,
			UnlockedLevels: len(plan.LevelPercents),
		}, nil
	}
	tier, ok := plan.TierForPrincipal(principal)
	if !ok {
		return PackageTier{}, ErrPrincipalBelowMinimum
	}
	if tier.DailyPercent.IsZero() {
		tier.DailyPercent = s.settings.DefaultDailyPercent
	}
	return tier, nil
}
