package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ErrAccrualRunning 同一日期的批处理正在其他实例运行
var ErrAccrualRunning = fmt.Errorf("%w: accrual run already in progress", ErrInvalidState)

// RunLocker 分布式运行锁
type RunLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// VolumeEventHandler 业绩事件处理者
type VolumeEventHandler interface {
	OnVolumeEvent(ctx context.Context, input VolumeEventInput) (*CommissionResult, error)
}

// AccrualService 日收益计提引擎
type AccrualService struct {
	packageRepo repository.PackageRepository
	memberRepo  repository.MemberRepository
	walletSvc   *WalletService
	commission  VolumeEventHandler
	locker      RunLocker
	settings    EngineSettings
}

// AccrualFailure 单个投资包处理失败
type AccrualFailure struct {
	PackageID uint      `json:"package_id"`
	MemberID  uint      `json:"member_id"`
	Kind      ErrorKind `json:"kind"`
	Reason    string    `json:"reason"`
}

// AccrualReport 批处理报告
type AccrualReport struct {
	AsOf          string           `json:"as_of"`
	Scanned       int              `json:"scanned"`
	Credited      int              `json:"credited"`
	DaysCredited  int              `json:"days_credited"`
	Skipped       int              `json:"skipped"`
	Matured       int              `json:"matured"`
	Failed        int              `json:"failed"`
	TotalCredited models.Money     `json:"total_credited"`
	Failures      []AccrualFailure `json:"failures"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    time.Time        `json:"finished_at"`
}

type accrualOutcome struct {
	credited models.Money
	days     int
	matured  bool
	skipped  bool
}

type accrualCredit struct {
	reference string
	amount    models.Money
}

// NewAccrualService 创建日收益引擎
func NewAccrualService(
	packageRepo repository.PackageRepository,
	memberRepo repository.MemberRepository,
	walletSvc *WalletService,
	commission VolumeEventHandler,
	locker RunLocker,
	settings EngineSettings,
) *AccrualService {
	return &AccrualService{
		packageRepo: packageRepo,
		memberRepo:  memberRepo,
		walletSvc:   walletSvc,
		commission:  commission,
		locker:      locker,
		settings:    settings.normalized(),
	}
}

// RunDailyAccrual 计提截至 asOf 的日收益（含漏跑日补算）；按 (投资包, 日期) 幂等，单包失败不影响批次
func (s *AccrualService) RunDailyAccrual(ctx context.Context, asOf time.Time) (*AccrualReport, error) {
	asOfDate := s.settings.calendarDate(asOf)
	dateKey := asOfDate.Format(constants.DateLayout)

	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, "accrual:"+dateKey, s.settings.RunLockTTL)
		if err != nil {
			logger.Warnw("accrual_run_lock_failed", "as_of", dateKey, "error", err)
		} else if !acquired {
			return nil, ErrAccrualRunning
		} else {
			defer release()
		}
	}

	report := &AccrualReport{
		AsOf:          dateKey,
		TotalCredited: models.ZeroMoney(),
		Failures:      []AccrualFailure{},
		StartedAt:     time.Now(),
	}
	var mu sync.Mutex
	record := func(pkg models.Package, outcome accrualOutcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Scanned++
		switch {
		case err != nil:
			report.Failed++
			report.Failures = append(report.Failures, AccrualFailure{
				PackageID: pkg.ID,
				MemberID:  pkg.MemberID,
				Kind:      KindOf(err),
				Reason:    err.Error(),
			})
			metrics.AccrualPackagesTotal.WithLabelValues("failed").Inc()
		case outcome.skipped:
			report.Skipped++
			metrics.AccrualPackagesTotal.WithLabelValues("skipped").Inc()
		default:
			if outcome.credited.IsPositive() {
				report.Credited++
				report.DaysCredited += outcome.days
				report.TotalCredited = report.TotalCredited.Add(outcome.credited)
				metrics.AccrualPackagesTotal.WithLabelValues("credited").Inc()
			}
			if outcome.matured {
				report.Matured++
				metrics.AccrualPackagesTotal.WithLabelValues("matured").Inc()
			}
		}
	}

	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return s.finish(report), err
		}
		pkgs, err := s.packageRepo.ListActiveAfter(afterID, s.settings.AccrualBatchSize)
		if err != nil {
			return s.finish(report), err
		}
		if len(pkgs) == 0 {
			break
		}
		afterID = pkgs[len(pkgs)-1].ID

		var g errgroup.Group
		g.SetLimit(s.settings.AccrualWorkers)
		for _, pkg := range pkgs {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				outcome, err := s.accruePackage(ctx, pkg.ID, asOfDate)
				if err != nil {
					logger.Errorw("accrual_package_failed",
						"package_id", pkg.ID,
						"member_id", pkg.MemberID,
						"as_of", dateKey,
						"error", err,
					)
				}
				record(pkg, outcome, err)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return s.finish(report), err
		}
		if len(pkgs) < s.settings.AccrualBatchSize {
			break
		}
	}

	s.finish(report)
	metrics.AccrualRunDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
	logger.Infow("accrual_run_finished",
		"as_of", report.AsOf,
		"scanned", report.Scanned,
		"credited", report.Credited,
		"days_credited", report.DaysCredited,
		"skipped", report.Skipped,
		"matured", report.Matured,
		"failed", report.Failed,
		"total_credited", report.TotalCredited.String(),
	)
	return report, nil
}

func (s *AccrualService) finish(report *AccrualReport) *AccrualReport {
	report.FinishedAt = time.Now()
	return report
}

// accruePackage 单个投资包单事务处理：自上次计提日次日补算至 asOf，逐日到期判断、封顶截断、入账
func (s *AccrualService) accruePackage(ctx context.Context, packageID uint, asOfDate time.Time) (accrualOutcome, error) {
	outcome := accrualOutcome{credited: models.ZeroMoney()}
	var (
		memberID uint
		credits  []accrualCredit
	)

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
			outcome.skipped = true
			return nil
		}
		memberID = pkg.MemberID
		member, err := s.memberRepo.WithTx(tx).GetByID(pkg.MemberID)
		if err != nil {
			return err
		}
		if member == nil {
			return ErrMemberNotFound
		}

		start := s.settings.calendarDate(pkg.ActivationDate)
		if last, ok := s.settings.parseDateKey(pkg.LastAccruedOn); ok {
			start = last.AddDate(0, 0, 1)
		}
		if start.After(asOfDate) {
			outcome.skipped = true
			return nil
		}

	days:
		for day := start; !day.After(asOfDate); day = day.AddDate(0, 0, 1) {
			dateKey := day.Format(constants.DateLayout)
			if pkg.DurationDays > 0 && s.settings.daysBetween(pkg.ActivationDate, day) >= pkg.DurationDays {
				markMatured(pkg, day)
				outcome.matured = true
				break
			}

			credit := percentOf(pkg.Principal, pkg.DailyROIPercent)
			reachesCap := false
			if limit, capped := pkg.ROICap(); capped {
				headroom := limit.Sub(pkg.TotalROIEarned)
				if !headroom.IsPositive() {
					markMatured(pkg, day)
					outcome.matured = true
					break
				}
				if !credit.Decimal.LessThan(headroom.Decimal) {
					credit = headroom
					reachesCap = true
				}
			}
			if !credit.IsPositive() {
				break
			}

			reference := buildReference(constants.ReferencePrefixROI, pkg.ID, dateKey)
			pkgID := pkg.ID
			_, err := s.walletSvc.ApplyInTx(tx, LedgerInput{
				MemberID:  pkg.MemberID,
				Amount:    credit,
				Type:      constants.LedgerTypeROI,
				Reference: reference,
				Remark:    fmt.Sprintf("daily roi %s", dateKey),
				PackageID: &pkgID,
			})
			switch {
			case errors.Is(err, ErrAlreadyProcessed):
				pkg.LastAccruedOn = dateKey
				continue days
			case err != nil:
				return err
			}

			pkg.TotalROIEarned = pkg.TotalROIEarned.Add(credit)
			pkg.LastAccruedOn = dateKey
			outcome.credited = outcome.credited.Add(credit)
			outcome.days++
			credits = append(credits, accrualCredit{reference: reference, amount: credit})
			if reachesCap {
				markMatured(pkg, day)
				outcome.matured = true
				break
			}
		}
		if outcome.days == 0 && !outcome.matured {
			outcome.skipped = true
		}
		return repo.Update(pkg)
	})
	if err != nil {
		return accrualOutcome{credited: models.ZeroMoney()}, err
	}
	if outcome.days > 1 {
		logger.Infow("accrual_package_backfilled",
			"package_id", packageID,
			"member_id", memberID,
			"days", outcome.days,
			"as_of", asOfDate.Format(constants.DateLayout),
		)
	}

	if s.settings.CommissionOnROI && s.commission != nil {
		for _, credit := range credits {
			if _, err := s.commission.OnVolumeEvent(ctx, VolumeEventInput{
				MemberID:  memberID,
				Amount:    credit.amount,
				EventType: constants.VolumeEventROI,
				Reference: credit.reference,
			}); err != nil {
				logger.Errorw("accrual_roi_commission_failed",
					"package_id", packageID,
					"member_id", memberID,
					"reference_id", credit.reference,
					"error", err,
				)
			}
		}
	}
	return outcome, nil
}

// markMatured 到期或封顶：停止计息，本金无违约金全额可提
func markMatured(pkg *models.Package, at time.Time) {
	maturedAt := at
	pkg.Status = constants.PackageStatusStopped
	pkg.MaturedAt = &maturedAt
	pkg.StopDate = &maturedAt
	pkg.PenaltyPercentage = decimal.Zero
	pkg.PrincipalRemaining = pkg.Principal
}
