package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type engineFixture struct {
	db       *gorm.DB
	settings EngineSettings

	memberRepo  *repository.GormMemberRepository
	treeRepo    *repository.GormTreeRepository
	packageRepo *repository.GormPackageRepository
	walletRepo  *repository.GormWalletRepository
	volumeRepo  *repository.GormVolumeRepository
	rankRepo    *repository.GormRankRepository

	wallet     *WalletService
	tree       *TreeService
	member     *MemberService
	commission *CommissionService
	rank       *RankService
	packages   *PackageService
	accrual    *AccrualService
	audit      *AuditService
}

func setupEngineTest(t *testing.T, plan *CompensationPlan, settings EngineSettings) *engineFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:engine_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	plans := StaticPlan{Plan: plan}
	f := &engineFixture{
		db:          db,
		settings:    settings.normalized(),
		memberRepo:  repository.NewMemberRepository(db),
		treeRepo:    repository.NewTreeRepository(db),
		packageRepo: repository.NewPackageRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		volumeRepo:  repository.NewVolumeRepository(db),
		rankRepo:    repository.NewRankRepository(db),
	}
	f.wallet = NewWalletService(f.walletRepo, f.memberRepo)
	f.tree = NewTreeService(f.treeRepo, f.memberRepo, f.settings)
	f.member = NewMemberService(f.memberRepo, f.wallet, f.tree)
	f.commission = NewCommissionService(f.memberRepo, f.treeRepo, f.packageRepo, f.volumeRepo, f.walletRepo, f.wallet, plans, f.settings)
	f.rank = NewRankService(f.memberRepo, f.rankRepo, f.wallet, plans, nil, f.settings)
	f.packages = NewPackageService(f.packageRepo, f.memberRepo, f.wallet, f.commission, f.rank, plans, f.settings)
	f.accrual = NewAccrualService(f.packageRepo, f.memberRepo, f.wallet, f.commission, nil, f.settings)
	f.audit = NewAuditService(f.walletRepo, f.treeRepo, f.memberRepo)
	return f
}

func testEngineSettings() EngineSettings {
	settings := DefaultEngineSettings()
	settings.AccrualWorkers = 1
	return settings
}

// testPlan 三代 10/5/3，单档 10% 对碰，不封顶，单一投资档位
func testPlan() *CompensationPlan {
	return &CompensationPlan{
		LevelPercents: []decimal.Decimal{
			decimal.NewFromInt(10),
			decimal.NewFromInt(5),
			decimal.NewFromInt(3),
		},
		MatchingTiers: []MatchingTier{
			{MinPairVolume: models.ZeroMoney(), Percent: decimal.NewFromInt(10)},
		},
		MatchingDailyCap: models.ZeroMoney(),
		PackageTiers: []PackageTier{
			{Name: "starter", MinPrincipal: testMoney("100"), DailyPercent: decimal.RequireFromString("0.5"), UnlockedLevels: 3},
		},
	}
}

func testMoney(value string) models.Money {
	return models.NewMoneyFromDecimal(decimal.RequireFromString(value))
}

func (f *engineFixture) enroll(t *testing.T, username string, sponsorID uint) *models.Member {
	t.Helper()
	result, err := f.member.Enroll(context.Background(), EnrollInput{Username: username, SponsorID: sponsorID})
	if err != nil {
		t.Fatalf("enroll %s failed: %v", username, err)
	}
	return result.Member
}

func (f *engineFixture) createPackage(t *testing.T, memberID uint, principal, reference string, activation time.Time) *models.Package {
	t.Helper()
	pkg, created, err := f.packages.Create(context.Background(), CreatePackageInput{
		MemberID:       memberID,
		Principal:      testMoney(principal),
		Reference:      reference,
		ActivationDate: &activation,
	})
	if err != nil {
		t.Fatalf("create package %s failed: %v", reference, err)
	}
	if !created {
		t.Fatalf("package %s should be newly created", reference)
	}
	return pkg
}

func (f *engineFixture) balance(t *testing.T, memberID uint) *WalletBalance {
	t.Helper()
	balance, err := f.wallet.GetBalance(memberID)
	if err != nil {
		t.Fatalf("get balance failed: %v", err)
	}
	return balance
}

func assertMoney(t *testing.T, label string, got models.Money, want string) {
	t.Helper()
	if !got.Decimal.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s want %s got %s", label, want, got.String())
	}
}
