//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.LedgerEntry{},
		&models.WalletAccount{},
		&models.VolumeEvent{},
		&models.RankAchievement{},
		&models.RankDefinition{},
		&models.Package{},
		&models.TreeNode{},
		&models.Member{},
		&models.CommissionConfig{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := models.MigrateSchema(db); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresCaseInsensitiveSearch(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	memberRepo := NewMemberRepository(db)
	member := &models.Member{Username: "RocketLeader", Status: constants.MemberStatusActive}
	if err := memberRepo.Create(member); err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	rows, total, err := memberRepo.List(MemberListFilter{Page: 1, Search: "rocket"})
	if err != nil {
		t.Fatalf("member search failed: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("member search want 1 got total=%d len=%d", total, len(rows))
	}

	walletRepo := NewWalletRepository(db)
	entry := &models.LedgerEntry{
		MemberID:    member.ID,
		Type:        constants.LedgerTypeDeposit,
		Direction:   constants.LedgerDirectionIn,
		Amount:      repoMoney("88.80"),
		ReferenceID: "DEP-Bank-001",
		Remark:      "Wire Transfer",
	}
	if err := walletRepo.CreateEntry(entry); err != nil {
		t.Fatalf("create ledger entry failed: %v", err)
	}
	_, total, err = walletRepo.ListEntries(LedgerEntryListFilter{Page: 1, Search: "wire"})
	if err != nil {
		t.Fatalf("ledger search failed: %v", err)
	}
	if total != 1 {
		t.Fatalf("ledger search want 1 got %d", total)
	}
}

func TestPostgresLedgerSums(t *testing.T) {
	db := setupPostgresIntegrationDB(t)
	walletRepo := NewWalletRepository(db)

	for _, entry := range []models.LedgerEntry{
		{MemberID: 1, Type: constants.LedgerTypeMatchingBonus, Direction: constants.LedgerDirectionIn, Amount: repoMoney("12.34"), ReferenceID: "match:pg:1"},
		{MemberID: 1, Type: constants.LedgerTypeMatchingBonus, Direction: constants.LedgerDirectionIn, Amount: repoMoney("7.66"), ReferenceID: "match:pg:2"},
		{MemberID: 1, Type: constants.LedgerTypePayout, Direction: constants.LedgerDirectionOut, Amount: repoMoney("-5"), ReferenceID: "payout:pg:1"},
	} {
		entry := entry
		if err := walletRepo.CreateEntry(&entry); err != nil {
			t.Fatalf("create entry %s failed: %v", entry.ReferenceID, err)
		}
	}

	sums, err := walletRepo.SumAmountsByMember([]uint{1})
	if err != nil {
		t.Fatalf("sum amounts failed: %v", err)
	}
	if sums[1].String() != "15.00" {
		t.Fatalf("sum want 15.00 got %s", sums[1].String())
	}

	now := time.Now()
	daily, err := walletRepo.SumAmountByType(1, constants.LedgerTypeMatchingBonus, now.Add(-time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sum by type failed: %v", err)
	}
	if daily.String() != "20.00" {
		t.Fatalf("matching sum want 20.00 got %s", daily.String())
	}
}
