package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletRepository 钱包数据访问接口
type WalletRepository interface {
	GetAccountByMemberID(memberID uint) (*models.WalletAccount, error)
	GetAccountByMemberIDForUpdate(memberID uint) (*models.WalletAccount, error)
	CreateAccount(account *models.WalletAccount) error
	UpdateAccount(account *models.WalletAccount) error
	ListAccountsAfter(afterID uint, limit int) ([]models.WalletAccount, error)
	CreateEntry(entry *models.LedgerEntry) error
	GetEntryByReference(reference string) (*models.LedgerEntry, error)
	ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error)
	SumAmountByType(memberID uint, entryType string, from, to time.Time) (models.Money, error)
	SumAmountsByMember(memberIDs []uint) (map[uint]models.Money, error)
	WithTx(tx *gorm.DB) WalletRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormWalletRepository GORM 钱包仓储实现
type GormWalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *GormWalletRepository {
	return &GormWalletRepository{db: db}
}

// WithTx 绑定事务
func (r *GormWalletRepository) WithTx(tx *gorm.DB) WalletRepository {
	if tx == nil {
		return r
	}
	return &GormWalletRepository{db: tx}
}

// Transaction 执行事务
func (r *GormWalletRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetAccountByMemberID 按会员ID获取钱包账户
func (r *GormWalletRepository) GetAccountByMemberID(memberID uint) (*models.WalletAccount, error) {
	if memberID == 0 {
		return nil, nil
	}
	var account models.WalletAccount
	if err := r.db.Where("member_id = ?", memberID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetAccountByMemberIDForUpdate 按会员ID加锁获取钱包账户
func (r *GormWalletRepository) GetAccountByMemberIDForUpdate(memberID uint) (*models.WalletAccount, error) {
	if memberID == 0 {
		return nil, nil
	}
	var account models.WalletAccount
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// CreateAccount 创建钱包账户
func (r *GormWalletRepository) CreateAccount(account *models.WalletAccount) error {
	return r.db.Create(account).Error
}

// UpdateAccount 更新钱包账户
func (r *GormWalletRepository) UpdateAccount(account *models.WalletAccount) error {
	return r.db.Save(account).Error
}

// ListAccountsAfter 按ID游标分页获取钱包账户
func (r *GormWalletRepository) ListAccountsAfter(afterID uint, limit int) ([]models.WalletAccount, error) {
	var accounts []models.WalletAccount
	if err := applyAfterID(r.db, afterID, limit).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// CreateEntry 写入钱包流水
func (r *GormWalletRepository) CreateEntry(entry *models.LedgerEntry) error {
	return r.db.Create(entry).Error
}

// GetEntryByReference 按参考号获取流水
func (r *GormWalletRepository) GetEntryByReference(reference string) (*models.LedgerEntry, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var entry models.LedgerEntry
	if err := r.db.Where("reference_id = ?", reference).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListEntries 分页查询钱包流水
func (r *GormWalletRepository) ListEntries(filter LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	query := r.db.Model(&models.LedgerEntry{})
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.PackageID != 0 {
		query = query.Where("package_id = ?", filter.PackageID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	query = applyLikeSearch(query, filter.Search, "reference_id", "remark")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.LedgerEntry
	if err := query.Order("id desc").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// SumAmountByType 统计时间区间 [from, to) 内某类流水的金额合计
func (r *GormWalletRepository) SumAmountByType(memberID uint, entryType string, from, to time.Time) (models.Money, error) {
	var total models.Money
	var raw *string
	row := r.db.Model(&models.LedgerEntry{}).
		Select("CAST(COALESCE(SUM(amount), 0) AS TEXT)").
		Where("member_id = ? AND type = ? AND created_at >= ? AND created_at < ?", memberID, entryType, from.Local(), to.Local()).
		Row()
	if err := row.Scan(&raw); err != nil {
		return total, err
	}
	if raw == nil {
		return models.ZeroMoney(), nil
	}
	if err := total.Scan(*raw); err != nil {
		return models.ZeroMoney(), err
	}
	return total, nil
}

// SumAmountsByMember 按会员汇总流水金额
func (r *GormWalletRepository) SumAmountsByMember(memberIDs []uint) (map[uint]models.Money, error) {
	result := make(map[uint]models.Money, len(memberIDs))
	if len(memberIDs) == 0 {
		return result, nil
	}
	type row struct {
		MemberID uint
		Total    string
	}
	var rows []row
	if err := r.db.Model(&models.LedgerEntry{}).
		Select("member_id, CAST(COALESCE(SUM(amount), 0) AS TEXT) AS total").
		Where("member_id IN ?", memberIDs).
		Group("member_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, item := range rows {
		var sum models.Money
		if err := sum.Scan(item.Total); err != nil {
			return nil, err
		}
		result[item.MemberID] = sum
	}
	return result, nil
}
