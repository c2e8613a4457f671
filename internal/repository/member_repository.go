package repository

import (
	"errors"
	"strings"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemberRepository 会员数据访问接口
type MemberRepository interface {
	GetByID(id uint) (*models.Member, error)
	GetByIDForUpdate(id uint) (*models.Member, error)
	GetByIDs(ids []uint) ([]models.Member, error)
	GetByUsername(username string) (*models.Member, error)
	Create(member *models.Member) error
	Update(member *models.Member) error
	IncrementDirectCount(id uint, delta int) error
	AddPersonalVolume(id uint, amount models.Money) error
	AddTeamVolume(ids []uint, amount models.Money) error
	AddInvestment(id uint, amount models.Money) error
	AddEarnings(id uint, amount models.Money) error
	ListIDsAfter(afterID uint, limit int) ([]uint, error)
	CountSponsored() (map[uint]int64, error)
	List(filter MemberListFilter) ([]models.Member, int64, error)
	WithTx(tx *gorm.DB) MemberRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormMemberRepository GORM 会员仓储实现
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// Transaction 执行事务
func (r *GormMemberRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取会员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDForUpdate 按ID加锁获取会员
func (r *GormMemberRepository) GetByIDForUpdate(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByIDs 批量获取会员
func (r *GormMemberRepository) GetByIDs(ids []uint) ([]models.Member, error) {
	if len(ids) == 0 {
		return []models.Member{}, nil
	}
	var members []models.Member
	if err := r.db.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

// GetByUsername 按用户名获取会员
func (r *GormMemberRepository) GetByUsername(username string) (*models.Member, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Where("username = ?", username).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// Create 创建会员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// Update 更新会员
func (r *GormMemberRepository) Update(member *models.Member) error {
	return r.db.Save(member).Error
}

// IncrementDirectCount 直推人数增量更新
func (r *GormMemberRepository) IncrementDirectCount(id uint, delta int) error {
	if id == 0 || delta == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).Where("id = ?", id).
		UpdateColumn("direct_count", gorm.Expr("direct_count + ?", delta)).Error
}

// AddPersonalVolume 累加个人业绩
func (r *GormMemberRepository) AddPersonalVolume(id uint, amount models.Money) error {
	return r.addColumn([]uint{id}, "personal_volume", amount)
}

// AddTeamVolume 批量累加团队业绩
func (r *GormMemberRepository) AddTeamVolume(ids []uint, amount models.Money) error {
	return r.addColumn(ids, "team_volume", amount)
}

// AddInvestment 累加投资总额
func (r *GormMemberRepository) AddInvestment(id uint, amount models.Money) error {
	return r.addColumn([]uint{id}, "total_investment", amount)
}

// AddEarnings 累加收益总额
func (r *GormMemberRepository) AddEarnings(id uint, amount models.Money) error {
	return r.addColumn([]uint{id}, "total_earnings", amount)
}

func (r *GormMemberRepository) addColumn(ids []uint, column string, amount models.Money) error {
	filtered := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 || amount.IsZero() {
		return nil
	}
	return r.db.Model(&models.Member{}).Where("id IN ?", filtered).
		UpdateColumn(column, gorm.Expr(column+" + ?", amount.String())).Error
}

// ListIDsAfter 按ID游标分页获取会员ID
func (r *GormMemberRepository) ListIDsAfter(afterID uint, limit int) ([]uint, error) {
	var ids []uint
	if err := applyAfterID(r.db.Model(&models.Member{}), afterID, limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountSponsored 统计每个直推人的实际直推人数
func (r *GormMemberRepository) CountSponsored() (map[uint]int64, error) {
	type row struct {
		SponsorID uint
		Total     int64
	}
	var rows []row
	if err := r.db.Model(&models.Member{}).
		Select("sponsor_id, COUNT(*) AS total").
		Where("sponsor_id IS NOT NULL").
		Group("sponsor_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]int64, len(rows))
	for _, item := range rows {
		result[item.SponsorID] = item.Total
	}
	return result, nil
}

// List 分页查询会员
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{})
	if filter.SponsorID != 0 {
		query = query.Where("sponsor_id = ?", filter.SponsorID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = applyLikeSearch(query, filter.Search, "username")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var members []models.Member
	if err := query.Order("id asc").Find(&members).Error; err != nil {
		return nil, 0, err
	}
	return members, total, nil
}
