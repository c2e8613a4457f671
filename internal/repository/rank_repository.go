package repository

import (
	"errors"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
)

// RankRepository 等级数据访问接口
type RankRepository interface {
	ListDefinitions() ([]models.RankDefinition, error)
	GetAchievement(memberID uint, level int) (*models.RankAchievement, error)
	ListAchievements(memberID uint) ([]models.RankAchievement, error)
	CreateAchievement(achievement *models.RankAchievement) error
	WithTx(tx *gorm.DB) RankRepository
}

// GormRankRepository GORM 等级仓储实现
type GormRankRepository struct {
	db *gorm.DB
}

// NewRankRepository 创建等级仓储
func NewRankRepository(db *gorm.DB) *GormRankRepository {
	return &GormRankRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRankRepository) WithTx(tx *gorm.DB) RankRepository {
	if tx == nil {
		return r
	}
	return &GormRankRepository{db: tx}
}

// ListDefinitions 按等级升序获取等级定义
func (r *GormRankRepository) ListDefinitions() ([]models.RankDefinition, error) {
	var ranks []models.RankDefinition
	if err := r.db.Order("level asc").Find(&ranks).Error; err != nil {
		return nil, err
	}
	return ranks, nil
}

// GetAchievement 获取会员某等级的达成记录
func (r *GormRankRepository) GetAchievement(memberID uint, level int) (*models.RankAchievement, error) {
	var achievement models.RankAchievement
	if err := r.db.Where("member_id = ? AND rank_level = ?", memberID, level).First(&achievement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &achievement, nil
}

// ListAchievements 获取会员全部达成记录
func (r *GormRankRepository) ListAchievements(memberID uint) ([]models.RankAchievement, error) {
	var achievements []models.RankAchievement
	if err := r.db.Where("member_id = ?", memberID).Order("rank_level asc").Find(&achievements).Error; err != nil {
		return nil, err
	}
	return achievements, nil
}

// CreateAchievement 记录等级达成
func (r *GormRankRepository) CreateAchievement(achievement *models.RankAchievement) error {
	return r.db.Create(achievement).Error
}
