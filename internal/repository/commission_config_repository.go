package repository

import (
	"errors"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
)

// CommissionConfigRepository 奖金配置数据访问接口
type CommissionConfigRepository interface {
	GetByKey(key string) (*models.CommissionConfig, error)
}

// GormCommissionConfigRepository GORM 实现
type GormCommissionConfigRepository struct {
	db *gorm.DB
}

// NewCommissionConfigRepository 创建奖金配置仓储
func NewCommissionConfigRepository(db *gorm.DB) *GormCommissionConfigRepository {
	return &GormCommissionConfigRepository{db: db}
}

// GetByKey 获取配置
func (r *GormCommissionConfigRepository) GetByKey(key string) (*models.CommissionConfig, error) {
	var cfg models.CommissionConfig
	if err := r.db.Where("config_key = ?", key).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}
