package repository

import (
	"errors"
	"strings"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
)

// VolumeRepository 业绩事件数据访问接口
type VolumeRepository interface {
	GetByReference(reference string) (*models.VolumeEvent, error)
	Create(event *models.VolumeEvent) error
	WithTx(tx *gorm.DB) VolumeRepository
}

// GormVolumeRepository GORM 业绩事件仓储实现
type GormVolumeRepository struct {
	db *gorm.DB
}

// NewVolumeRepository 创建业绩事件仓储
func NewVolumeRepository(db *gorm.DB) *GormVolumeRepository {
	return &GormVolumeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormVolumeRepository) WithTx(tx *gorm.DB) VolumeRepository {
	if tx == nil {
		return r
	}
	return &GormVolumeRepository{db: tx}
}

// GetByReference 按参考号获取业绩事件
func (r *GormVolumeRepository) GetByReference(reference string) (*models.VolumeEvent, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var event models.VolumeEvent
	if err := r.db.Where("reference = ?", reference).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

// Create 记录业绩事件
func (r *GormVolumeRepository) Create(event *models.VolumeEvent) error {
	return r.db.Create(event).Error
}
