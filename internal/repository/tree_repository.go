package repository

import (
	"errors"
	"fmt"

	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTreeSlotTaken 父节点槽位已被占用
var ErrTreeSlotTaken = errors.New("tree slot already taken")

// TreeRepository 二叉树数据访问接口
type TreeRepository interface {
	GetByMemberID(memberID uint) (*models.TreeNode, error)
	GetByMemberIDForUpdate(memberID uint) (*models.TreeNode, error)
	GetByMemberIDs(memberIDs []uint) ([]models.TreeNode, error)
	Count() (int64, error)
	Create(node *models.TreeNode) error
	AttachChild(parentMemberID uint, position string, childMemberID uint) error
	AddSideVolume(memberID uint, position string, amount models.Money) error
	ConsumeMatched(memberID uint, amount models.Money) error
	ListAfter(afterID uint, limit int) ([]models.TreeNode, error)
	WithTx(tx *gorm.DB) TreeRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormTreeRepository GORM 二叉树仓储实现
type GormTreeRepository struct {
	db *gorm.DB
}

// NewTreeRepository 创建二叉树仓储
func NewTreeRepository(db *gorm.DB) *GormTreeRepository {
	return &GormTreeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTreeRepository) WithTx(tx *gorm.DB) TreeRepository {
	if tx == nil {
		return r
	}
	return &GormTreeRepository{db: tx}
}

// Transaction 执行事务
func (r *GormTreeRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByMemberID 按会员ID获取节点
func (r *GormTreeRepository) GetByMemberID(memberID uint) (*models.TreeNode, error) {
	if memberID == 0 {
		return nil, nil
	}
	var node models.TreeNode
	if err := r.db.Where("member_id = ?", memberID).First(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// GetByMemberIDForUpdate 按会员ID加锁获取节点
func (r *GormTreeRepository) GetByMemberIDForUpdate(memberID uint) (*models.TreeNode, error) {
	if memberID == 0 {
		return nil, nil
	}
	var node models.TreeNode
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		First(&node).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// GetByMemberIDs 批量获取节点（用于逐层遍历）
func (r *GormTreeRepository) GetByMemberIDs(memberIDs []uint) ([]models.TreeNode, error) {
	if len(memberIDs) == 0 {
		return []models.TreeNode{}, nil
	}
	var nodes []models.TreeNode
	if err := r.db.Where("member_id IN ?", memberIDs).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// Count 节点总数
func (r *GormTreeRepository) Count() (int64, error) {
	var total int64
	if err := r.db.Model(&models.TreeNode{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Create 创建节点
func (r *GormTreeRepository) Create(node *models.TreeNode) error {
	return r.db.Create(node).Error
}

// AttachChild 写入父节点的子节点指针，槽位非空时返回 ErrTreeSlotTaken
func (r *GormTreeRepository) AttachChild(parentMemberID uint, position string, childMemberID uint) error {
	column, err := childColumn(position)
	if err != nil {
		return err
	}
	result := r.db.Model(&models.TreeNode{}).
		Where("member_id = ? AND "+column+" IS NULL", parentMemberID).
		UpdateColumn(column, childMemberID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTreeSlotTaken
	}
	return nil
}

// AddSideVolume 累加指定区的待碰业绩与累计业绩
func (r *GormTreeRepository) AddSideVolume(memberID uint, position string, amount models.Money) error {
	volumeColumn, totalColumn, err := volumeColumns(position)
	if err != nil {
		return err
	}
	if memberID == 0 || !amount.IsPositive() {
		return nil
	}
	value := amount.String()
	return r.db.Model(&models.TreeNode{}).Where("member_id = ?", memberID).
		UpdateColumns(map[string]interface{}{
			volumeColumn: gorm.Expr(volumeColumn+" + ?", value),
			totalColumn:  gorm.Expr(totalColumn+" + ?", value),
		}).Error
}

// ConsumeMatched 两区同时扣减已碰业绩
func (r *GormTreeRepository) ConsumeMatched(memberID uint, amount models.Money) error {
	if memberID == 0 || !amount.IsPositive() {
		return nil
	}
	value := amount.String()
	return r.db.Model(&models.TreeNode{}).Where("member_id = ?", memberID).
		UpdateColumns(map[string]interface{}{
			"left_volume":  gorm.Expr("left_volume - ?", value),
			"right_volume": gorm.Expr("right_volume - ?", value),
		}).Error
}

// ListAfter 按ID游标分页获取节点
func (r *GormTreeRepository) ListAfter(afterID uint, limit int) ([]models.TreeNode, error) {
	var nodes []models.TreeNode
	if err := applyAfterID(r.db, afterID, limit).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func childColumn(position string) (string, error) {
	switch position {
	case "left":
		return "left_child_id", nil
	case "right":
		return "right_child_id", nil
	}
	return "", fmt.Errorf("invalid tree position: %s", position)
}

func volumeColumns(position string) (string, string, error) {
	switch position {
	case "left":
		return "left_volume", "left_total", nil
	case "right":
		return "right_volume", "right_total", nil
	}
	return "", "", fmt.Errorf("invalid tree position: %s", position)
}
