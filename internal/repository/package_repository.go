package repository

import (
	"errors"
	"strings"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PackageRepository 投资包数据访问接口
type PackageRepository interface {
	GetByID(id uint) (*models.Package, error)
	GetByIDForUpdate(id uint) (*models.Package, error)
	GetByReference(reference string) (*models.Package, error)
	Create(pkg *models.Package) error
	Update(pkg *models.Package) error
	ListByMember(memberID uint) ([]models.Package, error)
	ListActiveAfter(afterID uint, limit int) ([]models.Package, error)
	MaxUnlockedLevels(memberIDs []uint) (map[uint]int, error)
	List(filter PackageListFilter) ([]models.Package, int64, error)
	WithTx(tx *gorm.DB) PackageRepository
	Transaction(fn func(tx *gorm.DB) error) error
}

// GormPackageRepository GORM 投资包仓储实现
type GormPackageRepository struct {
	db *gorm.DB
}

// NewPackageRepository 创建投资包仓储
func NewPackageRepository(db *gorm.DB) *GormPackageRepository {
	return &GormPackageRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPackageRepository) WithTx(tx *gorm.DB) PackageRepository {
	if tx == nil {
		return r
	}
	return &GormPackageRepository{db: tx}
}

// Transaction 执行事务
func (r *GormPackageRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取投资包
func (r *GormPackageRepository) GetByID(id uint) (*models.Package, error) {
	if id == 0 {
		return nil, nil
	}
	var pkg models.Package
	if err := r.db.First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByIDForUpdate 按ID加锁获取投资包
func (r *GormPackageRepository) GetByIDForUpdate(id uint) (*models.Package, error) {
	if id == 0 {
		return nil, nil
	}
	var pkg models.Package
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// GetByReference 按购买参考号获取投资包
func (r *GormPackageRepository) GetByReference(reference string) (*models.Package, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var pkg models.Package
	if err := r.db.Where("reference = ?", reference).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// Create 创建投资包
func (r *GormPackageRepository) Create(pkg *models.Package) error {
	return r.db.Create(pkg).Error
}

// Update 更新投资包
func (r *GormPackageRepository) Update(pkg *models.Package) error {
	return r.db.Save(pkg).Error
}

// ListByMember 获取会员全部投资包
func (r *GormPackageRepository) ListByMember(memberID uint) ([]models.Package, error) {
	var pkgs []models.Package
	if err := r.db.Where("member_id = ?", memberID).Order("id asc").Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// ListActiveAfter 按ID游标获取进行中的投资包
func (r *GormPackageRepository) ListActiveAfter(afterID uint, limit int) ([]models.Package, error) {
	var pkgs []models.Package
	if err := applyAfterID(r.db.Where("status = ?", constants.PackageStatusActive), afterID, limit).
		Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}

// MaxUnlockedLevels 获取会员进行中投资包的最大解锁代数
func (r *GormPackageRepository) MaxUnlockedLevels(memberIDs []uint) (map[uint]int, error) {
	result := make(map[uint]int, len(memberIDs))
	if len(memberIDs) == 0 {
		return result, nil
	}
	type row struct {
		MemberID uint
		Levels   int
	}
	var rows []row
	if err := r.db.Model(&models.Package{}).
		Select("member_id, MAX(unlocked_levels) AS levels").
		Where("member_id IN ? AND status = ?", memberIDs, constants.PackageStatusActive).
		Group("member_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, item := range rows {
		result[item.MemberID] = item.Levels
	}
	return result, nil
}

// List 分页查询投资包
func (r *GormPackageRepository) List(filter PackageListFilter) ([]models.Package, int64, error) {
	query := r.db.Model(&models.Package{})
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var pkgs []models.Package
	if err := query.Order("id desc").Find(&pkgs).Error; err != nil {
		return nil, 0, err
	}
	return pkgs, total, nil
}
