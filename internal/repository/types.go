package repository

import (
	"time"

	"gorm.io/gorm"
)

const defaultBatchLimit = 500

// MemberListFilter 查询会员列表的过滤条件
type MemberListFilter struct {
	Page      int
	PageSize  int
	SponsorID uint
	Status    string
	Search    string
}

// PackageListFilter 查询投资包列表的过滤条件
type PackageListFilter struct {
	Page     int
	PageSize int
	MemberID uint
	Status   string
}

// LedgerEntryListFilter 查询钱包流水列表的过滤条件
type LedgerEntryListFilter struct {
	Page        int
	PageSize    int
	MemberID    uint
	PackageID   uint
	Type        string
	Direction   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Search      string
}

// applyPagination 按页码截取，pageSize 为 0 时不分页
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	return query.Limit(pageSize).Offset((page - 1) * pageSize)
}

// applyAfterID 主键游标分页，批处理扫描用
func applyAfterID(query *gorm.DB, afterID uint, limit int) *gorm.DB {
	if limit <= 0 {
		limit = defaultBatchLimit
	}
	return query.Where("id > ?", afterID).Order("id asc").Limit(limit)
}
