package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package 会员投资包
type Package struct {
	ID                 uint            `gorm:"primarykey" json:"id"`                                             // 主键
	MemberID           uint            `gorm:"not null;index" json:"member_id"`                                  // 会员ID
	Reference          string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"reference"`          // 购买参考号
	TierName           string          `gorm:"type:varchar(64)" json:"tier_name"`                                // 档位名称
	UnlockedLevels     int             `gorm:"not null;default:0" json:"unlocked_levels"`                        // 解锁代数
	Principal          Money           `gorm:"type:decimal(20,2);not null" json:"principal"`                     // 本金
	DailyROIPercent    decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"daily_roi_percent"`             // 日收益率（百分比）
	DurationDays       int             `gorm:"not null;default:0" json:"duration_days"`                          // 周期天数（0 表示不限）
	MaxROIMultiple     decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"max_roi_multiple"`    // 收益封顶倍数（0 表示不封顶）
	Status             string          `gorm:"type:varchar(20);not null;index" json:"status"`                    // 状态
	TotalROIEarned     Money           `gorm:"type:decimal(20,2);not null;default:0" json:"total_roi_earned"`    // 累计收益
	ActivationDate     time.Time       `gorm:"not null;index" json:"activation_date"`                            // 激活时间
	StopDate           *time.Time      `json:"stop_date,omitempty"`                                              // 停止时间
	MaturedAt          *time.Time      `json:"matured_at,omitempty"`                                             // 到期时间
	PenaltyPercentage  decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"penalty_percentage"`  // 违约扣除比例
	PrincipalRemaining Money           `gorm:"type:decimal(20,2);not null;default:0" json:"principal_remaining"` // 可提取本金
	LastAccruedOn      string          `gorm:"type:varchar(10)" json:"last_accrued_on"`                          // 最近计息日期
	CancelReason       string          `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`                 // 取消原因
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`                                          // 创建时间
	UpdatedAt          time.Time       `gorm:"index" json:"updated_at"`                                          // 更新时间
}

// TableName 指定表名
func (Package) TableName() string {
	return "packages"
}

// IsTerminal 是否处于终态
func (p *Package) IsTerminal() bool {
	return p != nil && (p.Status == "withdrawn" || p.Status == "cancelled")
}

// ROICap 收益封顶金额，不封顶时返回 false
func (p *Package) ROICap() (Money, bool) {
	if p == nil || p.MaxROIMultiple.LessThanOrEqual(decimal.Zero) {
		return ZeroMoney(), false
	}
	return NewMoneyFromDecimal(p.Principal.Decimal.Mul(p.MaxROIMultiple)), true
}
