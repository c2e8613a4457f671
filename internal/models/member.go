package models

import "time"

// Member 会员（推荐关系与累计数据）
type Member struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                          // 主键
	Username        string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"username"`         // 用户名
	SponsorID       *uint     `gorm:"index" json:"sponsor_id,omitempty"`                             // 直推人ID
	RankLevel       int       `gorm:"not null;default:0" json:"rank_level"`                          // 当前等级
	Status          string    `gorm:"type:varchar(20);not null;index" json:"status"`                 // 状态
	DirectCount     int       `gorm:"not null;default:0" json:"direct_count"`                        // 直推人数
	PersonalVolume  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"personal_volume"`  // 个人业绩
	TeamVolume      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"team_volume"`      // 团队业绩
	TotalInvestment Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_investment"` // 累计投资
	TotalEarnings   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_earnings"`   // 累计收益
	CreatedAt       time.Time `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`                                       // 更新时间
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}
