package models

import "time"

// RankDefinition 等级门槛定义（只读配置）
type RankDefinition struct {
	ID                uint   `gorm:"primarykey" json:"id"`
	Level             int    `gorm:"not null;uniqueIndex" json:"level"`                                // 等级
	Name              string `gorm:"type:varchar(64);not null" json:"name"`                            // 名称
	MinDirects        int    `gorm:"not null;default:0" json:"min_directs"`                            // 最少直推
	MinTeamVolume     Money  `gorm:"type:decimal(20,2);not null;default:0" json:"min_team_volume"`     // 最少团队业绩
	MinPersonalVolume Money  `gorm:"type:decimal(20,2);not null;default:0" json:"min_personal_volume"` // 最少个人业绩
	RewardAmount      Money  `gorm:"type:decimal(20,2);not null;default:0" json:"reward_amount"`       // 一次性奖励
}

// TableName 指定表名
func (RankDefinition) TableName() string {
	return "rank_definitions"
}

// RankAchievement 等级达成记录（已发奖励的唯一依据）
type RankAchievement struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	MemberID     uint      `gorm:"not null;uniqueIndex:idx_rank_achievement_member_level" json:"member_id"`
	RankLevel    int       `gorm:"not null;uniqueIndex:idx_rank_achievement_member_level" json:"rank_level"`
	RewardAmount Money     `gorm:"type:decimal(20,2);not null;default:0" json:"reward_amount"`
	ReferenceID  string    `gorm:"type:varchar(191)" json:"reference_id"`
	AchievedAt   time.Time `gorm:"index" json:"achieved_at"`
}

// TableName 指定表名
func (RankAchievement) TableName() string {
	return "rank_achievements"
}
