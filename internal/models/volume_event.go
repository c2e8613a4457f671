package models

import "time"

// VolumeEvent 已入树的业绩事件（按参考号去重）
type VolumeEvent struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Reference string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"reference"`
	MemberID  uint      `gorm:"not null;index" json:"member_id"`
	Amount    Money     `gorm:"type:decimal(20,2);not null" json:"amount"`
	EventType string    `gorm:"type:varchar(20);not null" json:"event_type"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName 指定表名
func (VolumeEvent) TableName() string {
	return "volume_events"
}
