package models

import "time"

// TreeNode 二叉树节点（每个会员一个）
type TreeNode struct {
	ID           uint      `gorm:"primarykey" json:"id"`                                                           // 主键
	MemberID     uint      `gorm:"not null;uniqueIndex" json:"member_id"`                                          // 会员ID
	ParentID     *uint     `gorm:"index;uniqueIndex:idx_tree_parent_position" json:"parent_id,omitempty"`          // 父节点会员ID
	LeftChildID  *uint     `gorm:"index" json:"left_child_id,omitempty"`                                           // 左子节点会员ID
	RightChildID *uint     `gorm:"index" json:"right_child_id,omitempty"`                                          // 右子节点会员ID
	Position     string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_tree_parent_position;uniqueIndex:idx_tree_single_root,where:position = 'root'" json:"position"` // 所在位置（根唯一）
	Level        int       `gorm:"not null;default:0;index" json:"level"`                                          // 层级
	LeftVolume   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"left_volume"`                       // 左区待碰业绩
	RightVolume  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"right_volume"`                      // 右区待碰业绩
	LeftTotal    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"left_total"`                        // 左区累计业绩
	RightTotal   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"right_total"`                       // 右区累计业绩
	CreatedAt    time.Time `json:"created_at"`                                                                     // 创建时间
	UpdatedAt    time.Time `json:"updated_at"`                                                                     // 更新时间
}

// TableName 指定表名
func (TreeNode) TableName() string {
	return "tree_nodes"
}

// ChildAt 返回指定位置的子节点
func (n *TreeNode) ChildAt(position string) *uint {
	if n == nil {
		return nil
	}
	switch position {
	case "left":
		return n.LeftChildID
	case "right":
		return n.RightChildID
	}
	return nil
}

// Matchable 可碰业绩（两区较小值）
func (n *TreeNode) Matchable() Money {
	if n == nil {
		return ZeroMoney()
	}
	return MinMoney(n.LeftVolume, n.RightVolume)
}
