package models

import "time"

// WalletAccount 会员钱包余额
type WalletAccount struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                   // 主键
	MemberID  uint      `gorm:"not null;uniqueIndex" json:"member_id"`                  // 会员ID
	Available Money     `gorm:"type:decimal(20,2);not null;default:0" json:"available"` // 可用余额
	Locked    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"locked"`    // 冻结余额
	Total     Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total"`     // 总余额
	CreatedAt time.Time `json:"created_at"`                                             // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                             // 更新时间
}

// TableName 指定表名
func (WalletAccount) TableName() string {
	return "wallets"
}

// Consistent 校验 total == available + locked 且均非负
func (w *WalletAccount) Consistent() bool {
	if w == nil {
		return false
	}
	if w.Available.IsNegative() || w.Locked.IsNegative() || w.Total.IsNegative() {
		return false
	}
	return w.Total.Decimal.Equal(w.Available.Decimal.Add(w.Locked.Decimal))
}

// LedgerEntry 钱包流水（只追加）
type LedgerEntry struct {
	ID             uint      `gorm:"primarykey" json:"id"`                                       // 主键
	MemberID       uint      `gorm:"not null;index" json:"member_id"`                            // 会员ID
	Type           string    `gorm:"type:varchar(32);not null;index" json:"type"`                // 流水类型
	Direction      string    `gorm:"type:varchar(8);not null" json:"direction"`                  // 方向
	Amount         Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                  // 金额（带符号）
	BalanceBefore  Money     `gorm:"type:decimal(20,2);not null" json:"balance_before"`          // 变动前总余额
	BalanceAfter   Money     `gorm:"type:decimal(20,2);not null" json:"balance_after"`           // 变动后总余额
	ReferenceID    string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"reference_id"` // 幂等参考号
	PackageID      *uint     `gorm:"index" json:"package_id,omitempty"`                          // 关联投资包
	SourceMemberID *uint     `gorm:"index" json:"source_member_id,omitempty"`                    // 来源会员
	Level          int       `gorm:"not null;default:0" json:"level,omitempty"`                  // 代数
	Remark         string    `gorm:"type:varchar(255)" json:"remark"`                            // 备注
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                                    // 创建时间
}

// TableName 指定表名
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
