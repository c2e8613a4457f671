package constants

// 会员状态常量
const (
	MemberStatusActive   = "active"
	MemberStatusInactive = "inactive"
)

// 二叉树位置常量
const (
	TreePositionRoot  = "root"
	TreePositionLeft  = "left"
	TreePositionRight = "right"
)

// 投资包状态常量
const (
	PackageStatusActive    = "active"
	PackageStatusStopped   = "stopped"
	PackageStatusWithdrawn = "withdrawn"
	PackageStatusCancelled = "cancelled"
)

// 钱包流水类型常量
const (
	LedgerTypeROI             = "roi"
	LedgerTypeLevelIncome     = "level_income"
	LedgerTypeMatchingBonus   = "matching_bonus"
	LedgerTypeRankReward      = "rank_reward"
	LedgerTypeDeposit         = "deposit"
	LedgerTypeWithdrawal      = "withdrawal"
	LedgerTypeAdminAdjustment = "admin_adjustment"
	LedgerTypePackagePurchase = "package_purchase"
	LedgerTypeLock            = "lock"
	LedgerTypeUnlock          = "unlock"
	LedgerTypePayout          = "payout"
)

// EarningLedgerTypes 计入会员累计收益的流水类型
var EarningLedgerTypes = map[string]bool{
	LedgerTypeROI:           true,
	LedgerTypeLevelIncome:   true,
	LedgerTypeMatchingBonus: true,
	LedgerTypeRankReward:    true,
}

// 钱包流水方向常量
const (
	LedgerDirectionIn  = "in"
	LedgerDirectionOut = "out"
)

// 业绩事件类型常量
const (
	VolumeEventPurchase = "purchase"
	VolumeEventROI      = "roi"
)

// 收益模型常量
const (
	ROIModelCapped   = "capped"
	ROIModelLifetime = "lifetime"
)

// 流水参考号前缀
const (
	ReferencePrefixROI       = "roi"
	ReferencePrefixLevel     = "lvl"
	ReferencePrefixMatching  = "match"
	ReferencePrefixRank      = "rank"
	ReferencePrefixPrincipal = "principal"
	ReferencePrefixPurchase  = "purchase"
)

// 队列常量
const (
	QueueDefault         = "default"
	QueueCritical        = "critical"
	TaskAccrualDaily     = "accrual:daily"
	TaskRankEvaluateAll  = "rank:evaluate_all"
	TaskRankEvaluateOne  = "rank:evaluate_member"
	TaskAuditReconcile   = "audit:reconcile"
	TaskCommissionReplay = "commission:replay"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "mlm"
)

// 配置表键常量
const (
	CommissionConfigKeyPlan = "commission_plan"
)

// 引擎边界常量
const (
	MaxWalkDepthLimit   = 30
	DefaultAccrualBatch = 500
	DateLayout          = "2006-01-02"
)

// 币种常量
const (
	CurrencyDefault = "USD"
)
