package queue

import (
	"encoding/json"

	"github.com/asterdex-mlm/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskAccrualDaily 日收益批处理任务
	TaskAccrualDaily = constants.TaskAccrualDaily
	// TaskRankEvaluateAll 全量等级评估任务
	TaskRankEvaluateAll = constants.TaskRankEvaluateAll
	// TaskRankEvaluateMember 单个会员等级评估任务
	TaskRankEvaluateMember = constants.TaskRankEvaluateOne
	// TaskAuditReconcile 对账任务
	TaskAuditReconcile = constants.TaskAuditReconcile
	// TaskCommissionReplay 业绩事件重放任务
	TaskCommissionReplay = constants.TaskCommissionReplay
)

// AccrualDailyPayload 日收益任务载荷（AsOf 为空时取已结束的前一业务日）
type AccrualDailyPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

// RankEvaluatePayload 等级评估任务载荷
type RankEvaluatePayload struct {
	MemberID uint `json:"member_id"`
}

// ReconcilePayload 对账任务载荷
type ReconcilePayload struct {
	Trigger string `json:"trigger,omitempty"`
}

// CommissionReplayPayload 业绩事件重放载荷
type CommissionReplayPayload struct {
	MemberID  uint   `json:"member_id"`
	Amount    string `json:"amount"`
	EventType string `json:"event_type"`
	Reference string `json:"reference"`
}

func newTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}

// NewAccrualDailyTask 创建日收益任务
func NewAccrualDailyTask(payload AccrualDailyPayload) (*asynq.Task, error) {
	return newTask(TaskAccrualDaily, payload)
}

// NewRankEvaluateAllTask 创建全量等级评估任务
func NewRankEvaluateAllTask() (*asynq.Task, error) {
	return newTask(TaskRankEvaluateAll, struct{}{})
}

// NewRankEvaluateMemberTask 创建单会员等级评估任务
func NewRankEvaluateMemberTask(payload RankEvaluatePayload) (*asynq.Task, error) {
	return newTask(TaskRankEvaluateMember, payload)
}

// NewReconcileTask 创建对账任务
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	return newTask(TaskAuditReconcile, payload)
}

// NewCommissionReplayTask 创建业绩事件重放任务
func NewCommissionReplayTask(payload CommissionReplayPayload) (*asynq.Task, error) {
	return newTask(TaskCommissionReplay, payload)
}
