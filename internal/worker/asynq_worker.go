package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"
	"github.com/asterdex-mlm/internal/queue"
	"github.com/asterdex-mlm/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskAccrualDaily, c.handleAccrualDaily)
	mux.HandleFunc(queue.TaskRankEvaluateAll, c.handleRankEvaluateAll)
	mux.HandleFunc(queue.TaskRankEvaluateMember, c.handleRankEvaluateMember)
	mux.HandleFunc(queue.TaskAuditReconcile, c.handleReconcile)
	mux.HandleFunc(queue.TaskCommissionReplay, c.handleCommissionReplay)
}

func (c *Consumer) handleAccrualDaily(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.AccrualService == nil {
		logger.Debugw("worker_accrual_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AccrualDailyPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			logger.Warnw("worker_accrual_unmarshal_failed", "error", err)
			return err
		}
	}
	asOf, err := service.ParseAsOf(payload.AsOf, c.Settings.Location)
	if err != nil {
		logger.Warnw("worker_accrual_invalid_as_of", "as_of", payload.AsOf, "error", err)
		return nil
	}
	dateKey := asOf.Format(constants.DateLayout)
	report, err := c.AccrualService.RunDailyAccrual(ctx, asOf)
	if err != nil {
		if errors.Is(err, service.ErrAccrualRunning) {
			logger.Infow("worker_accrual_skip_running", "as_of", dateKey)
			return nil
		}
		logger.Warnw("worker_accrual_failed", "as_of", dateKey, "error", err)
		return err
	}
	logger.Infow("worker_accrual_done",
		"as_of", report.AsOf,
		"credited", report.Credited,
		"days_credited", report.DaysCredited,
		"failed", report.Failed,
		"total_credited", report.TotalCredited.String(),
	)
	return nil
}

func (c *Consumer) handleRankEvaluateAll(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.RankService == nil {
		logger.Debugw("worker_rank_all_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	report, err := c.RankService.EvaluateAll(ctx)
	if err != nil {
		if errors.Is(err, service.ErrRankTableMissing) {
			logger.Warnw("worker_rank_all_skip_table_missing")
			return nil
		}
		logger.Warnw("worker_rank_all_failed", "error", err)
		return err
	}
	logger.Infow("worker_rank_all_done", "evaluated", report.Evaluated, "upgraded", report.Upgraded, "failed", report.Failed)
	return nil
}

func (c *Consumer) handleRankEvaluateMember(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.RankService == nil {
		logger.Debugw("worker_rank_member_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RankEvaluatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_rank_member_unmarshal_failed", "error", err)
		return err
	}
	if payload.MemberID == 0 {
		logger.Debugw("worker_rank_member_skip_invalid_payload", "member_id", payload.MemberID)
		return nil
	}
	if _, err := c.RankService.EvaluateAndApply(ctx, payload.MemberID); err != nil {
		if service.KindOf(err) != service.KindInternal {
			logger.Debugw("worker_rank_member_skip", "member_id", payload.MemberID, "kind", service.KindOf(err), "error", err)
			return nil
		}
		logger.Warnw("worker_rank_member_failed", "member_id", payload.MemberID, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.AuditService == nil {
		logger.Debugw("worker_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	report, err := c.AuditService.Reconcile(ctx)
	if err != nil {
		logger.Warnw("worker_reconcile_failed", "error", err)
		return err
	}
	if !report.Healthy() {
		for _, finding := range report.Findings {
			logger.Warnw("worker_reconcile_finding", "check", finding.Check, "member_id", finding.MemberID, "detail", finding.Detail)
		}
	}
	return nil
}

func (c *Consumer) handleCommissionReplay(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.CommissionService == nil {
		logger.Debugw("worker_commission_replay_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionReplayPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_replay_unmarshal_failed", "error", err)
		return err
	}
	input, err := replayInput(payload)
	if err != nil {
		logger.Warnw("worker_commission_replay_invalid_payload", "reference", payload.Reference, "error", err)
		return nil
	}
	result, err := c.CommissionService.OnVolumeEvent(ctx, input)
	if err != nil {
		if service.KindOf(err) != service.KindInternal {
			logger.Warnw("worker_commission_replay_rejected", "reference", payload.Reference, "kind", service.KindOf(err), "error", err)
			return nil
		}
		logger.Warnw("worker_commission_replay_failed", "reference", payload.Reference, "error", err)
		return err
	}
	if len(result.Failures) > 0 {
		logger.Warnw("worker_commission_replay_partial", "reference", payload.Reference, "failures", len(result.Failures))
	}
	return nil
}

func replayInput(payload queue.CommissionReplayPayload) (service.VolumeEventInput, error) {
	amount, err := models.ParseMoney(payload.Amount)
	if err != nil {
		return service.VolumeEventInput{}, service.ErrInvalidAmount
	}
	eventType := strings.TrimSpace(payload.EventType)
	if eventType == "" {
		eventType = constants.VolumeEventPurchase
	}
	return service.VolumeEventInput{
		MemberID:  payload.MemberID,
		Amount:    amount,
		EventType: eventType,
		Reference: payload.Reference,
	}, nil
}
