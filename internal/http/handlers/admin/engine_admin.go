package admin

import (
	"errors"
	"strings"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/queue"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminRunAccrualRequest 手动触发日收益请求
type AdminRunAccrualRequest struct {
	AsOf  string `json:"as_of"`
	Async bool   `json:"async"`
}

// AdminVolumeEventRequest 业绩事件提交/重放请求
type AdminVolumeEventRequest struct {
	MemberID  uint   `json:"member_id" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	EventType string `json:"event_type"`
	Reference string `json:"reference" binding:"required"`
	Async     bool   `json:"async"`
}

// AdminEvaluateRanksRequest 等级评估请求（member_id 为空时全量）
type AdminEvaluateRanksRequest struct {
	MemberID uint `json:"member_id"`
	Async    bool `json:"async"`
}

// RunAccrual 手动触发日收益批处理
func (h *Handler) RunAccrual(c *gin.Context) {
	var req AdminRunAccrualRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}
	asOf, err := service.ParseAsOf(req.AsOf, h.Settings.Location)
	if err != nil {
		respondErrorWithMsg(c, response.CodeBadRequest, "as_of must be YYYY-MM-DD", err)
		return
	}
	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueAccrual(queue.AccrualDailyPayload{AsOf: asOf.Format(constants.DateLayout)}); err != nil {
			respondErrorWithMsg(c, response.CodeInternal, "enqueue failed", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"as_of": asOf.Format(constants.DateLayout)})
		return
	}
	report, err := h.AccrualService.RunDailyAccrual(c.Request.Context(), asOf)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}

// SubmitVolumeEvent 提交或重放业绩事件（参考号幂等）
func (h *Handler) SubmitVolumeEvent(c *gin.Context) {
	var req AdminVolumeEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "amount must be a positive decimal", nil)
		return
	}
	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		eventType = constants.VolumeEventPurchase
	}
	if req.Async && h.QueueClient.Enabled() {
		payload := queue.CommissionReplayPayload{
			MemberID:  req.MemberID,
			Amount:    amount.String(),
			EventType: eventType,
			Reference: req.Reference,
		}
		if err := h.QueueClient.EnqueueCommissionReplay(payload); err != nil {
			respondErrorWithMsg(c, response.CodeInternal, "enqueue failed", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"reference": req.Reference})
		return
	}
	result, err := h.CommissionService.OnVolumeEvent(c.Request.Context(), service.VolumeEventInput{
		MemberID:  req.MemberID,
		Amount:    amount,
		EventType: eventType,
		Reference: req.Reference,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// EvaluateRanks 触发等级评估
func (h *Handler) EvaluateRanks(c *gin.Context) {
	var req AdminEvaluateRanksRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}
	if req.Async && h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueRankEvaluate(req.MemberID); err != nil {
			respondErrorWithMsg(c, response.CodeInternal, "enqueue failed", err)
			return
		}
		response.SuccessWithMsg(c, "queued", gin.H{"member_id": req.MemberID})
		return
	}
	if req.MemberID != 0 {
		result, err := h.RankService.EvaluateAndApply(c.Request.Context(), req.MemberID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		response.Success(c, result)
		return
	}
	report, err := h.RankService.EvaluateAll(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}

// Reconcile 执行对账
func (h *Handler) Reconcile(c *gin.Context) {
	report, err := h.AuditService.Reconcile(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, report)
}

// GetPlan 获取当前奖金方案
func (h *Handler) GetPlan(c *gin.Context) {
	plan, err := h.PlanService.Current()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, plan)
}

// ReloadPlan 从配置表重新加载奖金方案
func (h *Handler) ReloadPlan(c *gin.Context) {
	plan, err := h.PlanService.Load()
	if err != nil {
		if errors.Is(err, service.ErrPlanInvalid) || errors.Is(err, service.ErrRankTableInvalid) {
			requestLog(c).Warnw("admin_plan_reload_rejected", "error", err)
		}
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_plan_reloaded", "levels", len(plan.LevelPercents), "ranks", len(plan.Ranks))
	response.Success(c, plan)
}
