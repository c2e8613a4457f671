package public

import (
	"strconv"

	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
)

// EnrollRequest 会员注册请求
type EnrollRequest struct {
	Username  string `json:"username" binding:"required"`
	SponsorID uint   `json:"sponsor_id"`
}

// Enroll 注册会员并自动安置到二叉树
func (h *Handler) Enroll(c *gin.Context) {
	var req EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "bad request", err)
		return
	}
	result, err := h.MemberService.Enroll(c.Request.Context(), service.EnrollInput{
		Username:  req.Username,
		SponsorID: req.SponsorID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetMember 会员详情
func (h *Handler) GetMember(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	member, err := h.MemberService.GetMember(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, member)
}

// GetRankStatus 会员等级状态
func (h *Handler) GetRankStatus(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	status, err := h.RankService.GetRankStatus(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, status)
}

// GetTree 会员二叉树节点与下线
func (h *Handler) GetTree(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "3"))
	node, err := h.TreeService.GetTreeNode(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	downline, err := h.TreeService.Downline(c.Request.Context(), memberID, depth)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"node":     node,
		"downline": downline,
	})
}

// GetUpline 会员二叉树上线（由近及远）
func (h *Handler) GetUpline(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	steps, err := h.TreeService.Ancestors(c.Request.Context(), memberID, depth)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, steps)
}
