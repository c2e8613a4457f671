package admin

import (
	"strings"

	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListMembers 管理端会员列表
func (h *Handler) ListMembers(c *gin.Context) {
	page, pageSize := handlershared.ParsePageQuery(c)
	filter := repository.MemberListFilter{
		Page:      page,
		PageSize:  pageSize,
		SponsorID: handlershared.ParseQueryUint(c, "sponsor_id"),
		Status:    strings.TrimSpace(c.Query("status")),
		Search:    strings.TrimSpace(c.Query("search")),
	}
	members, total, err := h.MemberService.List(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, members, handlershared.BuildPagination(page, pageSize, total))
}

// DeactivateMember 停用会员
func (h *Handler) DeactivateMember(c *gin.Context) {
	memberID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	member, err := h.MemberService.Deactivate(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_member_deactivated", "member_id", memberID)
	response.Success(c, member)
}

// ActivateMember 启用会员
func (h *Handler) ActivateMember(c *gin.Context) {
	memberID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	member, err := h.MemberService.Activate(c.Request.Context(), memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("admin_member_activated", "member_id", memberID)
	response.Success(c, member)
}
