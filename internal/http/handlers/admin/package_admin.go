package admin

import (
	"strings"

	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminCancelPackageRequest 取消投资包请求
type AdminCancelPackageRequest struct {
	Reason string `json:"reason"`
}

// ListPackages 管理端投资包列表
func (h *Handler) ListPackages(c *gin.Context) {
	page, pageSize := handlershared.ParsePageQuery(c)
	filter := repository.PackageListFilter{
		Page:     page,
		PageSize: pageSize,
		MemberID: handlershared.ParseQueryUint(c, "member_id"),
		Status:   strings.TrimSpace(c.Query("status")),
	}
	packages, total, err := h.PackageService.List(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, packages, handlershared.BuildPagination(page, pageSize, total))
}

// CancelPackage 管理端取消投资包
func (h *Handler) CancelPackage(c *gin.Context) {
	packageID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid package id", nil)
		return
	}
	var req AdminCancelPackageRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}
	pkg, err := h.PackageService.Cancel(c.Request.Context(), packageID, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, pkg)
}
