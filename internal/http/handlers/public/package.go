package public

import (
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
)

// PurchasePackageRequest 购买投资包请求
type PurchasePackageRequest struct {
	MemberID       uint   `json:"member_id" binding:"required"`
	Principal      string `json:"principal" binding:"required"`
	Reference      string `json:"reference"`
	ActivationDate string `json:"activation_date"`
	FromWallet     bool   `json:"from_wallet"`
}

// PurchasePackage 购买投资包（同步触发层级奖、对碰奖与等级评估）
func (h *Handler) PurchasePackage(c *gin.Context) {
	var req PurchasePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "bad request", err)
		return
	}
	principal, err := models.ParseMoney(req.Principal)
	if err != nil {
		respondBadRequest(c, "principal must be a decimal", err)
		return
	}
	input := service.CreatePackageInput{
		MemberID:   req.MemberID,
		Principal:  principal,
		Reference:  req.Reference,
		FromWallet: req.FromWallet,
	}
	if raw := strings.TrimSpace(req.ActivationDate); raw != "" {
		activation, err := time.ParseInLocation(constants.DateLayout, raw, h.Settings.Location)
		if err != nil {
			respondBadRequest(c, "activation_date must be YYYY-MM-DD", err)
			return
		}
		input.ActivationDate = &activation
	}
	result, err := h.PackageService.Purchase(c.Request.Context(), input)
	if err != nil {
		if result != nil {
			handlershared.RequestLog(c).Warnw("package_purchase_partial", "package_id", result.Package.ID, "error", err)
		}
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ListMemberPackages 会员投资包列表
func (h *Handler) ListMemberPackages(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	packages, err := h.PackageService.ListByMember(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, packages)
}

// GetPackage 投资包详情
func (h *Handler) GetPackage(c *gin.Context) {
	packageID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondBadRequest(c, "invalid package id", nil)
		return
	}
	pkg, err := h.PackageService.Get(packageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, pkg)
}

// StopPackage 提前停止投资包（按持有天数扣除违约金）
func (h *Handler) StopPackage(c *gin.Context) {
	packageID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondBadRequest(c, "invalid package id", nil)
		return
	}
	result, err := h.PackageService.Stop(c.Request.Context(), packageID, time.Now())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// WithdrawPrincipal 提取已停止投资包的剩余本金
func (h *Handler) WithdrawPrincipal(c *gin.Context) {
	packageID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondBadRequest(c, "invalid package id", nil)
		return
	}
	result, err := h.PackageService.WithdrawPrincipal(c.Request.Context(), packageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}
