package admin

import (
	"strings"

	"github.com/asterdex-mlm/internal/constants"
	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/gin-gonic/gin"
)

// AdminAdjustWalletRequest 管理端余额调整请求
type AdminAdjustWalletRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Operation string `json:"operation"` // add/subtract
	Reference string `json:"reference"`
	Remark    string `json:"remark"`
}

// AdminLockFundsRequest 管理端冻结/解冻/出款请求
type AdminLockFundsRequest struct {
	Amount    string `json:"amount" binding:"required"`
	Reference string `json:"reference" binding:"required"`
	Remark    string `json:"remark"`
}

// GetMemberWallet 管理端获取会员钱包
func (h *Handler) GetMemberWallet(c *gin.Context) {
	memberID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	member, err := h.MemberService.GetMember(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	balance, err := h.WalletService.GetBalance(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"member":  member,
		"balance": balance,
	})
}

// ListLedgerEntries 管理端查询钱包流水
func (h *Handler) ListLedgerEntries(c *gin.Context) {
	page, pageSize := handlershared.ParsePageQuery(c)
	filter := repository.LedgerEntryListFilter{
		Page:      page,
		PageSize:  pageSize,
		MemberID:  handlershared.ParseQueryUint(c, "member_id"),
		PackageID: handlershared.ParseQueryUint(c, "package_id"),
		Type:      strings.TrimSpace(c.Query("type")),
		Direction: strings.TrimSpace(c.Query("direction")),
		Search:    strings.TrimSpace(c.Query("search")),
	}
	if from, ok := parseQueryDate(c, "from", h.Settings.Location); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseQueryDate(c, "to", h.Settings.Location); ok {
		end := to.AddDate(0, 0, 1)
		filter.CreatedTo = &end
	}
	entries, total, err := h.WalletService.ListEntries(filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, entries, handlershared.BuildPagination(page, pageSize, total))
}

// AdjustMemberWallet 管理端增减会员余额
func (h *Handler) AdjustMemberWallet(c *gin.Context) {
	memberID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	var req AdminAdjustWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "amount must be a positive decimal", nil)
		return
	}
	op := strings.ToLower(strings.TrimSpace(req.Operation))
	if op == "" {
		op = "add"
	}
	if op != "add" && op != "subtract" {
		respondErrorWithMsg(c, response.CodeBadRequest, "operation must be add or subtract", nil)
		return
	}
	delta := amount
	if op == "subtract" {
		delta = models.NewMoneyFromDecimal(amount.Decimal.Neg())
	}
	entry, err := h.WalletService.AdminAdjust(c.Request.Context(), memberID, delta, req.Reference, req.Remark)
	if err == nil {
		requestLog(c).Infow("admin_wallet_adjusted",
			"member_id", memberID,
			"operation", op,
			"amount", amount.String(),
			"reference", entry.ReferenceID,
		)
	}
	respondResult(c, entry, err)
}

// LockMemberFunds 管理端冻结余额
func (h *Handler) LockMemberFunds(c *gin.Context) {
	h.moveMemberFunds(c, constants.LedgerTypeLock)
}

// UnlockMemberFunds 管理端解冻余额
func (h *Handler) UnlockMemberFunds(c *gin.Context) {
	h.moveMemberFunds(c, constants.LedgerTypeUnlock)
}

// PayoutMemberFunds 管理端从冻结余额出款
func (h *Handler) PayoutMemberFunds(c *gin.Context) {
	h.moveMemberFunds(c, constants.LedgerTypePayout)
}

func (h *Handler) moveMemberFunds(c *gin.Context, entryType string) {
	memberID, ok := parsePathUint(c, "id")
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "invalid member id", nil)
		return
	}
	var req AdminLockFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithMsg(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, ok := parsePositiveAmount(req.Amount)
	if !ok {
		respondErrorWithMsg(c, response.CodeBadRequest, "amount must be a positive decimal", nil)
		return
	}
	ctx := c.Request.Context()
	var (
		entry *models.LedgerEntry
		err   error
	)
	switch entryType {
	case constants.LedgerTypeLock:
		entry, err = h.WalletService.LockFunds(ctx, memberID, amount, req.Reference, req.Remark)
	case constants.LedgerTypeUnlock:
		entry, err = h.WalletService.UnlockFunds(ctx, memberID, amount, req.Reference, req.Remark)
	default:
		entry, err = h.WalletService.PayoutLocked(ctx, memberID, amount, req.Reference, req.Remark)
	}
	respondResult(c, entry, err)
}
