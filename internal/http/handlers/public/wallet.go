package public

import (
	"strconv"

	"github.com/asterdex-mlm/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetWallet 会员钱包余额
func (h *Handler) GetWallet(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	balance, err := h.WalletService.GetBalance(memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, balance)
}

// GetTransactions 会员钱包流水（按时间倒序）
func (h *Handler) GetTransactions(c *gin.Context) {
	memberID, ok := memberIDParam(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.WalletService.GetTransactionHistory(memberID, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, entries)
}
