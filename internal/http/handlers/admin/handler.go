package admin

import (
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 管理端接口（需 X-Admin-Key）
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondErrorWithMsg(c, code, msg, err)
}

func respondResult(c *gin.Context, data interface{}, err error) {
	handlershared.RespondResult(c, data, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

func parsePathUint(c *gin.Context, key string) (uint, bool) {
	return handlershared.ParsePathUint(c, key)
}

// parsePositiveAmount 仅接受大于 0 的金额
func parsePositiveAmount(raw string) (models.Money, bool) {
	amount, err := models.ParseMoney(raw)
	if err != nil || !amount.IsPositive() {
		return models.ZeroMoney(), false
	}
	return amount, true
}

// parseQueryDate 读取 YYYY-MM-DD 查询参数，缺省或格式错误返回 false
func parseQueryDate(c *gin.Context, key string, loc *time.Location) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation(constants.DateLayout, raw, loc)
	return parsed, err == nil
}
