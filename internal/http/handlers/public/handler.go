package public

import (
	handlershared "github.com/asterdex-mlm/internal/http/handlers/shared"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/provider"

	"github.com/gin-gonic/gin"
)

// Handler 会员侧接口：注册、投资包、钱包、等级与网络查询
type Handler struct {
	*provider.Container
}

func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

func respondBadRequest(c *gin.Context, msg string, err error) {
	handlershared.RespondErrorWithMsg(c, response.CodeBadRequest, msg, err)
}

func respondServiceError(c *gin.Context, err error) {
	handlershared.RespondServiceError(c, err)
}

// memberIDParam 解析 :id，失败时已写出 400
func memberIDParam(c *gin.Context) (uint, bool) {
	memberID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		respondBadRequest(c, "invalid member id", nil)
		return 0, false
	}
	return memberID, true
}
