package shared

import (
	"errors"

	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 请求上下文中的日志（RequestIDMiddleware 已挂载 request_id）
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil || c.Request == nil {
		return logger.S()
	}
	return logger.FromContext(c.Request.Context())
}

// RespondErrorWithMsg 返回自定义消息错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", code,
			"message", msg,
			"error", err,
		)
	}
	response.Error(c, code, msg)
}

// CodeForKind 错误类别对应的响应码
func CodeForKind(kind service.ErrorKind) int {
	switch kind {
	case service.KindNotFound:
		return response.CodeNotFound
	case service.KindAlreadyProcessed:
		return response.CodeOK
	case service.KindInvalidState:
		return response.CodeConflict
	case service.KindInsufficientFunds:
		return response.CodeUnprocessable
	case service.KindConfigurationMissing:
		return response.CodeServiceUnavailable
	case service.KindInvalidInput:
		return response.CodeBadRequest
	default:
		return response.CodeInternal
	}
}

// RespondResult 成功与幂等命中均按成功返回，其余错误交给 RespondServiceError
func RespondResult(c *gin.Context, data interface{}, err error) {
	switch {
	case err == nil:
		response.Success(c, data)
	case errors.Is(err, service.ErrAlreadyProcessed):
		response.SuccessAlreadyProcessed(c, data)
	default:
		RespondServiceError(c, err)
	}
}

// RespondServiceError 按业务错误类别返回响应；非业务错误只返回通用消息并记录日志。
func RespondServiceError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	code := CodeForKind(kind)
	if kind == service.KindAlreadyProcessed {
		response.SuccessAlreadyProcessed(c, nil)
		return
	}
	if kind == service.KindInternal {
		RespondErrorWithMsg(c, code, "internal error", err)
		return
	}
	RequestLog(c).Warnw("handler_business_error", "kind", kind, "error", err)
	response.ErrorWithKind(c, code, string(kind), err.Error())
}
