package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const requestIDKey = "request_id"

// Envelope 统一响应结构（HTTP 状态恒为 200，业务结果看 status_code）
type Envelope struct {
	StatusCode       int         `json:"status_code"`
	Msg              string      `json:"msg"`
	Kind             string      `json:"kind,omitempty"` // 业务错误类别
	RequestID        string      `json:"request_id,omitempty"`
	Data             interface{} `json:"data"`
	Pagination       *Pagination `json:"pagination,omitempty"`
	AlreadyProcessed bool        `json:"already_processed,omitempty"` // 参考号重复提交，data 为已有结果
}

// Pagination 分页信息
type Pagination struct {
	Page      int   `json:"page"`
	PageSize  int   `json:"page_size"`
	Total     int64 `json:"total"`
	TotalPage int64 `json:"total_page"`
}

// NewPagination 根据总数计算总页数
func NewPagination(page, pageSize int, total int64) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPage = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return p
}

func write(c *gin.Context, env Envelope) {
	if value, ok := c.Get(requestIDKey); ok {
		if id, ok := value.(string); ok {
			env.RequestID = id
		}
	}
	c.JSON(http.StatusOK, env)
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, Envelope{StatusCode: CodeOK, Msg: "success", Data: data})
}

// SuccessWithMsg 成功响应（自定义消息）
func SuccessWithMsg(c *gin.Context, msg string, data interface{}) {
	write(c, Envelope{StatusCode: CodeOK, Msg: msg, Data: data})
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, data interface{}, pagination Pagination) {
	write(c, Envelope{StatusCode: CodeOK, Msg: "success", Data: data, Pagination: &pagination})
}

// SuccessAlreadyProcessed 幂等命中，按成功返回已有结果
func SuccessAlreadyProcessed(c *gin.Context, data interface{}) {
	write(c, Envelope{StatusCode: CodeOK, Msg: "already processed", Data: data, AlreadyProcessed: true})
}

// Error 错误响应
func Error(c *gin.Context, statusCode int, msg string) {
	write(c, Envelope{StatusCode: statusCode, Msg: msg})
}

// ErrorWithKind 业务错误响应，附带错误类别
func ErrorWithKind(c *gin.Context, statusCode int, kind, msg string) {
	write(c, Envelope{StatusCode: statusCode, Msg: msg, Kind: kind})
}

// Unauthorized 401响应
func Unauthorized(c *gin.Context, msg string) {
	Error(c, CodeUnauthorized, msg)
}

// BadRequest 400响应
func BadRequest(c *gin.Context, msg string) {
	Error(c, CodeBadRequest, msg)
}
