package router

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const adminKeyHeader = "X-Admin-Key"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	policy := newCORSPolicy(cfg)
	methodsHeader := strings.Join(defaultStrings(cfg.AllowedMethods, "GET", "POST", "PUT", "DELETE", "OPTIONS"), ", ")
	headersHeader := strings.Join(defaultStrings(cfg.AllowedHeaders, "Content-Type", "Content-Length", "Accept-Encoding", adminKeyHeader, requestIDHeader), ", ")

	return func(c *gin.Context) {
		header := c.Writer.Header()
		if allowed := policy.resolve(c.GetHeader("Origin")); allowed != "" {
			header.Set("Access-Control-Allow-Origin", allowed)
			if allowed != "*" {
				header.Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}
		header.Set("Access-Control-Allow-Headers", headersHeader)
		header.Set("Access-Control-Allow-Methods", methodsHeader)
		header.Set("Access-Control-Expose-Headers", requestIDHeader+", Retry-After")
		if cfg.MaxAge > 0 {
			header.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// corsPolicy 预先归一化的来源白名单
type corsPolicy struct {
	wildcard         bool
	allowCredentials bool
	origins          map[string]struct{}
}

func newCORSPolicy(cfg config.CORSConfig) corsPolicy {
	policy := corsPolicy{allowCredentials: cfg.AllowCredentials, origins: map[string]struct{}{}}
	for _, origin := range defaultStrings(cfg.AllowedOrigins, "*") {
		origin = strings.ToLower(strings.TrimSpace(origin))
		if origin == "*" {
			policy.wildcard = true
			continue
		}
		if origin != "" {
			policy.origins[origin] = struct{}{}
		}
	}
	return policy
}

// resolve 返回应写入 Access-Control-Allow-Origin 的值，空串表示不允许
func (p corsPolicy) resolve(origin string) string {
	if p.wildcard {
		if p.allowCredentials && origin != "" {
			return origin
		}
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

func defaultStrings(values []string, fallback ...string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), requestIDKey, requestID))
		c.Next()
	}
}

// LoggerMiddleware 结构化访问日志（跳过探活与指标抓取）
func LoggerMiddleware(base *zap.Logger) gin.HandlerFunc {
	if base == nil {
		base = zap.L()
	}
	fallback := base.Sugar()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/health" || path == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		log := fallback
		if requestID := getRequestID(c); requestID != "" {
			log = log.With(requestIDKey, requestID)
		}
		log = log.With(
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case len(c.Errors) > 0:
			log.Errorw("request", "errors", c.Errors.String())
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Warnw("request")
		default:
			log.Infow("request")
		}
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// AdminKeyMiddleware 管理端共享密钥校验；未配置密钥时拒绝所有管理请求
func AdminKeyMiddleware(adminKey string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(adminKey))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			logger.Warnw("admin_key_not_configured", "path", c.Request.URL.Path)
			response.Error(c, response.CodeForbidden, "admin api disabled")
			c.Abort()
			return
		}
		provided := []byte(strings.TrimSpace(c.GetHeader(adminKeyHeader)))
		if len(provided) == 0 {
			response.Unauthorized(c, "admin key required")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.Warnw("admin_key_rejected", "path", c.Request.URL.Path, "client_ip", c.ClientIP())
			response.Unauthorized(c, "admin key invalid")
			c.Abort()
			return
		}
		c.Next()
	}
}
