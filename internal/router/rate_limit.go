package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

func (r RateLimitRule) enabled() bool {
	return r.WindowSeconds > 0 && r.MaxRequests > 0
}

func (r RateLimitRule) window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// windowCounter 在 Redis 中累加窗口计数，返回当前计数与窗口剩余时间
func windowCounter(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}

// retryAfterSeconds Retry-After 秒数，至少 1 秒
func retryAfterSeconds(ttl time.Duration, rule RateLimitRule) int {
	seconds := int((ttl + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = rule.WindowSeconds
	}
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// RateLimitMiddleware Redis 频率限制中间件，Redis 未启用或不可用时放行
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || !rule.enabled() {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = rule.Prefix + ":" + key
		}

		count, ttl, err := windowCounter(c.Request.Context(), client, key, rule.window())
		if err != nil {
			logger.FromContext(c.Request.Context()).Warnw("rate_limit_unavailable", "key", key, "error", err)
			c.Next()
			return
		}
		if count > int64(rule.MaxRequests) {
			wait := retryAfterSeconds(ttl, rule)
			c.Header("Retry-After", strconv.Itoa(wait))
			response.Error(c, response.CodeTooManyRequests, fmt.Sprintf("too many requests, retry in %ds", wait))
			c.Abort()
			return
		}
		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByIPAndJSONField 使用 JSON 字段 + IP 作为限流 key（注册按用户名，购买按会员）
func KeyByIPAndJSONField(field string) RateLimitKeyFunc {
	return func(c *gin.Context) string {
		value := strings.ToLower(readJSONField(c, field))
		if value == "" {
			return c.ClientIP()
		}
		return value + "|" + c.ClientIP()
	}
}

// readJSONField 读取请求体中的字符串或数字字段，读取后还原请求体
func readJSONField(c *gin.Context, field string) string {
	if c == nil || c.Request == nil || c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	if len(body) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	raw, ok := payload[field]
	if !ok {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number json.Number
	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}
	return ""
}
