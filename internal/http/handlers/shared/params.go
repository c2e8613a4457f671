package shared

import (
	"strconv"
	"strings"

	"github.com/asterdex-mlm/internal/http/response"

	"github.com/gin-gonic/gin"
)

// ParsePathUint 解析路径中的正整数 ID。
func ParsePathUint(c *gin.Context, key string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(key))
	if raw == "" {
		return 0, false
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

// ParseQueryUint 解析查询参数中的 ID，缺省返回 0。
func ParseQueryUint(c *gin.Context, key string) uint {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return uint(parsed)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ParsePageQuery 读取 page / page_size，非法值回落到默认
func ParsePageQuery(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(strings.TrimSpace(c.Query("page")))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(strings.TrimSpace(c.Query("page_size")))
	switch {
	case err != nil || pageSize <= 0:
		pageSize = defaultPageSize
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	return page, pageSize
}

// BuildPagination 构造分页信息。
func BuildPagination(page, pageSize int, total int64) response.Pagination {
	return response.NewPagination(page, pageSize, total)
}
