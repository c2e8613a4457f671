package repository

import (
	"strings"

	"gorm.io/gorm"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// isPostgres 按方言名判断，nil 视为 sqlite
func isPostgres(db *gorm.DB) bool {
	if db == nil || db.Dialector == nil {
		return false
	}
	switch strings.ToLower(db.Dialector.Name()) {
	case "postgres", "postgresql":
		return true
	}
	return false
}

// likeClause 生成多列 OR 模糊匹配条件与参数，postgres 用 ILIKE
func likeClause(postgres bool, keyword string, columns []string) (string, []interface{}) {
	op := "LIKE"
	if postgres {
		op = "ILIKE"
	}
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	conds := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, column := range columns {
		if column = strings.TrimSpace(column); column == "" {
			continue
		}
		conds = append(conds, column+" "+op+` ? ESCAPE '\'`)
		args = append(args, pattern)
	}
	return strings.Join(conds, " OR "), args
}

// applyLikeSearch 关键字为空时原样返回
func applyLikeSearch(query *gorm.DB, search string, columns ...string) *gorm.DB {
	search = strings.TrimSpace(search)
	if query == nil || search == "" {
		return query
	}
	cond, args := likeClause(isPostgres(query), search, columns)
	if len(args) == 0 {
		return query
	}
	return query.Where(cond, args...)
}
