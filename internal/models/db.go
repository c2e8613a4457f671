package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	applog "github.com/asterdex-mlm/internal/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB 全局连接，InitDB 之后可用
var DB *gorm.DB

const slowQueryThreshold = 500 * time.Millisecond

// DBPoolConfig 连接池与 SQL 日志配置
type DBPoolConfig struct {
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeSeconds int
	ConnMaxIdleTimeSeconds int
	LogLevel               string
}

// OpenDB 按驱动打开连接并应用连接池参数
func OpenDB(driver, dsn string, pool DBPoolConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(driver, dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(pool.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	pool.apply(sqlDB)
	return db, nil
}

// InitDB 打开连接并设置全局 DB
func InitDB(driver, dsn string, pool DBPoolConfig) error {
	db, err := OpenDB(driver, dsn, pool)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func dialectorFor(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres", "postgresql":
		return postgres.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database driver: %s", driver)
}

// newGormLogger SQL 日志走 zap 输出
func newGormLogger(level string) gormlogger.Interface {
	var lvl gormlogger.LogLevel
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		lvl = gormlogger.Silent
	case "error":
		lvl = gormlogger.Error
	case "info":
		lvl = gormlogger.Info
	default:
		lvl = gormlogger.Warn
	}
	return gormlogger.New(applog.StdLogger(), gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

func (p DBPoolConfig) apply(sqlDB *sql.DB) {
	if p.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	}
	if p.MaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	}
	if p.ConnMaxLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(p.ConnMaxLifetimeSeconds) * time.Second)
	}
	if p.ConnMaxIdleTimeSeconds > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(p.ConnMaxIdleTimeSeconds) * time.Second)
	}
}

// AutoMigrate 迁移全局连接
func AutoMigrate() error {
	return MigrateSchema(DB)
}

// MigrateSchema 对指定连接建表（测试用内存库）
func MigrateSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	return db.AutoMigrate(
		&Member{},
		&TreeNode{},
		&Package{},
		&WalletAccount{},
		&LedgerEntry{},
		&VolumeEvent{},
		&RankDefinition{},
		&RankAchievement{},
		&CommissionConfig{},
	)
}
