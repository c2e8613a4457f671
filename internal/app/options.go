package app

import (
	"os"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"

	"go.uber.org/zap"
)

// 启动模式
const (
	ModeAll     = "all"
	ModeAPI     = "api"
	ModeWorker  = "worker"
	ModeAccrual = "accrual" // 执行一次日收益结算后退出
)

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
	AsOf            string // accrual 模式的业务日期（YYYY-MM-DD）
}

// ValidMode 是否为支持的启动模式
func ValidMode(mode string) bool {
	switch strings.TrimSpace(mode) {
	case ModeAll, ModeAPI, ModeWorker, ModeAccrual:
		return true
	}
	return false
}

func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 && opts.Config != nil && opts.Config.Server.ShutdownTimeoutSeconds > 0 {
		opts.ShutdownTimeout = time.Duration(opts.Config.Server.ShutdownTimeoutSeconds) * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultStopTimeout
	}
	opts.Mode = strings.TrimSpace(opts.Mode)
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	return opts
}
