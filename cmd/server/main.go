package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/asterdex-mlm/internal/app"
	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/logger"

	"github.com/gin-gonic/gin"
)

const minAdminKeyLength = 24

func main() {
	var (
		mode string
		asOf string
	)
	flag.StringVar(&mode, "mode", app.ModeAll, "运行模式: all | api | worker | accrual")
	flag.StringVar(&asOf, "as-of", "", "accrual 模式的结算日 (YYYY-MM-DD)，默认昨天（引擎时区）")
	flag.Parse()

	if !app.ValidMode(mode) {
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	defer logger.Sync()
	stdLog := logger.StdLogger()
	stdLog.Printf("mlm engine starting, mode=%s", mode)

	if problem := adminKeyProblem(cfg.Server.AdminKey); problem != "" {
		servesAdmin := mode == app.ModeAll || mode == app.ModeAPI
		if cfg.Server.Mode == "release" && servesAdmin {
			stdLog.Fatalf("server.admin_key %s", problem)
		}
		logger.Warnw("admin_key_weak", "reason", problem)
	}

	if err := app.OpenDatabase(cfg.Database); err != nil {
		stdLog.Fatalf("%v", err)
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	err := app.Run(app.Options{
		Config:  cfg,
		Logger:  logger.S(),
		Signals: []os.Signal{syscall.SIGINT, syscall.SIGTERM},
		Mode:    mode,
		AsOf:    asOf,
	})
	if err != nil {
		stdLog.Fatalf("run failed: %v", err)
	}
}

// adminKeyProblem 返回管理密钥的问题描述，合格时返回空串
func adminKeyProblem(key string) string {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "is not configured, admin API disabled"
	case len(key) < minAdminKeyLength:
		return fmt.Sprintf("is shorter than %d characters", minAdminKeyLength)
	case strings.Contains(strings.ToLower(key), "change-me"):
		return "still uses the placeholder value"
	}
	return ""
}
