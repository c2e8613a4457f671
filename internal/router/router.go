package router

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/cache"
	"github.com/asterdex-mlm/internal/config"
	adminhandlers "github.com/asterdex-mlm/internal/http/handlers/admin"
	publichandlers "github.com/asterdex-mlm/internal/http/handlers/public"
	"github.com/asterdex-mlm/internal/http/response"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/provider"

	"github.com/gin-gonic/gin"
)

const adminRoutePrefix = "/api/v1/admin/"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（会员侧/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	store := cache.Default()
	redisClient := store.Client()
	writeRule := RateLimitRule{
		Prefix:        store.Key("rate", "member_write"),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(metrics.GinMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 会员侧接口
		members := apiV1.Group("/members")
		{
			members.POST("", RateLimitMiddleware(redisClient, writeRule, KeyByIPAndJSONField("username")), publicHandler.Enroll)
			members.GET("/:id", publicHandler.GetMember)
			members.GET("/:id/wallet", publicHandler.GetWallet)
			members.GET("/:id/transactions", publicHandler.GetTransactions)
			members.GET("/:id/packages", publicHandler.ListMemberPackages)
			members.GET("/:id/rank", publicHandler.GetRankStatus)
			members.GET("/:id/tree", publicHandler.GetTree)
			members.GET("/:id/upline", publicHandler.GetUpline)
		}

		packages := apiV1.Group("/packages")
		packages.Use(RateLimitMiddleware(redisClient, writeRule, KeyByIPAndJSONField("member_id")))
		{
			packages.POST("", publicHandler.PurchasePackage)
			packages.GET("/:id", publicHandler.GetPackage)
			packages.POST("/:id/stop", publicHandler.StopPackage)
			packages.POST("/:id/withdraw", publicHandler.WithdrawPrincipal)
		}

		// 管理端接口（共享密钥）
		adminGroup := apiV1.Group("/admin")
		adminGroup.Use(AdminKeyMiddleware(cfg.Server.AdminKey))
		{
			adminGroup.GET("/members", adminHandler.ListMembers)
			adminGroup.POST("/members/:id/deactivate", adminHandler.DeactivateMember)
			adminGroup.POST("/members/:id/activate", adminHandler.ActivateMember)
			adminGroup.GET("/members/:id/wallet", adminHandler.GetMemberWallet)
			adminGroup.POST("/members/:id/wallet/adjust", adminHandler.AdjustMemberWallet)
			adminGroup.POST("/members/:id/wallet/lock", adminHandler.LockMemberFunds)
			adminGroup.POST("/members/:id/wallet/unlock", adminHandler.UnlockMemberFunds)
			adminGroup.POST("/members/:id/wallet/payout", adminHandler.PayoutMemberFunds)
			adminGroup.GET("/ledger", adminHandler.ListLedgerEntries)

			adminGroup.GET("/packages", adminHandler.ListPackages)
			adminGroup.POST("/packages/:id/cancel", adminHandler.CancelPackage)

			adminGroup.POST("/volume-events", adminHandler.SubmitVolumeEvent)
			adminGroup.POST("/accrual/run", adminHandler.RunAccrual)
			adminGroup.POST("/ranks/evaluate", adminHandler.EvaluateRanks)
			adminGroup.POST("/reconcile", adminHandler.Reconcile)

			adminGroup.GET("/plan", adminHandler.GetPlan)
			adminGroup.POST("/plan/reload", adminHandler.ReloadPlan)
			adminGroup.GET("/routes", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminRouteCatalog(r))
			})
		}
	}

	// 指标与健康检查
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/health", healthHandler)

	return r
}

func healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "redis": "disabled"}
	status := http.StatusOK
	if models.DB == nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	} else if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if cache.Enabled() {
		checks["redis"] = "ok"
		if err := cache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

type adminRouteCatalogItem struct {
	Module string `json:"module"`
	Method string `json:"method"`
	Path   string `json:"path"`
}

func buildAdminRouteCatalog(engine *gin.Engine) []adminRouteCatalogItem {
	if engine == nil {
		return []adminRouteCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminRouteCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, adminRoutePrefix) {
			continue
		}
		key := method + ":" + item.Path
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, adminRouteCatalogItem{
			Module: deriveAdminRouteModule(item.Path),
			Method: method,
			Path:   item.Path,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Path == items[j].Path {
				return items[i].Method < items[j].Method
			}
			return items[i].Path < items[j].Path
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminRouteModule(path string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(path), adminRoutePrefix)
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	switch segments[0] {
	case "members":
		if len(segments) > 2 && segments[2] == "wallet" {
			return "wallet"
		}
		return "members"
	case "ledger":
		return "wallet"
	case "accrual", "ranks", "volume-events", "reconcile":
		return "engine"
	}
	return segments[0]
}
