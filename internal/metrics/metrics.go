package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// LedgerEntriesTotal 流水笔数（按类型与方向）
	LedgerEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_ledger_entries_total",
		Help: "Ledger entries written, by type and direction",
	}, []string{"type", "direction"})

	// LedgerAmountTotal 流水金额合计
	LedgerAmountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_ledger_amount_total",
		Help: "Absolute ledger amount written, by type",
	}, []string{"type"})

	// AccrualPackagesTotal 日收益处理结果
	AccrualPackagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_accrual_packages_total",
		Help: "Packages processed by the daily accrual, by outcome",
	}, []string{"outcome"})

	// AccrualRunDuration 日收益批处理耗时
	AccrualRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mlm_accrual_run_duration_seconds",
		Help:    "Daily accrual batch duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	})

	// CommissionCreditsTotal 奖金发放笔数
	CommissionCreditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_commission_credits_total",
		Help: "Commission credits by kind and outcome",
	}, []string{"kind", "outcome"})

	// PlacementsTotal 二叉树安置次数
	PlacementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_placements_total",
		Help: "Tree placements by outcome",
	}, []string{"outcome"})

	// RankUpgradesTotal 等级晋升次数
	RankUpgradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mlm_rank_upgrades_total",
		Help: "Rank upgrades applied",
	})

	// ReconcileDriftGauge 最近一次对账发现的偏差数
	ReconcileDriftGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mlm_reconcile_drift",
		Help: "Drift findings from the latest reconciliation run, by check",
	}, []string{"check"})

	// HTTPRequestsTotal HTTP 请求数
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mlm_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration HTTP 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mlm_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// ObserveLedgerEntry 记录一笔流水
func ObserveLedgerEntry(entryType, direction string, amount decimal.Decimal) {
	LedgerEntriesTotal.WithLabelValues(entryType, direction).Inc()
	value, _ := amount.Abs().Float64()
	LedgerAmountTotal.WithLabelValues(entryType).Add(value)
}

// Handler Prometheus 抓取入口
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware 记录请求指标（path 使用路由模板避免高基数）
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
