package config

import (
	"fmt"
	"strings"

	"github.com/asterdex-mlm/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Engine    EngineConfig    `mapstructure:"engine"`
	ROI       ROIConfig       `mapstructure:"roi"`
	Stop      StopConfig      `mapstructure:"stop"`
	Plan      PlanConfig      `mapstructure:"plan"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   string `mapstructure:"port"`
	Mode                   string `mapstructure:"mode"` // debug / release
	AdminKey               string `mapstructure:"admin_key"`
	ReadTimeoutSeconds     int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int    `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// Addr 监听地址
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Level:      c.Level,
		Console:    c.Console,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string             `mapstructure:"driver"`    // 数据库驱动（sqlite/postgres）
	DSN      string             `mapstructure:"dsn"`       // 数据库连接串
	LogLevel string             `mapstructure:"log_level"` // SQL 日志级别
	Pool     DatabasePoolConfig `mapstructure:"pool"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig 会员侧写接口限流（需启用 Redis）
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
}

// EngineConfig 奖金引擎运行参数
type EngineConfig struct {
	Timezone         string `mapstructure:"timezone"`
	MaxWalkDepth     int    `mapstructure:"max_walk_depth"`
	AccrualWorkers   int    `mapstructure:"accrual_workers"`
	AccrualBatchSize int    `mapstructure:"accrual_batch_size"`
	AccrualCron      string `mapstructure:"accrual_cron"`
	RankCron         string `mapstructure:"rank_cron"`
	ReconcileCron    string `mapstructure:"reconcile_cron"`
	RunLockSeconds   int    `mapstructure:"run_lock_seconds"`
}

// ROIConfig 日收益模型配置
type ROIConfig struct {
	Model               string  `mapstructure:"model"` // capped / lifetime
	MaxROIMultiple      float64 `mapstructure:"max_roi_multiple"`
	DurationDays        int     `mapstructure:"duration_days"`
	DefaultDailyPercent float64 `mapstructure:"default_daily_percent"`
	CommissionOnROI     bool    `mapstructure:"commission_on_roi"`
	BinaryVolumeOnROI   bool    `mapstructure:"binary_volume_on_roi"`
}

// StopConfig 提前停止违约金配置
type StopConfig struct {
	EarlyWindowDays     int     `mapstructure:"early_window_days"`
	EarlyPenaltyPercent float64 `mapstructure:"early_penalty_percent"`
	LatePenaltyPercent  float64 `mapstructure:"late_penalty_percent"`
}

// PlanConfig 首次启动写入配置表的奖金方案
type PlanConfig struct {
	LevelPercents    []float64            `mapstructure:"level_percents"`
	MatchingTiers    []MatchingTierConfig `mapstructure:"matching_tiers"`
	MatchingDailyCap float64              `mapstructure:"matching_daily_cap"`
	PackageTiers     []PackageTierConfig  `mapstructure:"package_tiers"`
	Ranks            []RankConfig         `mapstructure:"ranks"`
}

// MatchingTierConfig 对碰档位
type MatchingTierConfig struct {
	MinPairVolume float64 `mapstructure:"min_pair_volume"`
	Percent       float64 `mapstructure:"percent"`
}

// PackageTierConfig 投资档位
type PackageTierConfig struct {
	Name           string  `mapstructure:"name"`
	MinPrincipal   float64 `mapstructure:"min_principal"`
	DailyPercent   float64 `mapstructure:"daily_percent"`
	UnlockedLevels int     `mapstructure:"unlocked_levels"`
}

// RankConfig 等级门槛
type RankConfig struct {
	Level             int     `mapstructure:"level"`
	Name              string  `mapstructure:"name"`
	MinDirects        int     `mapstructure:"min_directs"`
	MinTeamVolume     float64 `mapstructure:"min_team_volume"`
	MinPersonalVolume float64 `mapstructure:"min_personal_volume"`
	RewardAmount      float64 `mapstructure:"reward_amount"`
}

// Load 从 config.yml 加载配置
func Load() *Config {
	v := viper.GetViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")     // 从当前目录查找
	v.AddConfigPath("../")   // 如果从 cmd/server 运行
	v.AddConfigPath("./etc") // etc 文件夹

	// 环境变量支持（例如 engine.timezone -> ENGINE_TIMEZONE）
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", v.ConfigFileUsed())
	}

	cfg, err := Decode(v)
	if err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return cfg
}

// Decode 在默认值之上解析配置并归一化引擎参数
func Decode(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.Engine.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "mlm-engine.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.level", "")
	v.SetDefault("log.console", false)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/mlm.db")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "mlm")
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.queues", map[string]int{
		"default":  5,
		"critical": 10,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"X-Admin-Key",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.max_requests", 30)

	v.SetDefault("engine.timezone", "UTC")
	v.SetDefault("engine.max_walk_depth", 30)
	v.SetDefault("engine.accrual_workers", 8)
	v.SetDefault("engine.accrual_batch_size", 500)
	v.SetDefault("engine.accrual_cron", "5 0 * * *")
	v.SetDefault("engine.rank_cron", "30 0 * * *")
	v.SetDefault("engine.reconcile_cron", "0 3 * * *")
	v.SetDefault("engine.run_lock_seconds", 3600)
	v.SetDefault("roi.model", "capped")
	v.SetDefault("roi.max_roi_multiple", 2)
	v.SetDefault("roi.duration_days", 300)
	v.SetDefault("roi.default_daily_percent", 0.5)
	v.SetDefault("roi.commission_on_roi", false)
	v.SetDefault("roi.binary_volume_on_roi", false)
	v.SetDefault("stop.early_window_days", 30)
	v.SetDefault("stop.early_penalty_percent", 15)
	v.SetDefault("stop.late_penalty_percent", 5)
	v.SetDefault("plan.level_percents", []float64{10, 5, 3})
	v.SetDefault("plan.matching_daily_cap", 1000)
}

func (c *EngineConfig) normalize() {
	if c.MaxWalkDepth <= 0 || c.MaxWalkDepth > 30 {
		c.MaxWalkDepth = 30
	}
	if c.AccrualWorkers <= 0 {
		c.AccrualWorkers = 1
	}
	if c.AccrualBatchSize <= 0 {
		c.AccrualBatchSize = 500
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = "UTC"
	}
}
