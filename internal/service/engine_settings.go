package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/constants"

	"github.com/shopspring/decimal"
)

// EngineSettings 引擎运行参数（来自配置文件）
type EngineSettings struct {
	Location            *time.Location
	MaxWalkDepth        int
	AccrualWorkers      int
	AccrualBatchSize    int
	RunLockTTL          time.Duration
	ROIModel            string
	MaxROIMultiple      decimal.Decimal
	DurationDays        int
	DefaultDailyPercent decimal.Decimal
	CommissionOnROI     bool
	BinaryVolumeOnROI   bool
	EarlyWindowDays     int
	EarlyPenaltyPercent decimal.Decimal
	LatePenaltyPercent  decimal.Decimal
}

// DefaultEngineSettings 默认引擎参数
func DefaultEngineSettings() EngineSettings {
	return EngineSettings{
		Location:            time.UTC,
		MaxWalkDepth:        constants.MaxWalkDepthLimit,
		AccrualWorkers:      4,
		AccrualBatchSize:    constants.DefaultAccrualBatch,
		RunLockTTL:          time.Hour,
		ROIModel:            constants.ROIModelCapped,
		MaxROIMultiple:      decimal.NewFromInt(2),
		DurationDays:        300,
		DefaultDailyPercent: decimal.RequireFromString("0.5"),
		EarlyWindowDays:     30,
		EarlyPenaltyPercent: decimal.NewFromInt(15),
		LatePenaltyPercent:  decimal.NewFromInt(5),
	}
}

// NewEngineSettings 由配置文件构建引擎参数
func NewEngineSettings(engine config.EngineConfig, roi config.ROIConfig, stop config.StopConfig) (EngineSettings, error) {
	settings := DefaultEngineSettings()

	tz := strings.TrimSpace(engine.Timezone)
	if tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return settings, fmt.Errorf("%w: engine.timezone %q: %v", ErrConfigurationMissing, tz, err)
		}
		settings.Location = loc
	}
	if engine.MaxWalkDepth > 0 {
		settings.MaxWalkDepth = engine.MaxWalkDepth
	}
	if engine.AccrualWorkers > 0 {
		settings.AccrualWorkers = engine.AccrualWorkers
	}
	if engine.AccrualBatchSize > 0 {
		settings.AccrualBatchSize = engine.AccrualBatchSize
	}
	if engine.RunLockSeconds > 0 {
		settings.RunLockTTL = time.Duration(engine.RunLockSeconds) * time.Second
	}

	model := strings.ToLower(strings.TrimSpace(roi.Model))
	switch model {
	case "", constants.ROIModelCapped:
		settings.ROIModel = constants.ROIModelCapped
	case constants.ROIModelLifetime:
		settings.ROIModel = constants.ROIModelLifetime
	default:
		return settings, fmt.Errorf("%w: roi.model %q", ErrConfigurationMissing, roi.Model)
	}
	if roi.MaxROIMultiple > 0 {
		settings.MaxROIMultiple = decimal.NewFromFloat(roi.MaxROIMultiple)
	}
	if roi.DurationDays >= 0 {
		settings.DurationDays = roi.DurationDays
	}
	if roi.DefaultDailyPercent > 0 {
		settings.DefaultDailyPercent = decimal.NewFromFloat(roi.DefaultDailyPercent)
	}
	settings.CommissionOnROI = roi.CommissionOnROI
	settings.BinaryVolumeOnROI = roi.BinaryVolumeOnROI

	if stop.EarlyWindowDays > 0 {
		settings.EarlyWindowDays = stop.EarlyWindowDays
	}
	if stop.EarlyPenaltyPercent >= 0 {
		settings.EarlyPenaltyPercent = decimal.NewFromFloat(stop.EarlyPenaltyPercent)
	}
	if stop.LatePenaltyPercent >= 0 {
		settings.LatePenaltyPercent = decimal.NewFromFloat(stop.LatePenaltyPercent)
	}
	return settings.normalized(), nil
}

func (s EngineSettings) normalized() EngineSettings {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.MaxWalkDepth <= 0 || s.MaxWalkDepth > constants.MaxWalkDepthLimit {
		s.MaxWalkDepth = constants.MaxWalkDepthLimit
	}
	if s.AccrualWorkers <= 0 {
		s.AccrualWorkers = 1
	}
	if s.AccrualBatchSize <= 0 {
		s.AccrualBatchSize = constants.DefaultAccrualBatch
	}
	return s
}

// packageROIMultiple 新建投资包的封顶倍数（lifetime 模型为 0 即不封顶）
func (s EngineSettings) packageROIMultiple() decimal.Decimal {
	if s.ROIModel == constants.ROIModelLifetime {
		return decimal.Zero
	}
	return s.MaxROIMultiple
}

// packageDurationDays 新建投资包的周期（lifetime 模型不限）
func (s EngineSettings) packageDurationDays() int {
	if s.ROIModel == constants.ROIModelLifetime {
		return 0
	}
	return s.DurationDays
}

// calendarDate 按引擎时区截断为自然日
func (s EngineSettings) calendarDate(t time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// daysBetween 两个时间点之间相差的自然日数
func (s EngineSettings) daysBetween(from, to time.Time) int {
	start := s.calendarDate(from)
	end := s.calendarDate(to)
	// 以 UTC 日期差计算，避开夏令时的 23/25 小时
	startUTC := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endUTC := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(endUTC.Sub(startUTC).Hours() / 24)
}

// formatDate 格式化为 YYYY-MM-DD
func (s EngineSettings) formatDate(t time.Time) string {
	return s.calendarDate(t).Format(constants.DateLayout)
}

// parseDateKey 解析 YYYY-MM-DD 日期键（引擎时区零点），空串或格式错误返回 false
func (s EngineSettings) parseDateKey(key string) (time.Time, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	parsed, err := time.ParseInLocation(constants.DateLayout, key, loc)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// ClosingDay 最近一个已结束的业务日（引擎时区的昨天零点）
func ClosingDay(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, loc)
}

// ParseAsOf 解析 YYYY-MM-DD 业务日期，为空时取最近一个已结束的业务日
func ParseAsOf(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ClosingDay(time.Now(), loc), nil
	}
	parsed, err := time.ParseInLocation(constants.DateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of %q", ErrInvalidInput, raw)
	}
	return parsed, nil
}
