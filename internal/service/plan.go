package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MatchingTier 对碰档位：可碰业绩达到 MinPairVolume 时按 Percent 计奖
type MatchingTier struct {
	MinPairVolume models.Money    `json:"min_pair_volume"`
	Percent       decimal.Decimal `json:"percent"`
}

// PackageTier 投资档位
type PackageTier struct {
	Name           string          `json:"name"`
	MinPrincipal   models.Money    `json:"min_principal"`
	DailyPercent   decimal.Decimal `json:"daily_percent"`
	UnlockedLevels int             `json:"unlocked_levels"`
}

// CompensationPlan 奖金方案（启动时从配置表加载一次，只读）
type CompensationPlan struct {
	LevelPercents    []decimal.Decimal       `json:"level_percents"`
	MatchingTiers    []MatchingTier          `json:"matching_tiers"`
	MatchingDailyCap models.Money            `json:"matching_daily_cap"`
	PackageTiers     []PackageTier           `json:"package_tiers"`
	Ranks            []models.RankDefinition `json:"ranks"`
}

// LevelPercent 第 level 代（从 1 开始）的比例
func (p *CompensationPlan) LevelPercent(level int) (decimal.Decimal, bool) {
	if p == nil || level < 1 || level > len(p.LevelPercents) {
		return decimal.Zero, false
	}
	return p.LevelPercents[level-1], true
}

// MatchingTierFor 可碰业绩对应的最高档位
func (p *CompensationPlan) MatchingTierFor(matchable models.Money) (MatchingTier, bool) {
	var found MatchingTier
	ok := false
	if p == nil {
		return found, false
	}
	for _, tier := range p.MatchingTiers {
		if tier.MinPairVolume.Decimal.LessThanOrEqual(matchable.Decimal) {
			found = tier
			ok = true
		}
	}
	return found, ok
}

// TierForPrincipal 本金匹配的最高投资档位
func (p *CompensationPlan) TierForPrincipal(principal models.Money) (PackageTier, bool) {
	var found PackageTier
	ok := false
	if p == nil {
		return found, false
	}
	for _, tier := range p.PackageTiers {
		if tier.MinPrincipal.Decimal.LessThanOrEqual(principal.Decimal) {
			found = tier
			ok = true
		}
	}
	return found, ok
}

// HasRanks 是否配置了等级表
func (p *CompensationPlan) HasRanks() bool {
	return p != nil && len(p.Ranks) > 0
}

type planDocument struct {
	LevelPercents    []decimal.Decimal `json:"level_percents"`
	MatchingTiers    []MatchingTier    `json:"matching_tiers"`
	MatchingDailyCap models.Money      `json:"matching_daily_cap"`
	PackageTiers     []PackageTier     `json:"package_tiers"`
}

// ParseCompensationPlan 解析配置表中的奖金方案文档
func ParseCompensationPlan(raw models.JSON, ranks []models.RankDefinition) (*CompensationPlan, error) {
	if len(raw) == 0 {
		return nil, ErrPlanMissing
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, err)
	}
	var doc planDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlanInvalid, err)
	}
	plan := &CompensationPlan{
		LevelPercents:    doc.LevelPercents,
		MatchingTiers:    doc.MatchingTiers,
		MatchingDailyCap: models.NewMoneyFromDecimal(doc.MatchingDailyCap.Decimal),
		PackageTiers:     doc.PackageTiers,
		Ranks:            append([]models.RankDefinition(nil), ranks...),
	}
	sort.SliceStable(plan.MatchingTiers, func(i, j int) bool {
		return plan.MatchingTiers[i].MinPairVolume.Decimal.LessThan(plan.MatchingTiers[j].MinPairVolume.Decimal)
	})
	sort.SliceStable(plan.PackageTiers, func(i, j int) bool {
		return plan.PackageTiers[i].MinPrincipal.Decimal.LessThan(plan.PackageTiers[j].MinPrincipal.Decimal)
	})
	sort.SliceStable(plan.Ranks, func(i, j int) bool {
		return plan.Ranks[i].Level < plan.Ranks[j].Level
	})
	if err := ValidateCompensationPlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ValidateCompensationPlan 校验奖金方案
func ValidateCompensationPlan(plan *CompensationPlan) error {
	if plan == nil {
		return ErrPlanMissing
	}
	if len(plan.LevelPercents) == 0 {
		return fmt.Errorf("%w: level_percents is empty", ErrPlanInvalid)
	}
	for i, percent := range plan.LevelPercents {
		if percent.IsNegative() || percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: level %d percent out of range", ErrPlanInvalid, i+1)
		}
	}
	for i, tier := range plan.MatchingTiers {
		if tier.Percent.IsNegative() || tier.Percent.GreaterThan(hundred) {
			return fmt.Errorf("%w: matching tier %d percent out of range", ErrPlanInvalid, i+1)
		}
		if tier.MinPairVolume.IsNegative() {
			return fmt.Errorf("%w: matching tier %d min_pair_volume negative", ErrPlanInvalid, i+1)
		}
	}
	if plan.MatchingDailyCap.IsNegative() {
		return fmt.Errorf("%w: matching_daily_cap negative", ErrPlanInvalid)
	}
	for i, tier := range plan.PackageTiers {
		if strings.TrimSpace(tier.Name) == "" {
			return fmt.Errorf("%w: package tier %d has no name", ErrPlanInvalid, i+1)
		}
		if tier.DailyPercent.IsNegative() || tier.DailyPercent.GreaterThan(hundred) {
			return fmt.Errorf("%w: package tier %s daily_percent out of range", ErrPlanInvalid, tier.Name)
		}
		if tier.UnlockedLevels < 0 {
			return fmt.Errorf("%w: package tier %s unlocked_levels negative", ErrPlanInvalid, tier.Name)
		}
	}
	return ValidateRankDefinitions(plan.Ranks)
}

// ValidateRankDefinitions 等级按 level 升序且门槛单调不减
func ValidateRankDefinitions(ranks []models.RankDefinition) error {
	for i := 1; i < len(ranks); i++ {
		prev, cur := ranks[i-1], ranks[i]
		if cur.Level <= prev.Level {
			return fmt.Errorf("%w: duplicate rank level %d", ErrRankTableInvalid, cur.Level)
		}
		if cur.MinDirects < prev.MinDirects ||
			cur.MinTeamVolume.Decimal.LessThan(prev.MinTeamVolume.Decimal) ||
			cur.MinPersonalVolume.Decimal.LessThan(prev.MinPersonalVolume.Decimal) {
			return fmt.Errorf("%w: rank %d thresholds below rank %d", ErrRankTableInvalid, cur.Level, prev.Level)
		}
	}
	for _, rank := range ranks {
		if rank.Level <= 0 {
			return fmt.Errorf("%w: rank level must be positive", ErrRankTableInvalid)
		}
		if rank.RewardAmount.IsNegative() {
			return fmt.Errorf("%w: rank %d reward negative", ErrRankTableInvalid, rank.Level)
		}
	}
	return nil
}

// BuildPlanSeed 将配置文件中的方案转换为配置表初始数据
func BuildPlanSeed(cfg config.PlanConfig, roi config.ROIConfig) (models.JSON, []models.RankDefinition) {
	levels := make([]interface{}, 0, len(cfg.LevelPercents))
	for _, percent := range cfg.LevelPercents {
		levels = append(levels, decimal.NewFromFloat(percent).String())
	}
	tiers := make([]interface{}, 0, len(cfg.MatchingTiers))
	for _, tier := range cfg.MatchingTiers {
		tiers = append(tiers, map[string]interface{}{
			"min_pair_volume": decimal.NewFromFloat(tier.MinPairVolume).String(),
			"percent":         decimal.NewFromFloat(tier.Percent).String(),
		})
	}
	if len(tiers) == 0 {
		tiers = append(tiers, map[string]interface{}{"min_pair_volume": "0", "percent": "10"})
	}
	packages := make([]interface{}, 0, len(cfg.PackageTiers))
	for _, tier := range cfg.PackageTiers {
		daily := tier.DailyPercent
		if daily <= 0 {
			daily = roi.DefaultDailyPercent
		}
		packages = append(packages, map[string]interface{}{
			"name":            tier.Name,
			"min_principal":   decimal.NewFromFloat(tier.MinPrincipal).String(),
			"daily_percent":   decimal.NewFromFloat(daily).String(),
			"unlocked_levels": tier.UnlockedLevels,
		})
	}
	doc := models.JSON{
		"level_percents":     levels,
		"matching_tiers":     tiers,
		"matching_daily_cap": decimal.NewFromFloat(cfg.MatchingDailyCap).String(),
		"package_tiers":      packages,
	}

	ranks := make([]models.RankDefinition, 0, len(cfg.Ranks))
	for _, rank := range cfg.Ranks {
		ranks = append(ranks, models.RankDefinition{
			Level:             rank.Level,
			Name:              rank.Name,
			MinDirects:        rank.MinDirects,
			MinTeamVolume:     models.NewMoneyFromDecimal(decimal.NewFromFloat(rank.MinTeamVolume)),
			MinPersonalVolume: models.NewMoneyFromDecimal(decimal.NewFromFloat(rank.MinPersonalVolume)),
			RewardAmount:      models.NewMoneyFromDecimal(decimal.NewFromFloat(rank.RewardAmount)),
		})
	}
	return doc, ranks
}
