package service

import (
	"errors"
	"testing"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/models"

	"github.com/shopspring/decimal"
)

func TestParseCompensationPlanFromSeed(t *testing.T) {
	raw, ranks := BuildPlanSeed(config.PlanConfig{
		LevelPercents: []float64{10, 5, 3},
		MatchingTiers: []config.MatchingTierConfig{
			{MinPairVolume: 1000, Percent: 8},
			{MinPairVolume: 0, Percent: 10},
		},
		MatchingDailyCap: 500,
		PackageTiers: []config.PackageTierConfig{
			{Name: "gold", MinPrincipal: 5000, DailyPercent: 0.8, UnlockedLevels: 3},
			{Name: "starter", MinPrincipal: 100, UnlockedLevels: 1},
		},
		Ranks: []config.RankConfig{
			{Level: 1, Name: "Bronze", MinDirects: 2, RewardAmount: 50},
			{Level: 2, Name: "Silver", MinDirects: 4, MinTeamVolume: 5000, RewardAmount: 200},
		},
	}, config.ROIConfig{DefaultDailyPercent: 0.5})

	plan, err := ParseCompensationPlan(raw, ranks)
	if err != nil {
		t.Fatalf("parse plan failed: %v", err)
	}
	if len(plan.LevelPercents) != 3 || !plan.LevelPercents[1].Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected level percents: %v", plan.LevelPercents)
	}
	assertMoney(t, "daily cap", plan.MatchingDailyCap, "500")

	low, ok := plan.MatchingTierFor(testMoney("500"))
	if !ok || !low.Percent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("500 matchable should use the 10%% tier, got %+v", low)
	}
	high, ok := plan.MatchingTierFor(testMoney("1500"))
	if !ok || !high.Percent.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("1500 matchable should use the 8%% tier, got %+v", high)
	}

	starter, ok := plan.TierForPrincipal(testMoney("999"))
	if !ok || starter.Name != "starter" {
		t.Fatalf("999 principal should resolve to starter, got %+v", starter)
	}
	if !starter.DailyPercent.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("starter should inherit default daily percent, got %s", starter.DailyPercent.String())
	}
	if _, ok := plan.TierForPrincipal(testMoney("50")); ok {
		t.Fatalf("principal below every tier should not resolve")
	}
	if !plan.HasRanks() || plan.Ranks[1].Name != "Silver" {
		t.Fatalf("ranks should be kept in level order")
	}
	if percent, ok := plan.LevelPercent(4); ok || !percent.IsZero() {
		t.Fatalf("level beyond the plan should not resolve")
	}
}

func TestParseCompensationPlanRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name  string
		raw   models.JSON
		ranks []models.RankDefinition
		want  error
	}{
		{name: "empty", raw: models.JSON{}, want: ErrPlanMissing},
		{name: "no levels", raw: models.JSON{"level_percents": []interface{}{}}, want: ErrPlanInvalid},
		{name: "percent above 100", raw: models.JSON{"level_percents": []interface{}{"150"}}, want: ErrPlanInvalid},
		{name: "negative cap", raw: models.JSON{"level_percents": []interface{}{"10"}, "matching_daily_cap": "-1"}, want: ErrPlanInvalid},
		{
			name: "rank thresholds decrease",
			raw:  models.JSON{"level_percents": []interface{}{"10"}},
			ranks: []models.RankDefinition{
				{Level: 1, MinDirects: 5},
				{Level: 2, MinDirects: 2},
			},
			want: ErrRankTableInvalid,
		},
	}
	for _, tc := range cases {
		_, err := ParseCompensationPlan(tc.raw, tc.ranks)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, err)
		}
		if KindOf(err) != KindConfigurationMissing {
			t.Fatalf("%s: kind want configuration_missing got %s", tc.name, KindOf(err))
		}
	}
}
