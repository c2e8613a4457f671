package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func decodeYAML(t *testing.T, raw string) *Config {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(raw)); err != nil {
		t.Fatalf("read yaml failed: %v", err)
	}
	cfg, err := Decode(v)
	if err != nil {
		t.Fatalf("decode config failed: %v", err)
	}
	return cfg
}

func TestDecodeDefaults(t *testing.T) {
	cfg := decodeYAML(t, "server:\n  port: \"9090\"\n")
	if cfg.Server.Addr() != "0.0.0.0:9090" {
		t.Fatalf("addr want 0.0.0.0:9090 got %s", cfg.Server.Addr())
	}
	if cfg.Database.Driver != "sqlite" || cfg.Engine.Timezone != "UTC" {
		t.Fatalf("unexpected defaults: driver=%s tz=%s", cfg.Database.Driver, cfg.Engine.Timezone)
	}
	if cfg.ROI.Model != "capped" || cfg.ROI.MaxROIMultiple != 2 || cfg.ROI.DurationDays != 300 {
		t.Fatalf("unexpected roi defaults: %+v", cfg.ROI)
	}
	if cfg.Stop.EarlyWindowDays != 30 || cfg.Stop.EarlyPenaltyPercent != 15 || cfg.Stop.LatePenaltyPercent != 5 {
		t.Fatalf("unexpected stop defaults: %+v", cfg.Stop)
	}
	if len(cfg.Plan.LevelPercents) != 3 || cfg.Plan.LevelPercents[0] != 10 {
		t.Fatalf("unexpected plan defaults: %v", cfg.Plan.LevelPercents)
	}
	if cfg.Queue.Queues["critical"] != 10 {
		t.Fatalf("critical queue weight want 10 got %d", cfg.Queue.Queues["critical"])
	}
}

func TestDecodePlanAndEngine(t *testing.T) {
	cfg := decodeYAML(t, `
engine:
  timezone: ""
  max_walk_depth: 99
  accrual_workers: 0
roi:
  model: lifetime
  commission_on_roi: true
plan:
  level_percents: [8, 4]
  matching_tiers:
    - min_pair_volume: 0
      percent: 10
    - min_pair_volume: 5000
      percent: 8
  package_tiers:
    - name: starter
      min_principal: 100
      unlocked_levels: 1
  ranks:
    - level: 1
      name: Bronze
      min_directs: 2
      reward_amount: 50
`)
	if cfg.Engine.MaxWalkDepth != 30 || cfg.Engine.AccrualWorkers != 1 || cfg.Engine.Timezone != "UTC" {
		t.Fatalf("engine config not normalized: %+v", cfg.Engine)
	}
	if cfg.ROI.Model != "lifetime" || !cfg.ROI.CommissionOnROI {
		t.Fatalf("unexpected roi: %+v", cfg.ROI)
	}
	if len(cfg.Plan.MatchingTiers) != 2 || cfg.Plan.MatchingTiers[1].MinPairVolume != 5000 {
		t.Fatalf("unexpected matching tiers: %+v", cfg.Plan.MatchingTiers)
	}
	if len(cfg.Plan.PackageTiers) != 1 || cfg.Plan.PackageTiers[0].Name != "starter" {
		t.Fatalf("unexpected package tiers: %+v", cfg.Plan.PackageTiers)
	}
	if len(cfg.Plan.Ranks) != 1 || cfg.Plan.Ranks[0].RewardAmount != 50 {
		t.Fatalf("unexpected ranks: %+v", cfg.Plan.Ranks)
	}
}
