package models

import (
	"errors"

	"github.com/asterdex-mlm/internal/logger"

	"gorm.io/gorm"
)

// SeedPlan 首次启动时写入奖金方案与等级定义（已存在则跳过）
func SeedPlan(db *gorm.DB, plan JSON, ranks []RankDefinition) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	return db.Transaction(func(tx *gorm.DB) error {
		var configCount int64
		if err := tx.Model(&CommissionConfig{}).Where("config_key = ?", "commission_plan").Count(&configCount).Error; err != nil {
			return err
		}
		if configCount == 0 && len(plan) > 0 {
			if err := tx.Create(&CommissionConfig{Key: "commission_plan", ValueJSON: plan}).Error; err != nil {
				return err
			}
			logger.Infow("commission_plan_seeded", "keys", len(plan))
		}

		var rankCount int64
		if err := tx.Model(&RankDefinition{}).Count(&rankCount).Error; err != nil {
			return err
		}
		if rankCount == 0 && len(ranks) > 0 {
			rows := make([]RankDefinition, len(ranks))
			copy(rows, ranks)
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
			logger.Infow("rank_definitions_seeded", "count", len(rows))
		}
		return nil
	})
}
