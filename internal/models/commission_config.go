package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSON 键值对 JSON 列
type JSON map[string]interface{}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return errors.New("unsupported json column type")
}

// CommissionConfig 奖金配置表（键值存储，只读）
type CommissionConfig struct {
	Key       string    `gorm:"primarykey;column:config_key;type:varchar(64)" json:"key"` // 配置键
	ValueJSON JSON      `gorm:"type:json" json:"value"`                                   // 配置值
	UpdatedAt time.Time `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (CommissionConfig) TableName() string {
	return "commission_config"
}
