package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// Money 金额，统一按 2 位小数舍入
type Money struct {
	decimal.Decimal
}

// NewMoneyFromDecimal 从 decimal 创建金额
func NewMoneyFromDecimal(amount decimal.Decimal) Money {
	return Money{Decimal: amount.Round(moneyScale)}
}

func NewMoneyFromInt(amount int64) Money {
	return Money{Decimal: decimal.NewFromInt(amount)}
}

// ParseMoney 解析十进制字符串（容忍首尾空白）
func ParseMoney(raw string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return ZeroMoney(), err
	}
	return NewMoneyFromDecimal(d), nil
}

// ZeroMoney 零金额
func ZeroMoney() Money {
	return Money{}
}

func (m Money) Add(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Add(other.Decimal))
}

func (m Money) Sub(other Money) Money {
	return NewMoneyFromDecimal(m.Decimal.Sub(other.Decimal))
}

// Percent 按百分比折算，percent=8 表示 8%
func (m Money) Percent(percent decimal.Decimal) Money {
	return NewMoneyFromDecimal(m.Decimal.Mul(percent).Div(hundred))
}

func (m Money) IsPositive() bool {
	return m.Decimal.Sign() > 0
}

func (m Money) IsNegative() bool {
	return m.Decimal.Sign() < 0
}

// MinMoney 取较小值
func MinMoney(a, b Money) Money {
	if b.Decimal.LessThan(a.Decimal) {
		return b
	}
	return a
}

// String 固定 2 位小数
func (m Money) String() string {
	return m.Decimal.StringFixed(moneyScale)
}

// MarshalJSON 以字符串输出
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON 接受 "12.5" 或 12.5
func (m *Money) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if raw == "" || raw == "null" {
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.Decimal.Round(moneyScale).Value()
}

func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = NewMoneyFromDecimal(d)
	return nil
}
