package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyJSONRoundsToCents(t *testing.T) {
	var payload struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a":"12.345","b":7.1}`), &payload); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if payload.A.String() != "12.35" || payload.B.String() != "7.10" {
		t.Fatalf("unexpected amounts: %s %s", payload.A, payload.B)
	}
	out, err := json.Marshal(payload.B)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(out) != `"7.10"` {
		t.Fatalf("marshal want \"7.10\" got %s", out)
	}
}

func TestMoneyPercentAndParse(t *testing.T) {
	amount, err := ParseMoney(" 1000 ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := amount.Percent(decimal.RequireFromString("0.35")).String(); got != "3.50" {
		t.Fatalf("percent want 3.50 got %s", got)
	}
	if _, err := ParseMoney("abc"); err == nil {
		t.Fatalf("expected parse error")
	}
	if got := MinMoney(amount, ZeroMoney()); got.IsPositive() {
		t.Fatalf("min should be zero, got %s", got)
	}
}

func TestMoneyScan(t *testing.T) {
	var m Money
	if err := m.Scan("15.0"); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if m.String() != "15.00" {
		t.Fatalf("scan want 15.00 got %s", m)
	}
	if err := m.Scan(float64(-2.5)); err != nil {
		t.Fatalf("scan float failed: %v", err)
	}
	if !m.IsNegative() {
		t.Fatalf("expected negative, got %s", m)
	}
}
