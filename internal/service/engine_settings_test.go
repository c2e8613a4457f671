package service

import (
	"errors"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/config"
	"github.com/asterdex-mlm/internal/constants"
)

func TestNewEngineSettings(t *testing.T) {
	settings, err := NewEngineSettings(
		config.EngineConfig{Timezone: "UTC", MaxWalkDepth: 99, AccrualWorkers: 2},
		config.ROIConfig{Model: "lifetime", DefaultDailyPercent: 1},
		config.StopConfig{EarlyWindowDays: 30, EarlyPenaltyPercent: 15, LatePenaltyPercent: 5},
	)
	if err != nil {
		t.Fatalf("new engine settings failed: %v", err)
	}
	if settings.Location.String() != "UTC" {
		t.Fatalf("location want UTC got %s", settings.Location)
	}
	if settings.MaxWalkDepth != 30 {
		t.Fatalf("walk depth should be clamped to 30, got %d", settings.MaxWalkDepth)
	}
	if settings.packageDurationDays() != 0 || !settings.packageROIMultiple().IsZero() {
		t.Fatalf("lifetime model should disable cap and duration")
	}

	if _, err := NewEngineSettings(config.EngineConfig{}, config.ROIConfig{Model: "weekly"}, config.StopConfig{}); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("unknown roi model want ErrConfigurationMissing got %v", err)
	}
	if _, err := NewEngineSettings(config.EngineConfig{Timezone: "Mars/Olympus"}, config.ROIConfig{}, config.StopConfig{}); !errors.Is(err, ErrConfigurationMissing) {
		t.Fatalf("unknown timezone want ErrConfigurationMissing got %v", err)
	}
}

func TestParseAsOf(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	got, err := ParseAsOf("", loc)
	if err != nil {
		t.Fatalf("parse empty as_of failed: %v", err)
	}
	if got.Location() != loc {
		t.Fatalf("expected location %v, got %v", loc, got.Location())
	}
	if want := ClosingDay(time.Now(), loc); !got.Equal(want) {
		t.Fatalf("empty as_of should resolve to the closing day %s, got %s", want, got)
	}

	got, err = ParseAsOf(" 2026-03-15 ", time.UTC)
	if err != nil {
		t.Fatalf("parse as_of failed: %v", err)
	}
	if got.Format(constants.DateLayout) != "2026-03-15" {
		t.Fatalf("unexpected date: %s", got.Format(constants.DateLayout))
	}
	if _, err := ParseAsOf("15/03/2026", time.UTC); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("malformed date want ErrInvalidInput got %v", err)
	}
}

func TestClosingDayIsPreviousLocalDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	// 本地 3 月 1 日 01:00
	now := time.Date(2026, 2, 28, 17, 0, 0, 0, time.UTC)
	got := ClosingDay(now, loc)
	if got.Format(constants.DateLayout) != "2026-02-28" || got.Hour() != 0 || got.Location() != loc {
		t.Fatalf("unexpected closing day %s", got)
	}
	if again := ClosingDay(now.Add(20*time.Hour), loc); !again.Equal(got) {
		t.Fatalf("closing day should be stable within the same local day, got %s", again)
	}

	settings := DefaultEngineSettings()
	settings.Location = loc
	if parsed, ok := settings.parseDateKey("2026-02-28"); !ok || !parsed.Equal(got) {
		t.Fatalf("date key should parse to local midnight, got %s ok=%v", parsed, ok)
	}
	if _, ok := settings.parseDateKey(""); ok {
		t.Fatalf("empty date key should not parse")
	}
}

func TestEngineSettingsDaysBetween(t *testing.T) {
	settings := DefaultEngineSettings()
	settings.Location = time.FixedZone("UTC+8", 8*3600)
	from := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC) // 本地 1 月 2 日
	to := time.Date(2026, 1, 2, 1, 0, 0, 0, time.UTC)     // 本地 1 月 2 日
	if days := settings.daysBetween(from, to); days != 0 {
		t.Fatalf("same local day want 0 got %d", days)
	}
	if days := settings.daysBetween(from, to.AddDate(0, 0, 30)); days != 30 {
		t.Fatalf("want 30 days got %d", days)
	}
	if got := settings.formatDate(from); got != "2026-01-02" {
		t.Fatalf("local date want 2026-01-02 got %s", got)
	}
}
