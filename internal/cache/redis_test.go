package cache

import (
	"context"
	"testing"
	"time"
)

func TestNilStoreIsNoop(t *testing.T) {
	var s *Store
	ctx := context.Background()
	if s.Enabled() {
		t.Fatalf("nil store should be disabled")
	}
	var dest map[string]string
	hit, err := s.GetJSON(ctx, "rank:1", &dest)
	if err != nil || hit {
		t.Fatalf("nil store get want miss, got hit=%v err=%v", hit, err)
	}
	if err := s.SetJSON(ctx, "rank:1", map[string]string{"a": "b"}, time.Minute); err != nil {
		t.Fatalf("nil store set: %v", err)
	}
	if err := s.Del(ctx, "rank:1"); err != nil {
		t.Fatalf("nil store del: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("nil store close: %v", err)
	}
}

func TestStoreKey(t *testing.T) {
	if got := NewStore(nil, " ").Key("rate", "", "member_write"); got != "mlm:rate:member_write" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := NewStore(nil, "prod").Key("lock", "accrual:2026-01-02"); got != "prod:lock:accrual:2026-01-02" {
		t.Fatalf("unexpected key %q", got)
	}
	var s *Store
	if got := s.Key("x"); got != "mlm:x" {
		t.Fatalf("nil store key want mlm:x got %q", got)
	}
}

func TestRunLockWithoutRedis(t *testing.T) {
	release, ok, err := NewRunLock(nil).TryLock(context.Background(), "accrual:2026-01-02", 0)
	if err != nil || !ok {
		t.Fatalf("lock without redis should succeed, ok=%v err=%v", ok, err)
	}
	release()
}
