package worker

import (
	"errors"
	"testing"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/queue"
	"github.com/asterdex-mlm/internal/service"
)

func TestReplayInputDefaultsEventType(t *testing.T) {
	input, err := replayInput(queue.CommissionReplayPayload{MemberID: 7, Amount: "120.50", Reference: "purchase:ref-1"})
	if err != nil {
		t.Fatalf("replay input failed: %v", err)
	}
	if input.EventType != constants.VolumeEventPurchase {
		t.Fatalf("expected purchase event type, got %s", input.EventType)
	}
	if input.Amount.String() != "120.50" {
		t.Fatalf("unexpected amount: %s", input.Amount.String())
	}
}

func TestReplayInputRejectsBadAmount(t *testing.T) {
	if _, err := replayInput(queue.CommissionReplayPayload{MemberID: 7, Amount: "abc"}); !errors.Is(err, service.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
