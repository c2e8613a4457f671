package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/models"
)

func TestCommissionServicePaysLevelIncomeUpSponsorChain(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	activation := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a := f.enroll(t, "a", 0)
	b := f.enroll(t, "b", a.ID)
	c := f.enroll(t, "c", b.ID)
	d := f.enroll(t, "d", c.ID)
	f.createPackage(t, a.ID, "100", "pkg-a", activation)
	f.createPackage(t, b.ID, "100", "pkg-b", activation)
	f.createPackage(t, c.ID, "100", "pkg-c", activation)

	purchase, err := f.packages.Purchase(ctx, CreatePackageInput{
		MemberID:       d.ID,
		Principal:      testMoney("1000"),
		Reference:      "pkg-d",
		ActivationDate: &activation,
	})
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if purchase.Commission == nil || len(purchase.Commission.LevelCredits) != 3 {
		t.Fatalf("expected 3 level credits, got %+v", purchase.Commission)
	}

	want := map[uint]string{c.ID: "100", b.ID: "50", a.ID: "30"}
	for memberID, amount := range want {
		balance := f.balance(t, memberID)
		assertMoney(t, "level income balance", balance.Available, amount)
	}
	assertMoney(t, "buyer balance", f.balance(t, d.ID).Total, "0")

	buyer, err := f.member.GetMember(d.ID)
	if err != nil {
		t.Fatalf("get buyer failed: %v", err)
	}
	assertMoney(t, "personal volume", buyer.PersonalVolume, "1000")
	top, err := f.member.GetMember(a.ID)
	if err != nil {
		t.Fatalf("get top sponsor failed: %v", err)
	}
	assertMoney(t, "team volume", top.TeamVolume, "1000")
	assertMoney(t, "total earnings", top.TotalEarnings, "30")

	replay, err := f.commission.OnVolumeEvent(ctx, VolumeEventInput{
		MemberID:  d.ID,
		Amount:    testMoney("1000"),
		EventType: constants.VolumeEventPurchase,
		Reference: buildReference(constants.ReferencePrefixPurchase, "pkg-d"),
	})
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.VolumeApplied {
		t.Fatalf("replayed event must not add volume twice")
	}
	for _, credit := range replay.LevelCredits {
		if !credit.AlreadyProcessed {
			t.Fatalf("replayed credit should be already processed: %+v", credit)
		}
	}
	assertMoney(t, "level 1 after replay", f.balance(t, c.ID).Available, "100")
	top, _ = f.member.GetMember(a.ID)
	assertMoney(t, "team volume after replay", top.TeamVolume, "1000")
}

func TestCommissionServiceSkipsInactiveAndLockedSponsors(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	activation := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	a := f.enroll(t, "a", 0)
	b := f.enroll(t, "b", a.ID)
	c := f.enroll(t, "c", b.ID)
	f.createPackage(t, b.ID, "100", "pkg-b", activation)
	if _, err := f.member.Deactivate(ctx, b.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}

	result, err := f.commission.OnVolumeEvent(ctx, VolumeEventInput{
		MemberID:  c.ID,
		Amount:    testMoney("500"),
		EventType: constants.VolumeEventPurchase,
		Reference: "external:1",
	})
	if err != nil {
		t.Fatalf("volume event failed: %v", err)
	}
	if len(result.LevelCredits) != 0 {
		t.Fatalf("inactive b and package-less a should earn nothing, got %+v", result.LevelCredits)
	}
	assertMoney(t, "inactive sponsor", f.balance(t, b.ID).Total, "0")
	assertMoney(t, "locked sponsor", f.balance(t, a.ID).Total, "0")
}

func TestCommissionServiceBinaryMatching(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	activation := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	root := f.enroll(t, "root", 0)
	left := f.enroll(t, "left", root.ID)
	right := f.enroll(t, "right", root.ID)

	if _, err := f.packages.Purchase(ctx, CreatePackageInput{MemberID: left.ID, Principal: testMoney("300"), Reference: "left-1", ActivationDate: &activation}); err != nil {
		t.Fatalf("left purchase failed: %v", err)
	}
	assertMoney(t, "bonus before right leg", f.balance(t, root.ID).Total, "0")

	purchase, err := f.packages.Purchase(ctx, CreatePackageInput{MemberID: right.ID, Principal: testMoney("500"), Reference: "right-1", ActivationDate: &activation})
	if err != nil {
		t.Fatalf("right purchase failed: %v", err)
	}
	if len(purchase.Commission.MatchingCredits) != 1 {
		t.Fatalf("expected one matching credit, got %+v", purchase.Commission.MatchingCredits)
	}
	credit := purchase.Commission.MatchingCredits[0]
	assertMoney(t, "matched volume", credit.Matched, "300")
	assertMoney(t, "matching bonus", credit.Amount, "30")
	assertMoney(t, "root balance", f.balance(t, root.ID).Available, "30")

	node, err := f.tree.GetTreeNode(root.ID)
	if err != nil {
		t.Fatalf("get root node failed: %v", err)
	}
	assertMoney(t, "left carry", node.LeftVolume, "0")
	assertMoney(t, "right carry", node.RightVolume, "200")
	assertMoney(t, "left total", node.LeftTotal, "300")
	assertMoney(t, "right total", node.RightTotal, "500")
}

func TestCommissionServiceMatchingDailyCap(t *testing.T) {
	plan := testPlan()
	plan.MatchingDailyCap = testMoney("20")
	f := setupEngineTest(t, plan, testEngineSettings())
	ctx := context.Background()

	root := f.enroll(t, "root", 0)
	left := f.enroll(t, "left", root.ID)
	right := f.enroll(t, "right", root.ID)
	events := []VolumeEventInput{
		{MemberID: left.ID, Amount: testMoney("300"), EventType: constants.VolumeEventPurchase, Reference: "cap-left"},
		{MemberID: right.ID, Amount: testMoney("500"), EventType: constants.VolumeEventPurchase, Reference: "cap-right"},
	}
	for _, event := range events {
		if _, err := f.commission.OnVolumeEvent(ctx, event); err != nil {
			t.Fatalf("volume event %s failed: %v", event.Reference, err)
		}
	}

	assertMoney(t, "capped bonus", f.balance(t, root.ID).Available, "20")
	node, err := f.tree.GetTreeNode(root.ID)
	if err != nil {
		t.Fatalf("get root node failed: %v", err)
	}
	assertMoney(t, "left consumed", node.LeftVolume, "0")
	assertMoney(t, "right carry", node.RightVolume, "200")
}

func TestCommissionServiceROIEventSkipsBinaryByDefault(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()

	root := f.enroll(t, "root", 0)
	left := f.enroll(t, "left", root.ID)

	result, err := f.commission.OnVolumeEvent(ctx, VolumeEventInput{
		MemberID:  left.ID,
		Amount:    testMoney("5"),
		EventType: constants.VolumeEventROI,
		Reference: "roi:1:2026-01-01",
	})
	if err != nil {
		t.Fatalf("roi event failed: %v", err)
	}
	if !result.VolumeApplied {
		t.Fatalf("roi event should still be recorded")
	}
	node, err := f.tree.GetTreeNode(root.ID)
	if err != nil {
		t.Fatalf("get root node failed: %v", err)
	}
	assertMoney(t, "left volume", node.LeftVolume, "0")
	member, _ := f.member.GetMember(left.ID)
	assertMoney(t, "personal volume", member.PersonalVolume, "0")
}

func TestCommissionServiceRejectsInvalidEvents(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	member := f.enroll(t, "root", 0)

	cases := []struct {
		name  string
		input VolumeEventInput
		want  error
	}{
		{name: "zero amount", input: VolumeEventInput{MemberID: member.ID, Amount: models.ZeroMoney(), EventType: "purchase", Reference: "x"}, want: ErrInvalidAmount},
		{name: "bad type", input: VolumeEventInput{MemberID: member.ID, Amount: testMoney("1"), EventType: "gift", Reference: "x"}, want: ErrInvalidEventType},
		{name: "no reference", input: VolumeEventInput{MemberID: member.ID, Amount: testMoney("1"), EventType: "purchase"}, want: ErrInvalidReference},
		{name: "unknown member", input: VolumeEventInput{MemberID: member.ID + 10, Amount: testMoney("1"), EventType: "purchase", Reference: "x"}, want: ErrMemberNotFound},
	}
	for _, tc := range cases {
		if _, err := f.commission.OnVolumeEvent(ctx, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, err)
		}
	}
}
