package service

import (
	"context"
	"errors"
	"testing"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/models"
)

func TestTreeServicePlacesBreadthFirstLeftBeforeRight(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	root := f.enroll(t, "root", 0)
	a := f.enroll(t, "a", root.ID)
	b := f.enroll(t, "b", root.ID)
	c := f.enroll(t, "c", root.ID)
	d := f.enroll(t, "d", root.ID)
	e := f.enroll(t, "e", root.ID)

	cases := []struct {
		memberID uint
		parentID uint
		position string
		level    int
	}{
		{memberID: a.ID, parentID: root.ID, position: constants.TreePositionLeft, level: 1},
		{memberID: b.ID, parentID: root.ID, position: constants.TreePositionRight, level: 1},
		{memberID: c.ID, parentID: a.ID, position: constants.TreePositionLeft, level: 2},
		{memberID: d.ID, parentID: a.ID, position: constants.TreePositionRight, level: 2},
		{memberID: e.ID, parentID: b.ID, position: constants.TreePositionLeft, level: 2},
	}
	for _, tc := range cases {
		node, err := f.tree.GetTreeNode(tc.memberID)
		if err != nil {
			t.Fatalf("get node %d failed: %v", tc.memberID, err)
		}
		if node.ParentID == nil || *node.ParentID != tc.parentID {
			t.Fatalf("member %d parent want %d got %v", tc.memberID, tc.parentID, node.ParentID)
		}
		if node.Position != tc.position || node.Level != tc.level {
			t.Fatalf("member %d want %s/%d got %s/%d", tc.memberID, tc.position, tc.level, node.Position, node.Level)
		}
		parent, err := f.tree.GetTreeNode(tc.parentID)
		if err != nil {
			t.Fatalf("get parent failed: %v", err)
		}
		if child := parent.ChildAt(tc.position); child == nil || *child != tc.memberID {
			t.Fatalf("parent %d should point at %d on %s", tc.parentID, tc.memberID, tc.position)
		}
	}

	sponsor, err := f.member.GetMember(root.ID)
	if err != nil {
		t.Fatalf("get root failed: %v", err)
	}
	if sponsor.DirectCount != 5 {
		t.Fatalf("root direct count want 5 got %d", sponsor.DirectCount)
	}
}

func TestTreeServicePlacesUnderSponsorSubtree(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	root := f.enroll(t, "root", 0)
	a := f.enroll(t, "a", root.ID)
	_ = f.enroll(t, "b", root.ID)
	c := f.enroll(t, "c", a.ID)

	node, err := f.tree.GetTreeNode(c.ID)
	if err != nil {
		t.Fatalf("get node failed: %v", err)
	}
	if node.ParentID == nil || *node.ParentID != a.ID || node.Position != constants.TreePositionLeft {
		t.Fatalf("c should sit left of its sponsor a, got parent=%v position=%s", node.ParentID, node.Position)
	}
}

func TestMemberServiceEnrollEdgeCases(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	root := f.enroll(t, "root", 0)

	if _, err := f.member.Enroll(ctx, EnrollInput{Username: "root", SponsorID: root.ID}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate username want ErrUsernameTaken got %v", err)
	}
	if _, err := f.member.Enroll(ctx, EnrollInput{Username: "ghost_child", SponsorID: root.ID + 99}); !errors.Is(err, ErrSponsorNotFound) {
		t.Fatalf("unknown sponsor want ErrSponsorNotFound got %v", err)
	}
	if _, err := f.member.Enroll(ctx, EnrollInput{Username: "  "}); !errors.Is(err, ErrInvalidUsername) {
		t.Fatalf("blank username want ErrInvalidUsername got %v", err)
	}
	result, err := f.member.Enroll(ctx, EnrollInput{Username: "second_root"})
	if !errors.Is(err, ErrTreeRootExists) {
		t.Fatalf("second root want ErrTreeRootExists got %v", err)
	}
	if result != nil {
		t.Fatalf("failed enrollment should not return a result, got %+v", result)
	}
	orphan, err := f.memberRepo.GetByUsername("second_root")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if orphan != nil {
		t.Fatalf("failed placement must roll back the member row, found id=%d", orphan.ID)
	}
}

func TestMemberServiceEnrollRollsBackWhenSponsorIsUnplaced(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	_ = f.enroll(t, "root", 0)

	// 直接写入会员行，不安置到树
	loose := &models.Member{
		Username:        "loose",
		Status:          constants.MemberStatusActive,
		PersonalVolume:  models.ZeroMoney(),
		TeamVolume:      models.ZeroMoney(),
		TotalInvestment: models.ZeroMoney(),
		TotalEarnings:   models.ZeroMoney(),
	}
	if err := f.memberRepo.Create(loose); err != nil {
		t.Fatalf("create loose member failed: %v", err)
	}

	result, err := f.member.Enroll(ctx, EnrollInput{Username: "child_of_loose", SponsorID: loose.ID})
	if !errors.Is(err, ErrSponsorNodeNotFound) {
		t.Fatalf("unplaced sponsor want ErrSponsorNodeNotFound got %v", err)
	}
	if result != nil {
		t.Fatalf("failed enrollment should not return a result")
	}
	child, err := f.memberRepo.GetByUsername("child_of_loose")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if child != nil {
		t.Fatalf("member row should be rolled back")
	}
	sponsor, err := f.memberRepo.GetByID(loose.ID)
	if err != nil {
		t.Fatalf("reload sponsor failed: %v", err)
	}
	if sponsor.DirectCount != 0 {
		t.Fatalf("direct count should be rolled back, got %d", sponsor.DirectCount)
	}
	var accounts int64
	if err := f.db.Model(&models.WalletAccount{}).Count(&accounts).Error; err != nil {
		t.Fatalf("count accounts failed: %v", err)
	}
	if accounts != 1 {
		t.Fatalf("only the root wallet should exist, got %d", accounts)
	}
}

func TestTreeNodeSingleRootIndex(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	root := f.enroll(t, "root", 0)

	second := &models.TreeNode{
		MemberID:    root.ID + 1000,
		Position:    constants.TreePositionRoot,
		LeftVolume:  models.ZeroMoney(),
		RightVolume: models.ZeroMoney(),
		LeftTotal:   models.ZeroMoney(),
		RightTotal:  models.ZeroMoney(),
	}
	err := f.treeRepo.Create(second)
	if err == nil {
		t.Fatalf("second root row should violate the single root index")
	}
	if !isDuplicateKeyError(err) {
		t.Fatalf("want duplicate key error got %v", err)
	}
	if _, err := f.tree.placeRoot(f.treeRepo, root.ID+2000); !errors.Is(err, ErrTreeRootExists) {
		t.Fatalf("placeRoot on a non-empty tree want ErrTreeRootExists got %v", err)
	}
}

func TestTreeServiceAncestorsAndDownline(t *testing.T) {
	f := setupEngineTest(t, testPlan(), testEngineSettings())
	ctx := context.Background()
	root := f.enroll(t, "root", 0)
	a := f.enroll(t, "a", root.ID)
	b := f.enroll(t, "b", a.ID)
	c := f.enroll(t, "c", b.ID)

	steps, err := f.tree.Ancestors(ctx, c.ID, 0)
	if err != nil {
		t.Fatalf("ancestors failed: %v", err)
	}
	want := []uint{b.ID, a.ID, root.ID}
	if len(steps) != len(want) {
		t.Fatalf("ancestors len want %d got %d", len(want), len(steps))
	}
	for i, step := range steps {
		if step.MemberID != want[i] || step.Depth != i+1 {
			t.Fatalf("step %d want member %d depth %d got %+v", i, want[i], i+1, step)
		}
	}

	limited, err := f.tree.Ancestors(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("limited ancestors failed: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("depth limit should stop after one step, got %d", len(limited))
	}

	downline, err := f.tree.Downline(ctx, root.ID, 2)
	if err != nil {
		t.Fatalf("downline failed: %v", err)
	}
	if len(downline) != 2 || downline[0].Node.MemberID != a.ID || downline[1].Depth != 2 {
		t.Fatalf("unexpected downline: %+v", downline)
	}
}
