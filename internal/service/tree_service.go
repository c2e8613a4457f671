package service

import (
	"context"
	"errors"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"gorm.io/gorm"
)

const placementMaxAttempts = 3

// TreeService 二叉树存储与安置引擎
type TreeService struct {
	treeRepo   repository.TreeRepository
	memberRepo repository.MemberRepository
	settings   EngineSettings
}

// AncestorStep 向上遍历的一步：祖先会员及触发会员所在的区
type AncestorStep struct {
	MemberID uint   `json:"member_id"`
	Side     string `json:"side"`
	Depth    int    `json:"depth"`
}

// DownlineNode 下线节点及其相对深度
type DownlineNode struct {
	Node  models.TreeNode `json:"node"`
	Depth int             `json:"depth"`
}

// NewTreeService 创建二叉树服务
func NewTreeService(treeRepo repository.TreeRepository, memberRepo repository.MemberRepository, settings EngineSettings) *TreeService {
	return &TreeService{
		treeRepo:   treeRepo,
		memberRepo: memberRepo,
		settings:   settings.normalized(),
	}
}

// GetTreeNode 获取会员节点
func (s *TreeService) GetTreeNode(memberID uint) (*models.TreeNode, error) {
	node, err := s.treeRepo.GetByMemberID(memberID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrTreeNodeNotFound
	}
	return node, nil
}

// Place 在直推人下方按广度优先（先左后右）寻找空位并安置新会员（单独事务）
func (s *TreeService) Place(ctx context.Context, newMemberID, sponsorID uint) (*models.TreeNode, error) {
	var node *models.TreeNode
	err := s.treeRepo.Transaction(func(tx *gorm.DB) error {
		placed, err := s.PlaceInTx(ctx, tx, newMemberID, sponsorID)
		node = placed
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// PlaceInTx 在调用方事务内安置；任何错误都应让调用方回滚整个事务
func (s *TreeService) PlaceInTx(ctx context.Context, tx *gorm.DB, newMemberID, sponsorID uint) (*models.TreeNode, error) {
	if newMemberID == 0 {
		return nil, ErrInvalidMemberID
	}
	treeRepo := s.treeRepo.WithTx(tx)
	member, err := s.memberRepo.WithTx(tx).GetByID(newMemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	existing, err := treeRepo.GetByMemberID(newMemberID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrMemberAlreadyPlaced
	}

	if sponsorID == 0 {
		return s.placeRoot(treeRepo, newMemberID)
	}
	if sponsorID == newMemberID {
		return nil, ErrSponsorNodeNotFound
	}
	sponsorNode, err := treeRepo.GetByMemberID(sponsorID)
	if err != nil {
		return nil, err
	}
	if sponsorNode == nil {
		return nil, ErrSponsorNodeNotFound
	}

	for attempt := 1; attempt <= placementMaxAttempts; attempt++ {
		parentID, position, err := findOpenSlot(ctx, treeRepo, sponsorID)
		if err != nil {
			return nil, err
		}
		node, err := attach(treeRepo, newMemberID, parentID, position)
		if err == nil {
			metrics.PlacementsTotal.WithLabelValues("placed").Inc()
			logger.Infow("tree_member_placed",
				"member_id", newMemberID,
				"sponsor_id", sponsorID,
				"parent_id", parentID,
				"position", position,
				"level", node.Level,
			)
			return node, nil
		}
		if !errors.Is(err, repository.ErrTreeSlotTaken) {
			if isDuplicateKeyError(err) {
				metrics.PlacementsTotal.WithLabelValues("conflict").Inc()
				return nil, ErrPlacementConflict
			}
			return nil, err
		}
		logger.Warnw("tree_placement_retry",
			"member_id", newMemberID,
			"parent_id", parentID,
			"position", position,
			"attempt", attempt,
		)
	}
	metrics.PlacementsTotal.WithLabelValues("conflict").Inc()
	return nil, ErrPlacementConflict
}

// placeRoot 仅空树可建根；并发建根由 idx_tree_single_root 唯一索引兜底
func (s *TreeService) placeRoot(repo repository.TreeRepository, memberID uint) (*models.TreeNode, error) {
	total, err := repo.Count()
	if err != nil {
		return nil, err
	}
	if total > 0 {
		return nil, ErrTreeRootExists
	}
	node := &models.TreeNode{
		MemberID:    memberID,
		Position:    constants.TreePositionRoot,
		Level:       0,
		LeftVolume:  models.ZeroMoney(),
		RightVolume: models.ZeroMoney(),
		LeftTotal:   models.ZeroMoney(),
		RightTotal:  models.ZeroMoney(),
	}
	if err := repo.Create(node); err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrTreeRootExists
		}
		return nil, err
	}
	metrics.PlacementsTotal.WithLabelValues("root").Inc()
	logger.Infow("tree_root_created", "member_id", memberID)
	return node, nil
}

// attach 先占父节点槽位再写入新节点；槽位已被占用时不产生任何写入
func attach(repo repository.TreeRepository, memberID, parentID uint, position string) (*models.TreeNode, error) {
	parent, err := repo.GetByMemberIDForUpdate(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrTreeNodeNotFound
	}
	if parent.ChildAt(position) != nil {
		return nil, repository.ErrTreeSlotTaken
	}
	if err := repo.AttachChild(parentID, position, memberID); err != nil {
		return nil, err
	}
	parentRef := parentID
	node := &models.TreeNode{
		MemberID:    memberID,
		ParentID:    &parentRef,
		Position:    position,
		Level:       parent.Level + 1,
		LeftVolume:  models.ZeroMoney(),
		RightVolume: models.ZeroMoney(),
		LeftTotal:   models.ZeroMoney(),
		RightTotal:  models.ZeroMoney(),
	}
	if err := repo.Create(node); err != nil {
		return nil, err
	}
	return node, nil
}

// findOpenSlot 逐层批量加载前沿节点，返回第一个空槽
func findOpenSlot(ctx context.Context, repo repository.TreeRepository, sponsorID uint) (uint, string, error) {
	frontier := []uint{sponsorID}
	visited := map[uint]struct{}{sponsorID: {}}
	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, "", err
		}
		nodes, err := repo.GetByMemberIDs(frontier)
		if err != nil {
			return 0, "", err
		}
		byMember := make(map[uint]*models.TreeNode, len(nodes))
		for i := range nodes {
			byMember[nodes[i].MemberID] = &nodes[i]
		}
		next := make([]uint, 0, len(frontier)*2)
		for _, memberID := range frontier {
			node := byMember[memberID]
			if node == nil {
				logger.Warnw("tree_child_pointer_dangling", "member_id", memberID)
				continue
			}
			if node.LeftChildID == nil {
				return memberID, constants.TreePositionLeft, nil
			}
			if node.RightChildID == nil {
				return memberID, constants.TreePositionRight, nil
			}
			for _, child := range []uint{*node.LeftChildID, *node.RightChildID} {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				next = append(next, child)
			}
		}
		frontier = next
	}
	return 0, "", ErrTreeNodeNotFound
}

// Ancestors 沿父节点向上遍历（带深度上限与访问集合）
func (s *TreeService) Ancestors(ctx context.Context, memberID uint, maxDepth int) ([]AncestorStep, error) {
	return walkAncestors(ctx, s.treeRepo, memberID, s.boundDepth(maxDepth))
}

// Downline 广度优先获取下线（带深度上限）
func (s *TreeService) Downline(ctx context.Context, memberID uint, maxDepth int) ([]DownlineNode, error) {
	root, err := s.GetTreeNode(memberID)
	if err != nil {
		return nil, err
	}
	maxDepth = s.boundDepth(maxDepth)
	result := make([]DownlineNode, 0)
	visited := map[uint]struct{}{root.MemberID: {}}
	frontier := childIDs(root)
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nodes, err := s.treeRepo.GetByMemberIDs(frontier)
		if err != nil {
			return nil, err
		}
		byMember := make(map[uint]models.TreeNode, len(nodes))
		for _, node := range nodes {
			byMember[node.MemberID] = node
		}
		next := make([]uint, 0, len(frontier)*2)
		for _, id := range frontier {
			node, ok := byMember[id]
			if !ok {
				continue
			}
			result = append(result, DownlineNode{Node: node, Depth: depth})
			for _, child := range childIDs(&node) {
				if _, seen := visited[child]; seen {
					continue
				}
				visited[child] = struct{}{}
				next = append(next, child)
			}
		}
		frontier = next
	}
	return result, nil
}

func (s *TreeService) boundDepth(depth int) int {
	if depth <= 0 || depth > s.settings.MaxWalkDepth {
		return s.settings.MaxWalkDepth
	}
	return depth
}

func walkAncestors(ctx context.Context, repo repository.TreeRepository, memberID uint, maxDepth int) ([]AncestorStep, error) {
	node, err := repo.GetByMemberID(memberID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrTreeNodeNotFound
	}
	steps := make([]AncestorStep, 0, maxDepth)
	visited := map[uint]struct{}{memberID: {}}
	for depth := 1; depth <= maxDepth && node.ParentID != nil; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parentID := *node.ParentID
		if _, seen := visited[parentID]; seen {
			logger.Warnw("tree_parent_cycle_detected", "member_id", node.MemberID, "parent_id", parentID)
			break
		}
		visited[parentID] = struct{}{}
		steps = append(steps, AncestorStep{MemberID: parentID, Side: node.Position, Depth: depth})
		parent, err := repo.GetByMemberID(parentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			logger.Warnw("tree_parent_missing", "member_id", node.MemberID, "parent_id", parentID)
			break
		}
		node = parent
	}
	return steps, nil
}

func childIDs(node *models.TreeNode) []uint {
	ids := make([]uint, 0, 2)
	if node == nil {
		return ids
	}
	if node.LeftChildID != nil {
		ids = append(ids, *node.LeftChildID)
	}
	if node.RightChildID != nil {
		ids = append(ids, *node.RightChildID)
	}
	return ids
}
