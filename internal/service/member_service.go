package service

import (
	"context"
	"strings"
	"time"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"gorm.io/gorm"
)

// MemberService 会员服务（入会、停用、推荐链）
type MemberService struct {
	memberRepo repository.MemberRepository
	walletSvc  *WalletService
	treeSvc    *TreeService
}

// EnrollInput 入会输入
type EnrollInput struct {
	Username  string `json:"username"`
	SponsorID uint   `json:"sponsor_id"`
}

// EnrollResult 入会结果
type EnrollResult struct {
	Member *models.Member   `json:"member"`
	Node   *models.TreeNode `json:"node"`
}

// NewMemberService 创建会员服务
func NewMemberService(memberRepo repository.MemberRepository, walletSvc *WalletService, treeSvc *TreeService) *MemberService {
	return &MemberService{
		memberRepo: memberRepo,
		walletSvc:  walletSvc,
		treeSvc:    treeSvc,
	}
}

// Enroll 在同一事务内创建会员与钱包、累加直推人数并安置到二叉树，任一步失败整体回滚
func (s *MemberService) Enroll(ctx context.Context, input EnrollInput) (*EnrollResult, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || len(username) > 64 {
		return nil, ErrInvalidUsername
	}

	var (
		member *models.Member
		node   *models.TreeNode
	)
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.memberRepo.WithTx(tx)
		if input.SponsorID != 0 {
			sponsor, err := repo.GetByID(input.SponsorID)
			if err != nil {
				return err
			}
			if sponsor == nil {
				return ErrSponsorNotFound
			}
		}
		taken, err := repo.GetByUsername(username)
		if err != nil {
			return err
		}
		if taken != nil {
			return ErrUsernameTaken
		}
		now := time.Now()
		member = &models.Member{
			Username:        username,
			Status:          constants.MemberStatusActive,
			PersonalVolume:  models.ZeroMoney(),
			TeamVolume:      models.ZeroMoney(),
			TotalInvestment: models.ZeroMoney(),
			TotalEarnings:   models.ZeroMoney(),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if input.SponsorID != 0 {
			sponsorID := input.SponsorID
			member.SponsorID = &sponsorID
		}
		if err := repo.Create(member); err != nil {
			if isDuplicateKeyError(err) {
				return ErrUsernameTaken
			}
			return err
		}
		if _, err := s.walletSvc.EnsureAccountInTx(tx, member.ID); err != nil {
			return err
		}
		if err := repo.IncrementDirectCount(input.SponsorID, 1); err != nil {
			return err
		}
		placed, err := s.treeSvc.PlaceInTx(ctx, tx, member.ID, input.SponsorID)
		if err != nil {
			logger.Warnw("member_enroll_placement_failed",
				"username", username,
				"sponsor_id", input.SponsorID,
				"error", err,
			)
			return err
		}
		node = placed
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("member_enrolled", "member_id", member.ID, "sponsor_id", input.SponsorID)
	return &EnrollResult{Member: member, Node: node}, nil
}

// GetMember 获取会员
func (s *MemberService) GetMember(memberID uint) (*models.Member, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// List 分页查询会员
func (s *MemberService) List(filter repository.MemberListFilter) ([]models.Member, int64, error) {
	return s.memberRepo.List(filter)
}

// Deactivate 软停用会员（不删除）
func (s *MemberService) Deactivate(ctx context.Context, memberID uint) (*models.Member, error) {
	return s.setStatus(ctx, memberID, constants.MemberStatusInactive)
}

// Activate 重新启用会员
func (s *MemberService) Activate(ctx context.Context, memberID uint) (*models.Member, error) {
	return s.setStatus(ctx, memberID, constants.MemberStatusActive)
}

func (s *MemberService) setStatus(ctx context.Context, memberID uint, status string) (*models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var member *models.Member
	err := s.memberRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.memberRepo.WithTx(tx)
		found, err := repo.GetByIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrMemberNotFound
		}
		if found.Status == status {
			member = found
			return nil
		}
		found.Status = status
		found.UpdatedAt = time.Now()
		if err := repo.Update(found); err != nil {
			return err
		}
		member = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("member_status_changed", "member_id", memberID, "status", status)
	return member, nil
}

// walkSponsorChain 沿直推关系向上（不含自身），深度上限 maxDepth
func walkSponsorChain(ctx context.Context, repo repository.MemberRepository, memberID uint, maxDepth int) ([]models.Member, error) {
	current, err := repo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrMemberNotFound
	}
	chain := make([]models.Member, 0, maxDepth)
	visited := map[uint]struct{}{memberID: {}}
	for depth := 1; depth <= maxDepth && current.SponsorID != nil; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sponsorID := *current.SponsorID
		if _, seen := visited[sponsorID]; seen {
			logger.Warnw("sponsor_chain_cycle_detected", "member_id", current.ID, "sponsor_id", sponsorID)
			break
		}
		visited[sponsorID] = struct{}{}
		sponsor, err := repo.GetByID(sponsorID)
		if err != nil {
			return nil, err
		}
		if sponsor == nil {
			logger.Warnw("sponsor_missing", "member_id", current.ID, "sponsor_id", sponsorID)
			break
		}
		chain = append(chain, *sponsor)
		current = sponsor
	}
	return chain, nil
}
