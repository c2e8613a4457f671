package service

import (
	"context"
	"fmt"
	"time"

	"github.com/asterdex-mlm/internal/logger"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"
)

const auditBatchSize = 500

// 对账检查项
const (
	AuditCheckWalletBalance = "wallet_balance"
	AuditCheckLedgerSum     = "ledger_sum"
	AuditCheckTreeLinks     = "tree_links"
	AuditCheckTreeRoot      = "tree_root"
	AuditCheckDirectCount   = "direct_count"
)

// AuditFinding 单条对账偏差
type AuditFinding struct {
	Check    string `json:"check"`
	MemberID uint   `json:"member_id,omitempty"`
	Detail   string `json:"detail"`
}

// ReconcileReport 对账报告（只读，不做修复）
type ReconcileReport struct {
	WalletsChecked int            `json:"wallets_checked"`
	NodesChecked   int            `json:"nodes_checked"`
	Findings       []AuditFinding `json:"findings"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
}

// Healthy 是否无偏差
func (r *ReconcileReport) Healthy() bool {
	return r != nil && len(r.Findings) == 0
}

// AuditService 账务与结构对账
type AuditService struct {
	walletRepo repository.WalletRepository
	treeRepo   repository.TreeRepository
	memberRepo repository.MemberRepository
}

// NewAuditService 创建对账服务
func NewAuditService(walletRepo repository.WalletRepository, treeRepo repository.TreeRepository, memberRepo repository.MemberRepository) *AuditService {
	return &AuditService{walletRepo: walletRepo, treeRepo: treeRepo, memberRepo: memberRepo}
}

// Reconcile 校验钱包余额、流水合计、二叉树指针与直推人数
func (s *AuditService) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: time.Now(), Findings: []AuditFinding{}}
	if err := s.checkWallets(ctx, report); err != nil {
		return nil, err
	}
	if err := s.checkTree(ctx, report); err != nil {
		return nil, err
	}
	if err := s.checkDirectCounts(ctx, report); err != nil {
		return nil, err
	}
	report.FinishedAt = time.Now()

	counts := map[string]int{
		AuditCheckWalletBalance: 0,
		AuditCheckLedgerSum:     0,
		AuditCheckTreeLinks:     0,
		AuditCheckTreeRoot:      0,
		AuditCheckDirectCount:   0,
	}
	for _, finding := range report.Findings {
		counts[finding.Check]++
	}
	for check, count := range counts {
		metrics.ReconcileDriftGauge.WithLabelValues(check).Set(float64(count))
	}
	if len(report.Findings) > 0 {
		logger.Warnw("reconcile_drift_detected", "findings", len(report.Findings), "wallets", report.WalletsChecked, "nodes", report.NodesChecked)
	} else {
		logger.Infow("reconcile_clean", "wallets", report.WalletsChecked, "nodes", report.NodesChecked)
	}
	return report, nil
}

func (s *AuditService) checkWallets(ctx context.Context, report *ReconcileReport) error {
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		accounts, err := s.walletRepo.ListAccountsAfter(afterID, auditBatchSize)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return nil
		}
		memberIDs := make([]uint, 0, len(accounts))
		for i := range accounts {
			memberIDs = append(memberIDs, accounts[i].MemberID)
		}
		sums, err := s.walletRepo.SumAmountsByMember(memberIDs)
		if err != nil {
			return err
		}
		for i := range accounts {
			account := &accounts[i]
			report.WalletsChecked++
			if !account.Consistent() {
				report.Findings = append(report.Findings, AuditFinding{
					Check:    AuditCheckWalletBalance,
					MemberID: account.MemberID,
					Detail: fmt.Sprintf("available=%s locked=%s total=%s",
						account.Available.String(), account.Locked.String(), account.Total.String()),
				})
			}
			sum, ok := sums[account.MemberID]
			if !ok {
				sum = models.ZeroMoney()
			}
			if !sum.Decimal.Equal(account.Total.Decimal) {
				report.Findings = append(report.Findings, AuditFinding{
					Check:    AuditCheckLedgerSum,
					MemberID: account.MemberID,
					Detail:   fmt.Sprintf("ledger_sum=%s total=%s", sum.String(), account.Total.String()),
				})
			}
		}
		afterID = accounts[len(accounts)-1].ID
	}
}

func (s *AuditService) checkTree(ctx context.Context, report *ReconcileReport) error {
	roots := 0
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		nodes, err := s.treeRepo.ListAfter(afterID, auditBatchSize)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			break
		}
		for i := range nodes {
			node := &nodes[i]
			report.NodesChecked++
			if node.ParentID == nil {
				roots++
				continue
			}
			parent, err := s.treeRepo.GetByMemberID(*node.ParentID)
			if err != nil {
				return err
			}
			if parent == nil || !pointsAt(parent.ChildAt(node.Position), node.MemberID) {
				report.Findings = append(report.Findings, AuditFinding{
					Check:    AuditCheckTreeLinks,
					MemberID: node.MemberID,
					Detail:   fmt.Sprintf("parent %d does not point back at %s", *node.ParentID, node.Position),
				})
			}
		}
		afterID = nodes[len(nodes)-1].ID
	}
	if roots > 1 {
		report.Findings = append(report.Findings, AuditFinding{
			Check:  AuditCheckTreeRoot,
			Detail: fmt.Sprintf("%d root nodes", roots),
		})
	}
	return nil
}

func pointsAt(child *uint, memberID uint) bool {
	return child != nil && *child == memberID
}

func (s *AuditService) checkDirectCounts(ctx context.Context, report *ReconcileReport) error {
	sponsored, err := s.memberRepo.CountSponsored()
	if err != nil {
		return err
	}
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := s.memberRepo.ListIDsAfter(afterID, auditBatchSize)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		members, err := s.memberRepo.GetByIDs(ids)
		if err != nil {
			return err
		}
		for i := range members {
			member := &members[i]
			if int64(member.DirectCount) != sponsored[member.ID] {
				report.Findings = append(report.Findings, AuditFinding{
					Check:    AuditCheckDirectCount,
					MemberID: member.ID,
					Detail:   fmt.Sprintf("direct_count=%d sponsored=%d", member.DirectCount, sponsored[member.ID]),
				})
			}
		}
		afterID = ids[len(ids)-1]
	}
}
