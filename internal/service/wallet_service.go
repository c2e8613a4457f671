package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asterdex-mlm/internal/constants"
	"github.com/asterdex-mlm/internal/metrics"
	"github.com/asterdex-mlm/internal/models"
	"github.com/asterdex-mlm/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	walletHistoryDefaultLimit = 50
	walletHistoryMaxLimit     = 500
)

// WalletService 钱包账本服务（所有余额变动的唯一入口）
type WalletService struct {
	walletRepo repository.WalletRepository
	memberRepo repository.MemberRepository
}

// LedgerInput 记账输入，Amount 为正数，方向由 Direction 决定
type LedgerInput struct {
	MemberID       uint
	Amount         models.Money
	Type           string
	Direction      string
	Reference      string
	Remark         string
	PackageID      *uint
	SourceMemberID *uint
	Level          int
}

// WalletBalance 钱包余额
type WalletBalance struct {
	MemberID  uint         `json:"member_id"`
	Available models.Money `json:"available"`
	Locked    models.Money `json:"locked"`
	Total     models.Money `json:"total"`
}

// NewWalletService 创建钱包服务
func NewWalletService(walletRepo repository.WalletRepository, memberRepo repository.MemberRepository) *WalletService {
	return &WalletService{
		walletRepo: walletRepo,
		memberRepo: memberRepo,
	}
}

// Credit 入账（单独事务）
func (s *WalletService) Credit(ctx context.Context, input LedgerInput) (*models.LedgerEntry, error) {
	input.Direction = constants.LedgerDirectionIn
	return s.applyStandalone(ctx, input)
}

// Debit 出账（单独事务），超过可用余额返回 ErrInsufficientFunds
func (s *WalletService) Debit(ctx context.Context, input LedgerInput) (*models.LedgerEntry, error) {
	input.Direction = constants.LedgerDirectionOut
	return s.applyStandalone(ctx, input)
}

func (s *WalletService) applyStandalone(ctx context.Context, input LedgerInput) (*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var result *models.LedgerEntry
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		entry, err := s.ApplyInTx(tx, input)
		result = entry
		return err
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		return result, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyInTx 在调用方事务内完成一次记账：锁定钱包行、校验参考号、更新余额并写入流水
func (s *WalletService) ApplyInTx(tx *gorm.DB, input LedgerInput) (*models.LedgerEntry, error) {
	if tx == nil {
		return nil, errors.New("wallet ledger requires a transaction")
	}
	normalized, err := normalizeLedgerInput(input)
	if err != nil {
		return nil, err
	}
	repo := s.walletRepo.WithTx(tx)
	memberRepo := s.memberRepo.WithTx(tx)

	exists, err := repo.GetEntryByReference(normalized.Reference)
	if err != nil {
		return nil, err
	}
	if exists != nil {
		return exists, ErrAlreadyProcessed
	}

	member, err := memberRepo.GetByID(normalized.MemberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}

	now := time.Now()
	account, err := s.ensureAccountForUpdate(repo, normalized.MemberID, now)
	if err != nil {
		return nil, err
	}
	if !account.Consistent() {
		return nil, ErrWalletInconsistent
	}

	amount := normalized.Amount.Decimal
	signed := amount
	before := account.Total.Decimal
	if normalized.Direction == constants.LedgerDirectionOut {
		if account.Available.Decimal.LessThan(amount) {
			return nil, ErrInsufficientFunds
		}
		signed = amount.Neg()
	}
	account.Available = models.NewMoneyFromDecimal(account.Available.Decimal.Add(signed))
	account.Total = models.NewMoneyFromDecimal(before.Add(signed))
	account.UpdatedAt = now
	if err := repo.UpdateAccount(account); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		MemberID:       normalized.MemberID,
		Type:           normalized.Type,
		Direction:      normalized.Direction,
		Amount:         models.NewMoneyFromDecimal(signed),
		BalanceBefore:  models.NewMoneyFromDecimal(before),
		BalanceAfter:   account.Total,
		ReferenceID:    normalized.Reference,
		PackageID:      normalized.PackageID,
		SourceMemberID: normalized.SourceMemberID,
		Level:          normalized.Level,
		Remark:         normalized.Remark,
		CreatedAt:      now,
	}
	if err := repo.CreateEntry(entry); err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrAlreadyProcessed
		}
		return nil, err
	}

	if normalized.Direction == constants.LedgerDirectionIn && constants.EarningLedgerTypes[normalized.Type] {
		if err := memberRepo.AddEarnings(normalized.MemberID, normalized.Amount); err != nil {
			return nil, err
		}
	}
	metrics.ObserveLedgerEntry(normalized.Type, normalized.Direction, amount)
	return entry, nil
}

// LockFunds 冻结可用余额（总余额不变）
func (s *WalletService) LockFunds(ctx context.Context, memberID uint, amount models.Money, reference, remark string) (*models.LedgerEntry, error) {
	return s.moveLocked(ctx, memberID, amount, reference, remark, constants.LedgerTypeLock)
}

// UnlockFunds 解冻余额
func (s *WalletService) UnlockFunds(ctx context.Context, memberID uint, amount models.Money, reference, remark string) (*models.LedgerEntry, error) {
	return s.moveLocked(ctx, memberID, amount, reference, remark, constants.LedgerTypeUnlock)
}

// PayoutLocked 冻结余额出款（总余额减少）
func (s *WalletService) PayoutLocked(ctx context.Context, memberID uint, amount models.Money, reference, remark string) (*models.LedgerEntry, error) {
	return s.moveLocked(ctx, memberID, amount, reference, remark, constants.LedgerTypePayout)
}

func (s *WalletService) moveLocked(ctx context.Context, memberID uint, amount models.Money, reference, remark, entryType string) (*models.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if memberID == 0 {
		return nil, ErrInvalidMemberID
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrInvalidReference
	}

	var result *models.LedgerEntry
	err := s.walletRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.walletRepo.WithTx(tx)
		exists, err := repo.GetEntryByReference(reference)
		if err != nil {
			return err
		}
		if exists != nil {
			result = exists
			return ErrAlreadyProcessed
		}
		now := time.Now()
		account, err := repo.GetAccountByMemberIDForUpdate(memberID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrWalletNotFound
		}
		before := account.Total.Decimal
		value := amount.Decimal
		signed := decimal.Zero
		direction := constants.LedgerDirectionOut
		switch entryType {
		case constants.LedgerTypeLock:
			if account.Available.Decimal.LessThan(value) {
				return ErrInsufficientFunds
			}
			account.Available = account.Available.Sub(amount)
			account.Locked = account.Locked.Add(amount)
		case constants.LedgerTypeUnlock:
			if account.Locked.Decimal.LessThan(value) {
				return ErrInsufficientFunds
			}
			account.Locked = account.Locked.Sub(amount)
			account.Available = account.Available.Add(amount)
			direction = constants.LedgerDirectionIn
		case constants.LedgerTypePayout:
			if account.Locked.Decimal.LessThan(value) {
				return ErrInsufficientFunds
			}
			account.Locked = account.Locked.Sub(amount)
			account.Total = account.Total.Sub(amount)
			signed = value.Neg()
		default:
			return ErrInvalidLedgerType
		}
		account.UpdatedAt = now
		if err := repo.UpdateAccount(account); err != nil {
			return err
		}
		entry := &models.LedgerEntry{
			MemberID:      memberID,
			Type:          entryType,
			Direction:     direction,
			Amount:        models.NewMoneyFromDecimal(signed),
			BalanceBefore: models.NewMoneyFromDecimal(before),
			BalanceAfter:  account.Total,
			ReferenceID:   reference,
			Remark:        cleanLedgerRemark(remark, fmt.Sprintf("%s %s", entryType, amount.String())),
			CreatedAt:     now,
		}
		if err := repo.CreateEntry(entry); err != nil {
			if isDuplicateKeyError(err) {
				return ErrAlreadyProcessed
			}
			return err
		}
		metrics.ObserveLedgerEntry(entryType, direction, value)
		result = entry
		return nil
	})
	if errors.Is(err, ErrAlreadyProcessed) {
		return result, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdminAdjust 管理员手工调整（正数入账、负数出账）
func (s *WalletService) AdminAdjust(ctx context.Context, memberID uint, delta models.Money, reference, remark string) (*models.LedgerEntry, error) {
	if delta.IsZero() {
		return nil, ErrInvalidAmount
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		reference = "adjust:" + uuid.NewString()
	}
	input := LedgerInput{
		MemberID:  memberID,
		Amount:    models.NewMoneyFromDecimal(delta.Decimal.Abs()),
		Type:      constants.LedgerTypeAdminAdjustment,
		Reference: reference,
		Remark:    cleanLedgerRemark(remark, "admin adjustment"),
	}
	if delta.IsNegative() {
		return s.Debit(ctx, input)
	}
	return s.Credit(ctx, input)
}

// GetBalance 获取会员余额（未开户视为 0）
func (s *WalletService) GetBalance(memberID uint) (*WalletBalance, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	account, err := s.walletRepo.GetAccountByMemberID(memberID)
	if err != nil {
		return nil, err
	}
	balance := &WalletBalance{
		MemberID:  memberID,
		Available: models.ZeroMoney(),
		Locked:    models.ZeroMoney(),
		Total:     models.ZeroMoney(),
	}
	if account != nil {
		balance.Available = account.Available
		balance.Locked = account.Locked
		balance.Total = account.Total
	}
	return balance, nil
}

// GetTransactionHistory 获取最近的流水（按时间倒序）
func (s *WalletService) GetTransactionHistory(memberID uint, limit int) ([]models.LedgerEntry, error) {
	member, err := s.memberRepo.GetByID(memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	if limit <= 0 {
		limit = walletHistoryDefaultLimit
	}
	if limit > walletHistoryMaxLimit {
		limit = walletHistoryMaxLimit
	}
	entries, _, err := s.walletRepo.ListEntries(repository.LedgerEntryListFilter{
		MemberID: memberID,
		Page:     1,
		PageSize: limit,
	})
	return entries, err
}

// ListEntries 分页查询流水
func (s *WalletService) ListEntries(filter repository.LedgerEntryListFilter) ([]models.LedgerEntry, int64, error) {
	return s.walletRepo.ListEntries(filter)
}

// EnsureAccountInTx 在事务内确保钱包账户存在
func (s *WalletService) EnsureAccountInTx(tx *gorm.DB, memberID uint) (*models.WalletAccount, error) {
	return s.ensureAccountForUpdate(s.walletRepo.WithTx(tx), memberID, time.Now())
}

func (s *WalletService) ensureAccountForUpdate(repo repository.WalletRepository, memberID uint, now time.Time) (*models.WalletAccount, error) {
	account, err := repo.GetAccountByMemberIDForUpdate(memberID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &models.WalletAccount{
		MemberID:  memberID,
		Available: models.ZeroMoney(),
		Locked:    models.ZeroMoney(),
		Total:     models.ZeroMoney(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateAccount(account); err != nil {
		if isDuplicateKeyError(err) {
			created, queryErr := repo.GetAccountByMemberIDForUpdate(memberID)
			if queryErr == nil && created != nil {
				return created, nil
			}
		}
		return nil, err
	}
	return account, nil
}

func normalizeLedgerInput(input LedgerInput) (LedgerInput, error) {
	if input.MemberID == 0 {
		return input, ErrInvalidMemberID
	}
	input.Amount = models.NewMoneyFromDecimal(input.Amount.Decimal)
	if !input.Amount.IsPositive() {
		return input, ErrInvalidAmount
	}
	input.Reference = strings.TrimSpace(input.Reference)
	if input.Reference == "" {
		return input, ErrInvalidReference
	}
	input.Type = strings.TrimSpace(input.Type)
	if input.Type == "" {
		return input, ErrInvalidLedgerType
	}
	switch input.Direction {
	case "":
		input.Direction = constants.LedgerDirectionIn
	case constants.LedgerDirectionIn, constants.LedgerDirectionOut:
	default:
		return input, fmt.Errorf("%w: direction %q", ErrInvalidInput, input.Direction)
	}
	input.Remark = cleanLedgerRemark(input.Remark, input.Type)
	return input, nil
}

const ledgerRemarkMaxRunes = 255

// cleanLedgerRemark 去空白、空值回退、按字符截断
func cleanLedgerRemark(raw string, fallback string) string {
	remark := strings.TrimSpace(raw)
	if remark == "" {
		return fallback
	}
	if utf8.RuneCountInString(remark) > ledgerRemarkMaxRunes {
		return string([]rune(remark)[:ledgerRemarkMaxRunes])
	}
	return remark
}

func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// buildReference 生成确定性参考号
func buildReference(prefix string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, part := range parts {
		b.WriteString(":")
		b.WriteString(fmt.Sprint(part))
	}
	return b.String()
}
