package service

import (
	"errors"
	"fmt"
)

// 错误类别（调用方通过 errors.Is 判断）
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrAlreadyProcessed     = errors.New("already processed")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidInput         = errors.New("invalid input")
)

// 具体业务错误
var (
	ErrMemberNotFound        = fmt.Errorf("%w: member", ErrNotFound)
	ErrSponsorNotFound       = fmt.Errorf("%w: sponsor", ErrNotFound)
	ErrTreeNodeNotFound      = fmt.Errorf("%w: tree node", ErrNotFound)
	ErrSponsorNodeNotFound   = fmt.Errorf("%w: sponsor tree node", ErrNotFound)
	ErrPackageNotFound       = fmt.Errorf("%w: package", ErrNotFound)
	ErrWalletNotFound        = fmt.Errorf("%w: wallet", ErrNotFound)
	ErrMemberAlreadyPlaced   = fmt.Errorf("%w: member already placed", ErrInvalidState)
	ErrTreeRootExists        = fmt.Errorf("%w: tree root already exists", ErrInvalidState)
	ErrPlacementConflict     = fmt.Errorf("%w: placement slot contention", ErrInvalidState)
	ErrMemberInactive        = fmt.Errorf("%w: member inactive", ErrInvalidState)
	ErrUsernameTaken         = fmt.Errorf("%w: username taken", ErrInvalidState)
	ErrPackageNotActive      = fmt.Errorf("%w: package not active", ErrInvalidState)
	ErrPackageNotStopped     = fmt.Errorf("%w: package not stopped", ErrInvalidState)
	ErrReferenceConflict     = fmt.Errorf("%w: reference reused with different payload", ErrInvalidState)
	ErrWalletInconsistent    = fmt.Errorf("%w: wallet balance inconsistent", ErrInvalidState)
	ErrPlanMissing           = fmt.Errorf("%w: commission plan", ErrConfigurationMissing)
	ErrPlanInvalid           = fmt.Errorf("%w: commission plan malformed", ErrConfigurationMissing)
	ErrRankTableMissing      = fmt.Errorf("%w: rank definitions", ErrConfigurationMissing)
	ErrRankTableInvalid      = fmt.Errorf("%w: rank definitions malformed", ErrConfigurationMissing)
	ErrInvalidAmount         = fmt.Errorf("%w: amount", ErrInvalidInput)
	ErrInvalidReference      = fmt.Errorf("%w: reference", ErrInvalidInput)
	ErrInvalidLedgerType     = fmt.Errorf("%w: ledger type", ErrInvalidInput)
	ErrInvalidEventType      = fmt.Errorf("%w: volume event type", ErrInvalidInput)
	ErrInvalidMemberID       = fmt.Errorf("%w: member id", ErrInvalidInput)
	ErrInvalidUsername       = fmt.Errorf("%w: username", ErrInvalidInput)
	ErrPrincipalBelowMinimum = fmt.Errorf("%w: principal below smallest package tier", ErrInvalidInput)
)

// ErrorKind 错误类别标识
type ErrorKind string

// 错误类别常量
const (
	KindNone                 ErrorKind = ""
	KindNotFound             ErrorKind = "not_found"
	KindInvalidState         ErrorKind = "invalid_state"
	KindInsufficientFunds    ErrorKind = "insufficient_funds"
	KindAlreadyProcessed     ErrorKind = "already_processed"
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindInvalidInput         ErrorKind = "invalid_input"
	KindInternal             ErrorKind = "internal"
)

// KindOf 返回错误所属类别
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAlreadyProcessed):
		return KindAlreadyProcessed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	}
	return KindInternal
}

// IsBusinessError 预期内的业务条件（余额不足、状态不符）
func IsBusinessError(err error) bool {
	kind := KindOf(err)
	return kind == KindInsufficientFunds || kind == KindInvalidState
}

// IgnoreAlreadyProcessed 幂等命中视为成功
func IgnoreAlreadyProcessed(err error) error {
	if errors.Is(err, ErrAlreadyProcessed) {
		return nil
	}
	return err
}
