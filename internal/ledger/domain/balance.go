package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantBalance is the solvency record for one merchant. It is the single
// source of truth for balance, debt and blocked state; every mutation goes
// through the aggregate methods so the debt-first allocation rule cannot be
// bypassed.
type MerchantBalance struct {
	MerchantID    string
	Balance       decimal.Decimal
	DebtAmount    decimal.Decimal
	DebtStartedAt *time.Time
	IsBlocked     bool
	BlockedAt     *time.Time
	FeeRate       decimal.Decimal
	MaxDebtDays   int
	LastWarnedAt  *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DefaultMaxDebtDays is the grace period applied when a merchant has no
// per-merchant override.
const DefaultMaxDebtDays = 3

// NewMerchantBalance creates a zeroed balance record for onboarding.
func NewMerchantBalance(merchantID string, feeRate decimal.Decimal, now time.Time) (*MerchantBalance, error) {
	if merchantID == "" {
		return nil, ErrEmptyMerchantID
	}
	if feeRate.IsNegative() {
		return nil, ErrNegativeFeeRate
	}
	return &MerchantBalance{
		MerchantID:  merchantID,
		Balance:     decimal.Zero,
		DebtAmount:  decimal.Zero,
		FeeRate:     feeRate,
		MaxDebtDays: DefaultMaxDebtDays,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// CreditResult reports how a credit was allocated.
type CreditResult struct {
	DebtPaid     decimal.Decimal
	BalanceAdded decimal.Decimal
	Unblocked    bool
}

// ApplyCredit allocates funds debt-first: outstanding debt is paid before
// anything accumulates as spendable balance. Clearing the last cent of debt
// also clears the debt clock and any block.
func (b *MerchantBalance) ApplyCredit(amount decimal.Decimal, now time.Time) (CreditResult, error) {
	if b == nil {
		return CreditResult{}, ErrNilBalance
	}
	if !amount.IsPositive() {
		return CreditResult{}, ErrInvalidAmount
	}

	var result CreditResult
	if b.DebtAmount.IsPositive() {
		if amount.GreaterThanOrEqual(b.DebtAmount) {
			result.DebtPaid = b.DebtAmount
			result.BalanceAdded = amount.Sub(b.DebtAmount)
			b.Balance = b.Balance.Add(result.BalanceAdded)
			b.DebtAmount = decimal.Zero
			b.DebtStartedAt = nil
			b.LastWarnedAt = nil
			if b.IsBlocked {
				b.IsBlocked = false
				b.BlockedAt = nil
				result.Unblocked = true
			}
		} else {
			result.DebtPaid = amount
			b.DebtAmount = b.DebtAmount.Sub(amount)
		}
	} else {
		result.BalanceAdded = amount
		b.Balance = b.Balance.Add(amount)
	}
	b.UpdatedAt = now.UTC()
	return result, nil
}

// ApplyDebit removes funds from the spendable balance, clamped at zero.
// A debit never creates or increases debt. Returns the amount actually
// removed.
func (b *MerchantBalance) ApplyDebit(amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if b == nil {
		return decimal.Zero, ErrNilBalance
	}
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	debited := amount
	if debited.GreaterThan(b.Balance) {
		debited = b.Balance
	}
	b.Balance = b.Balance.Sub(debited)
	b.UpdatedAt = now.UTC()
	return debited, nil
}

// AccrueDebt adds unpaid platform fees to the merchant's debt. The debt clock
// starts the first time debt becomes positive from zero and is left untouched
// otherwise.
func (b *MerchantBalance) AccrueDebt(amount decimal.Decimal, now time.Time) error {
	if b == nil {
		return ErrNilBalance
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	wasZero := !b.DebtAmount.IsPositive()
	b.DebtAmount = b.DebtAmount.Add(amount)
	if wasZero {
		started := now.UTC()
		b.DebtStartedAt = &started
	}
	b.UpdatedAt = now.UTC()
	return nil
}

// ForceUnblock lifts a block without forgiving the debt. The debt clock is
// reset to now, granting the merchant a fresh grace period rather than a
// clean slate.
func (b *MerchantBalance) ForceUnblock(now time.Time) error {
	if b == nil {
		return ErrNilBalance
	}
	if !b.IsBlocked {
		return ErrNotBlocked
	}
	b.IsBlocked = false
	b.BlockedAt = nil
	if b.DebtAmount.IsPositive() {
		started := now.UTC()
		b.DebtStartedAt = &started
		b.LastWarnedAt = nil
	}
	b.UpdatedAt = now.UTC()
	return nil
}

// Block suspends the merchant. Blocking an already-blocked merchant is a
// no-op so the sweeper can never double-block.
func (b *MerchantBalance) Block(now time.Time) {
	if b == nil || b.IsBlocked {
		return
	}
	b.IsBlocked = true
	blocked := now.UTC()
	b.BlockedAt = &blocked
	b.UpdatedAt = now.UTC()
}

// AdjustFeeRate replaces the per-sale fee rate, returning the previous rate.
func (b *MerchantBalance) AdjustFeeRate(rate decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if b == nil {
		return decimal.Zero, ErrNilBalance
	}
	if rate.IsNegative() {
		return decimal.Zero, ErrNegativeFeeRate
	}
	old := b.FeeRate
	b.FeeRate = rate
	b.UpdatedAt = now.UTC()
	return old, nil
}

// GracePeriodDays returns the effective grace period for this merchant.
func (b *MerchantBalance) GracePeriodDays() int {
	if b == nil || b.MaxDebtDays <= 0 {
		return DefaultMaxDebtDays
	}
	return b.MaxDebtDays
}

// DaysSinceDebt computes whole days elapsed since the debt clock started.
// Returns -1 when the clock has not started.
func (b *MerchantBalance) DaysSinceDebt(now time.Time) int {
	if b == nil || b.DebtStartedAt == nil {
		return -1
	}
	elapsed := now.UTC().Sub(b.DebtStartedAt.UTC())
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return int(elapsed.Hours() / 24)
}

// MarkWarned records that a final warning was sent.
func (b *MerchantBalance) MarkWarned(now time.Time) {
	if b == nil {
		return
	}
	warned := now.UTC()
	b.LastWarnedAt = &warned
	b.UpdatedAt = now.UTC()
}

// WarnedToday reports whether a final warning was already sent within the
// same UTC calendar day.
func (b *MerchantBalance) WarnedToday(now time.Time) bool {
	if b == nil || b.LastWarnedAt == nil {
		return false
	}
	y1, m1, d1 := b.LastWarnedAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Clone returns a deep copy so repositories can hand out snapshots.
func (b *MerchantBalance) Clone() *MerchantBalance {
	if b == nil {
		return nil
	}
	copied := *b
	if b.DebtStartedAt != nil {
		t := *b.DebtStartedAt
		copied.DebtStartedAt = &t
	}
	if b.BlockedAt != nil {
		t := *b.BlockedAt
		copied.BlockedAt = &t
	}
	if b.LastWarnedAt != nil {
		t := *b.LastWarnedAt
		copied.LastWarnedAt = &t
	}
	return &copied
}
