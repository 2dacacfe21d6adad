package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func testBalance(t *testing.T) *MerchantBalance {
	t.Helper()
	balance, err := NewMerchantBalance("merchant-1", dec("0.05"), time.Now())
	if err != nil {
		t.Fatalf("new balance: %v", err)
	}
	return balance
}

func TestApplyCredit_NoDebtIsPureAddition(t *testing.T) {
	balance := testBalance(t)
	balance.Balance = dec("10")

	result, err := balance.ApplyCredit(dec("25.50"), time.Now())
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if !balance.Balance.Equal(dec("35.50")) {
		t.Fatalf("expected balance 35.50, got %s", balance.Balance)
	}
	if !result.BalanceAdded.Equal(dec("25.50")) || !result.DebtPaid.IsZero() {
		t.Fatalf("expected pure addition, got debt_paid=%s added=%s", result.DebtPaid, result.BalanceAdded)
	}
	if !balance.DebtAmount.IsZero() {
		t.Fatalf("debt should stay zero, got %s", balance.DebtAmount)
	}
}

func TestApplyCredit_DebtFirstWithSurplus(t *testing.T) {
	balance := testBalance(t)
	started := time.Now().Add(-48 * time.Hour)
	balance.DebtAmount = dec("30")
	balance.DebtStartedAt = &started

	result, err := balance.ApplyCredit(dec("100"), time.Now())
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if !result.DebtPaid.Equal(dec("30")) {
		t.Fatalf("expected debt paid 30, got %s", result.DebtPaid)
	}
	if !result.BalanceAdded.Equal(dec("70")) {
		t.Fatalf("expected 70 added, got %s", result.BalanceAdded)
	}
	if !balance.DebtAmount.IsZero() {
		t.Fatalf("debt should be cleared, got %s", balance.DebtAmount)
	}
	if balance.DebtStartedAt != nil {
		t.Fatal("debt clock should be cleared on full payment")
	}
}

func TestApplyCredit_PartialPaymentLeavesBalanceUntouched(t *testing.T) {
	balance := testBalance(t)
	started := time.Now().Add(-24 * time.Hour)
	balance.DebtAmount = dec("50")
	balance.DebtStartedAt = &started

	result, err := balance.ApplyCredit(dec("20"), time.Now())
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if !result.DebtPaid.Equal(dec("20")) || !result.BalanceAdded.IsZero() {
		t.Fatalf("expected all 20 to debt, got debt_paid=%s added=%s", result.DebtPaid, result.BalanceAdded)
	}
	if !balance.DebtAmount.Equal(dec("30")) {
		t.Fatalf("expected remaining debt 30, got %s", balance.DebtAmount)
	}
	if !balance.Balance.IsZero() {
		t.Fatalf("balance must stay untouched, got %s", balance.Balance)
	}
	if balance.DebtStartedAt == nil {
		t.Fatal("debt clock must survive a partial payment")
	}
}

func TestApplyCredit_FullClearanceUnblocks(t *testing.T) {
	balance := testBalance(t)
	started := time.Now().Add(-96 * time.Hour)
	blocked := time.Now().Add(-24 * time.Hour)
	warned := time.Now().Add(-30 * time.Hour)
	balance.DebtAmount = dec("40")
	balance.DebtStartedAt = &started
	balance.IsBlocked = true
	balance.BlockedAt = &blocked
	balance.LastWarnedAt = &warned

	result, err := balance.ApplyCredit(dec("40"), time.Now())
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if !result.Unblocked {
		t.Fatal("expected auto-unblock on full clearance")
	}
	if balance.IsBlocked || balance.BlockedAt != nil {
		t.Fatal("block state should be cleared")
	}
	if balance.DebtStartedAt != nil || balance.LastWarnedAt != nil {
		t.Fatal("debt clock and warning marker should be cleared")
	}
}

func TestApplyCredit_PartialPaymentKeepsBlock(t *testing.T) {
	balance := testBalance(t)
	started := time.Now().Add(-96 * time.Hour)
	blocked := time.Now()
	balance.DebtAmount = dec("40")
	balance.DebtStartedAt = &started
	balance.IsBlocked = true
	balance.BlockedAt = &blocked

	result, err := balance.ApplyCredit(dec("39.99"), time.Now())
	if err != nil {
		t.Fatalf("apply credit: %v", err)
	}
	if result.Unblocked || !balance.IsBlocked {
		t.Fatal("partial payment must not unblock")
	}
	if !balance.DebtAmount.Equal(dec("0.01")) {
		t.Fatalf("expected remaining debt 0.01, got %s", balance.DebtAmount)
	}
}

func TestApplyCredit_RejectsNonPositive(t *testing.T) {
	balance := testBalance(t)
	for _, amount := range []string{"0", "-5"} {
		if _, err := balance.ApplyCredit(dec(amount), time.Now()); err != ErrInvalidAmount {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestApplyDebit_ClampsAtZero(t *testing.T) {
	balance := testBalance(t)
	balance.Balance = dec("10")

	debited, err := balance.ApplyDebit(dec("25"), time.Now())
	if err != nil {
		t.Fatalf("apply debit: %v", err)
	}
	if !debited.Equal(dec("10")) {
		t.Fatalf("expected debit clamped to 10, got %s", debited)
	}
	if !balance.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", balance.Balance)
	}
	if !balance.DebtAmount.IsZero() {
		t.Fatal("debit must never create debt")
	}
}

func TestAccrueDebt_StartsClockOnce(t *testing.T) {
	balance := testBalance(t)
	first := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	second := time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC)

	if err := balance.AccrueDebt(dec("10"), first); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if balance.DebtStartedAt == nil || !balance.DebtStartedAt.Equal(first) {
		t.Fatalf("expected clock at %s, got %v", first, balance.DebtStartedAt)
	}

	if err := balance.AccrueDebt(dec("5"), second); err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !balance.DebtStartedAt.Equal(first) {
		t.Fatal("second accrual must not restart the clock")
	}
	if !balance.DebtAmount.Equal(dec("15")) {
		t.Fatalf("expected debt 15, got %s", balance.DebtAmount)
	}
}

func TestForceUnblock_ResetsGraceClockOnly(t *testing.T) {
	balance := testBalance(t)
	started := time.Now().Add(-5 * 24 * time.Hour)
	blocked := time.Now().Add(-24 * time.Hour)
	warned := time.Now().Add(-26 * time.Hour)
	balance.DebtAmount = dec("60")
	balance.DebtStartedAt = &started
	balance.IsBlocked = true
	balance.BlockedAt = &blocked
	balance.LastWarnedAt = &warned

	now := time.Now()
	if err := balance.ForceUnblock(now); err != nil {
		t.Fatalf("force unblock: %v", err)
	}
	if balance.IsBlocked || balance.BlockedAt != nil {
		t.Fatal("block should be lifted")
	}
	if !balance.DebtAmount.Equal(dec("60")) {
		t.Fatal("force unblock must not forgive debt")
	}
	if balance.DebtStartedAt == nil || !balance.DebtStartedAt.Equal(now.UTC()) {
		t.Fatalf("debt clock should restart at now, got %v", balance.DebtStartedAt)
	}
	if balance.LastWarnedAt != nil {
		t.Fatal("warning marker should be cleared with the fresh grace period")
	}
}

func TestForceUnblock_NotBlocked(t *testing.T) {
	balance := testBalance(t)
	if err := balance.ForceUnblock(time.Now()); err != ErrNotBlocked {
		t.Fatalf("expected ErrNotBlocked, got %v", err)
	}
}

func TestBlock_Idempotent(t *testing.T) {
	balance := testBalance(t)
	first := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	balance.Block(first)
	if !balance.IsBlocked || balance.BlockedAt == nil {
		t.Fatal("expected blocked state")
	}
	balance.Block(first.Add(24 * time.Hour))
	if !balance.BlockedAt.Equal(first) {
		t.Fatal("re-blocking must not move the block timestamp")
	}
}

func TestDaysSinceDebt(t *testing.T) {
	balance := testBalance(t)
	if got := balance.DaysSinceDebt(time.Now()); got != -1 {
		t.Fatalf("no clock: expected -1, got %d", got)
	}

	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		hoursAgo float64
		want     int
	}{
		{hoursAgo: 1, want: 0},
		{hoursAgo: 25, want: 1},
		{hoursAgo: 71, want: 2},
		{hoursAgo: 72, want: 3},
	}
	for _, tc := range cases {
		started := now.Add(-time.Duration(tc.hoursAgo * float64(time.Hour)))
		balance.DebtStartedAt = &started
		if got := balance.DaysSinceDebt(now); got != tc.want {
			t.Fatalf("hoursAgo=%.0f: expected %d days, got %d", tc.hoursAgo, tc.want, got)
		}
	}
}

func TestWarnedToday(t *testing.T) {
	balance := testBalance(t)
	now := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	if balance.WarnedToday(now) {
		t.Fatal("no warning yet")
	}
	balance.MarkWarned(now.Add(-2 * time.Hour))
	if !balance.WarnedToday(now) {
		t.Fatal("expected warned within same day")
	}
	if balance.WarnedToday(now.Add(24 * time.Hour)) {
		t.Fatal("next day should warn again")
	}
}

func TestAdjustFeeRate(t *testing.T) {
	balance := testBalance(t)
	old, err := balance.AdjustFeeRate(dec("0.07"), time.Now())
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if !old.Equal(dec("0.05")) || !balance.FeeRate.Equal(dec("0.07")) {
		t.Fatalf("expected 0.05 -> 0.07, got %s -> %s", old, balance.FeeRate)
	}
	if _, err := balance.AdjustFeeRate(dec("-0.01"), time.Now()); err != ErrNegativeFeeRate {
		t.Fatalf("expected ErrNegativeFeeRate, got %v", err)
	}
}
