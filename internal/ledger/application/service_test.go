package application

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	ledger "telegateway/internal/ledger/domain"
	"telegateway/internal/ledger/infrastructure/memory"

	"github.com/shopspring/decimal"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type settlerStub struct {
	calls []string
	err   error
}

func (s *settlerStub) SettleOverdue(_ context.Context, merchantID, _ string) error {
	s.calls = append(s.calls, merchantID)
	return s.err
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestService(t *testing.T) (*Service, *memory.BalanceRepository, *memory.TransactionRepository, *settlerStub) {
	t.Helper()
	balances := memory.NewBalanceRepository()
	txns := memory.NewTransactionRepository()
	settler := &settlerStub{}
	logger := log.New(os.Stdout, "", 0)
	svc, err := NewService(balances, txns, settler, fixedClock{now: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)}, logger)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, balances, txns, settler
}

func seedBalance(t *testing.T, balances *memory.BalanceRepository, mutate func(*ledger.MerchantBalance)) {
	t.Helper()
	balance, err := ledger.NewMerchantBalance("merchant-1", dec("0.05"), time.Now())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if mutate != nil {
		mutate(balance)
	}
	if err := balances.Create(context.Background(), balance); err != nil {
		t.Fatalf("seed create: %v", err)
	}
}

func TestCredit_SplitsIntoDebtPaymentAndCreditEntries(t *testing.T) {
	svc, balances, txns, _ := newTestService(t)
	seedBalance(t, balances, func(b *ledger.MerchantBalance) {
		started := time.Now().Add(-24 * time.Hour)
		b.DebtAmount = dec("30")
		b.DebtStartedAt = &started
	})

	outcome, err := svc.Credit(context.Background(), "merchant-1", dec("100"), "pix", "Recarga", "pay-1")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !outcome.DebtPaid.Equal(dec("30")) || !outcome.BalanceAdded.Equal(dec("70")) {
		t.Fatalf("unexpected allocation: debt_paid=%s added=%s", outcome.DebtPaid, outcome.BalanceAdded)
	}

	entries := txns.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].Type != ledger.TransactionDebtPayment || !entries[0].Amount.Equal(dec("30")) {
		t.Fatalf("first entry should be debt_payment of 30, got %s %s", entries[0].Type, entries[0].Amount)
	}
	if entries[1].Type != ledger.TransactionCredit || !entries[1].Amount.Equal(dec("70")) {
		t.Fatalf("second entry should be credit of 70, got %s %s", entries[1].Type, entries[1].Amount)
	}
	for _, entry := range entries {
		if entry.ReferenceID != "pay-1" {
			t.Fatalf("entry missing payment reference: %+v", entry)
		}
	}
}

func TestCredit_FullClearanceSettlesOverdueInvoices(t *testing.T) {
	svc, balances, _, settler := newTestService(t)
	seedBalance(t, balances, func(b *ledger.MerchantBalance) {
		started := time.Now().Add(-96 * time.Hour)
		b.DebtAmount = dec("40")
		b.DebtStartedAt = &started
		b.IsBlocked = true
		blocked := time.Now()
		b.BlockedAt = &blocked
	})

	outcome, err := svc.Credit(context.Background(), "merchant-1", dec("40"), "pix", "Recarga", "pay-2")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !outcome.Unblocked {
		t.Fatal("expected auto-unblock")
	}
	if len(settler.calls) != 1 || settler.calls[0] != "merchant-1" {
		t.Fatalf("expected one settle call for merchant-1, got %v", settler.calls)
	}
}

func TestCredit_PartialPaymentDoesNotSettle(t *testing.T) {
	svc, balances, _, settler := newTestService(t)
	seedBalance(t, balances, func(b *ledger.MerchantBalance) {
		started := time.Now().Add(-24 * time.Hour)
		b.DebtAmount = dec("40")
		b.DebtStartedAt = &started
	})

	if _, err := svc.Credit(context.Background(), "merchant-1", dec("10"), "pix", "Recarga", "pay-3"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if len(settler.calls) != 0 {
		t.Fatalf("partial payment must not settle invoices, got %v", settler.calls)
	}
}

func TestCredit_UnknownMerchant(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	if _, err := svc.Credit(context.Background(), "ghost", dec("10"), "pix", "", ""); !errors.Is(err, ledger.ErrBalanceNotFound) {
		t.Fatalf("expected ErrBalanceNotFound, got %v", err)
	}
}

func TestDebit_WritesNegativeEntry(t *testing.T) {
	svc, balances, txns, _ := newTestService(t)
	seedBalance(t, balances, func(b *ledger.MerchantBalance) {
		b.Balance = dec("50")
	})

	outcome, err := svc.Debit(context.Background(), "merchant-1", dec("20"), "Ajuste manual")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !outcome.NewBalance.Equal(dec("30")) {
		t.Fatalf("expected balance 30, got %s", outcome.NewBalance)
	}
	entries := txns.All()
	if len(entries) != 1 || entries[0].Type != ledger.TransactionDebit {
		t.Fatalf("expected one debit entry, got %+v", entries)
	}
	if !entries[0].Amount.Equal(dec("-20")) {
		t.Fatalf("debit entry should be negative, got %s", entries[0].Amount)
	}
}

func TestAccrueDebt_WritesFeeDeductionEntry(t *testing.T) {
	svc, balances, txns, _ := newTestService(t)
	seedBalance(t, balances, nil)

	balance, err := svc.AccrueDebt(context.Background(), "merchant-1", dec("12.34"), "invoice-1", "Fatura não paga")
	if err != nil {
		t.Fatalf("accrue: %v", err)
	}
	if !balance.DebtAmount.Equal(dec("12.34")) || balance.DebtStartedAt == nil {
		t.Fatalf("unexpected state: debt=%s clock=%v", balance.DebtAmount, balance.DebtStartedAt)
	}
	entries := txns.All()
	if len(entries) != 1 || entries[0].Type != ledger.TransactionFeeDeduction {
		t.Fatalf("expected one fee_deduction entry, got %+v", entries)
	}
	if !entries[0].Amount.Equal(dec("-12.34")) || entries[0].ReferenceID != "invoice-1" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestMutate_RetriesOnceOnVersionConflict(t *testing.T) {
	svc, balances, _, _ := newTestService(t)
	seedBalance(t, balances, nil)

	// Interleave a concurrent write by bumping the stored version between
	// the service's read and write using a racing repository wrapper.
	racing := &racingRepo{BalanceRepository: balances, conflicts: 1}
	svc.balances = racing

	if _, err := svc.Credit(context.Background(), "merchant-1", dec("10"), "pix", "", ""); err != nil {
		t.Fatalf("credit should succeed after one retry: %v", err)
	}
	if racing.updates != 2 {
		t.Fatalf("expected 2 update attempts, got %d", racing.updates)
	}
}

func TestMutate_SurfacesSecondConflict(t *testing.T) {
	svc, balances, _, _ := newTestService(t)
	seedBalance(t, balances, nil)

	racing := &racingRepo{BalanceRepository: balances, conflicts: 2}
	svc.balances = racing

	if _, err := svc.Credit(context.Background(), "merchant-1", dec("10"), "pix", "", ""); !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	balance, err := svc.Register(context.Background(), "merchant-2", dec("0.03"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !balance.Balance.IsZero() || !balance.FeeRate.Equal(dec("0.03")) {
		t.Fatalf("unexpected new balance: %+v", balance)
	}
	if _, err := svc.Register(context.Background(), "merchant-2", dec("0.03")); !errors.Is(err, ledger.ErrBalanceExists) {
		t.Fatalf("expected ErrBalanceExists, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "merchant-3", dec("-0.01")); !errors.Is(err, ledger.ErrNegativeFeeRate) {
		t.Fatalf("expected ErrNegativeFeeRate, got %v", err)
	}
}

// racingRepo forces the first N updates to fail with a version conflict.
type racingRepo struct {
	*memory.BalanceRepository
	conflicts int
	updates   int
}

func (r *racingRepo) Update(ctx context.Context, balance *ledger.MerchantBalance) error {
	r.updates++
	if r.updates <= r.conflicts {
		return ledger.ErrVersionConflict
	}
	return r.BalanceRepository.Update(ctx, balance)
}
