package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	ledger "telegateway/internal/ledger/domain"
	"telegateway/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// InvoiceSettler marks a merchant's overdue invoices as paid once the debt
// behind them has been cleared. Wired to the billing invoice repository; the
// call is best-effort.
type InvoiceSettler interface {
	SettleOverdue(ctx context.Context, merchantID, paymentReference string) error
}

// Service owns every mutation of MerchantBalance. All other components
// (intake, admin override, sweeper) go through these operations so the
// debt-first allocation rule is enforced in exactly one place.
type Service struct {
	balances ledger.BalanceRepository
	txns     ledger.TransactionRepository
	settler  InvoiceSettler
	clock    Clock
	logger   *log.Logger
}

// NewService constructs the ledger service.
func NewService(balances ledger.BalanceRepository, txns ledger.TransactionRepository, settler InvoiceSettler, clock Clock, logger *log.Logger) (*Service, error) {
	if balances == nil {
		return nil, errors.New("ledger service: nil balance repository")
	}
	if txns == nil {
		return nil, errors.New("ledger service: nil transaction repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Service{balances: balances, txns: txns, settler: settler, clock: clock, logger: logger}, nil
}

// Register creates the balance record for a newly onboarded merchant.
func (s *Service) Register(ctx context.Context, merchantID string, feeRate decimal.Decimal) (*ledger.MerchantBalance, error) {
	if merchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}
	if feeRate.IsNegative() {
		return nil, ledger.ErrNegativeFeeRate
	}
	existing, err := s.balances.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ledger.ErrBalanceExists
	}
	balance, err := ledger.NewMerchantBalance(merchantID, feeRate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.balances.Create(ctx, balance); err != nil {
		return nil, err
	}
	metrics.ObserveLedgerOp("register", metrics.ResultSuccess)
	return balance, nil
}

// CreditOutcome reports the state after a credit was applied.
type CreditOutcome struct {
	MerchantID   string
	NewBalance   decimal.Decimal
	NewDebt      decimal.Decimal
	DebtPaid     decimal.Decimal
	BalanceAdded decimal.Decimal
	Unblocked    bool
}

// Credit applies funds through the debt-first allocation rule and appends
// the matching ledger entries. Used by both credit intake and the admin
// override credit action.
func (s *Service) Credit(ctx context.Context, merchantID string, amount decimal.Decimal, method, description, referenceID string) (*CreditOutcome, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	var result ledger.CreditResult
	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		var applyErr error
		result, applyErr = b.ApplyCredit(amount, now)
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if result.DebtPaid.IsPositive() {
		s.append(ctx, ledger.Transaction{
			ID:            uuid.NewString(),
			MerchantID:    merchantID,
			Type:          ledger.TransactionDebtPayment,
			Amount:        result.DebtPaid,
			Description:   description,
			ReferenceID:   referenceID,
			PaymentMethod: method,
			CreatedAt:     now,
		})
	}
	if result.BalanceAdded.IsPositive() || !result.DebtPaid.IsPositive() {
		s.append(ctx, ledger.Transaction{
			ID:            uuid.NewString(),
			MerchantID:    merchantID,
			Type:          ledger.TransactionCredit,
			Amount:        result.BalanceAdded,
			Description:   description,
			ReferenceID:   referenceID,
			PaymentMethod: method,
			CreatedAt:     now,
		})
	}

	if result.DebtPaid.IsPositive() && !balance.DebtAmount.IsPositive() && s.settler != nil {
		if err := s.settler.SettleOverdue(ctx, merchantID, referenceID); err != nil && s.logger != nil {
			s.logger.Printf("ledger: settle overdue invoices failed: merchant=%s err=%v", merchantID, err)
		}
	}

	metrics.ObserveLedgerOp("credit", metrics.ResultSuccess)
	return &CreditOutcome{
		MerchantID:   merchantID,
		NewBalance:   balance.Balance,
		NewDebt:      balance.DebtAmount,
		DebtPaid:     result.DebtPaid,
		BalanceAdded: result.BalanceAdded,
		Unblocked:    result.Unblocked,
	}, nil
}

// DebitOutcome reports the state after a debit.
type DebitOutcome struct {
	MerchantID string
	NewBalance decimal.Decimal
	NewDebt    decimal.Decimal
	Debited    decimal.Decimal
}

// Debit removes funds from the spendable balance, clamped at zero. Admin
// only; it never creates debt.
func (s *Service) Debit(ctx context.Context, merchantID string, amount decimal.Decimal, description string) (*DebitOutcome, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	var debited decimal.Decimal
	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		var applyErr error
		debited, applyErr = b.ApplyDebit(amount, now)
		return applyErr
	})
	if err != nil {
		return nil, err
	}

	s.append(ctx, ledger.Transaction{
		ID:          uuid.NewString(),
		MerchantID:  merchantID,
		Type:        ledger.TransactionDebit,
		Amount:      debited.Neg(),
		Description: description,
		CreatedAt:   s.clock.Now(),
	})

	metrics.ObserveLedgerOp("debit", metrics.ResultSuccess)
	return &DebitOutcome{
		MerchantID: merchantID,
		NewBalance: balance.Balance,
		NewDebt:    balance.DebtAmount,
		Debited:    debited,
	}, nil
}

// AccrueDebt adds consolidated platform fees to the merchant's debt and logs
// a fee_deduction entry. Called when a daily invoice goes overdue unpaid.
func (s *Service) AccrueDebt(ctx context.Context, merchantID string, amount decimal.Decimal, referenceID, description string) (*ledger.MerchantBalance, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		return b.AccrueDebt(amount, now)
	})
	if err != nil {
		return nil, err
	}

	s.append(ctx, ledger.Transaction{
		ID:          uuid.NewString(),
		MerchantID:  merchantID,
		Type:        ledger.TransactionFeeDeduction,
		Amount:      amount.Neg(),
		Description: description,
		ReferenceID: referenceID,
		CreatedAt:   s.clock.Now(),
	})

	metrics.ObserveLedgerOp("accrue_debt", metrics.ResultSuccess)
	return balance, nil
}

// ForceUnblock lifts a block while keeping the debt, restarting the grace
// clock. Fails with ErrNotBlocked on a merchant that is not blocked.
func (s *Service) ForceUnblock(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		return b.ForceUnblock(now)
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveLedgerOp("unblock", metrics.ResultSuccess)
	return balance, nil
}

// Block suspends a merchant. Used by the delinquency sweeper.
func (s *Service) Block(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		b.Block(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveLedgerOp("block", metrics.ResultSuccess)
	return balance, nil
}

// FeeRateChange reports an adjusted fee rate.
type FeeRateChange struct {
	MerchantID string
	OldRate    decimal.Decimal
	NewRate    decimal.Decimal
}

// AdjustFeeRate replaces the merchant's platform fee rate. Admin only.
func (s *Service) AdjustFeeRate(ctx context.Context, merchantID string, rate decimal.Decimal) (*FeeRateChange, error) {
	if rate.IsNegative() {
		return nil, ledger.ErrNegativeFeeRate
	}

	var old decimal.Decimal
	balance, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		var adjustErr error
		old, adjustErr = b.AdjustFeeRate(rate, now)
		return adjustErr
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveLedgerOp("adjust_fee_rate", metrics.ResultSuccess)
	return &FeeRateChange{MerchantID: merchantID, OldRate: old, NewRate: balance.FeeRate}, nil
}

// MarkWarned stores the final-warning timestamp used for warn dedup.
func (s *Service) MarkWarned(ctx context.Context, merchantID string) error {
	_, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		b.MarkWarned(now)
		return nil
	})
	return err
}

// BackfillDebtClock defensively sets debt_started_at for a delinquent
// merchant missing it. The sweeper does not block on the same pass.
func (s *Service) BackfillDebtClock(ctx context.Context, merchantID string) error {
	_, err := s.mutate(ctx, merchantID, func(b *ledger.MerchantBalance, now time.Time) error {
		if b.DebtStartedAt == nil {
			started := now.UTC()
			b.DebtStartedAt = &started
			b.UpdatedAt = now.UTC()
		}
		return nil
	})
	return err
}

// Balance returns the current solvency snapshot for a merchant.
func (s *Service) Balance(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	if merchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}
	balance, err := s.balances.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, ledger.ErrBalanceNotFound
	}
	return balance, nil
}

// Transactions lists the merchant's ledger history, newest first.
func (s *Service) Transactions(ctx context.Context, merchantID string, limit int) ([]ledger.Transaction, error) {
	if merchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}
	if limit <= 0 {
		limit = 50
	}
	return s.txns.ListByMerchant(ctx, merchantID, limit)
}

// Delinquents lists merchants with positive debt that are not blocked.
func (s *Service) Delinquents(ctx context.Context) ([]*ledger.MerchantBalance, error) {
	return s.balances.ListDelinquent(ctx)
}

// mutate runs one read-modify-write cycle guarded by the balance version.
// A single retry covers the webhook-redelivery vs admin-credit race; a second
// conflict is surfaced to the caller.
func (s *Service) mutate(ctx context.Context, merchantID string, apply func(*ledger.MerchantBalance, time.Time) error) (*ledger.MerchantBalance, error) {
	if merchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}

	for attempt := 0; attempt < 2; attempt++ {
		balance, err := s.balances.Get(ctx, merchantID)
		if err != nil {
			return nil, err
		}
		if balance == nil {
			return nil, ledger.ErrBalanceNotFound
		}
		if err := apply(balance, s.clock.Now()); err != nil {
			return nil, err
		}
		err = s.balances.Update(ctx, balance)
		if err == nil {
			return balance, nil
		}
		if !errors.Is(err, ledger.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("ledger: merchant %s: %w", merchantID, ledger.ErrVersionConflict)
}

// append writes a ledger entry. The balance mutation is the source of truth;
// a failed append is logged loudly but never rolls it back.
func (s *Service) append(ctx context.Context, txn ledger.Transaction) {
	if err := s.txns.Append(ctx, txn); err != nil && s.logger != nil {
		s.logger.Printf("ledger: transaction log append failed: merchant=%s type=%s err=%v", txn.MerchantID, txn.Type, err)
	}
}
