package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a balance-affecting event.
type TransactionType string

const (
	TransactionCredit       TransactionType = "credit"
	TransactionDebit        TransactionType = "debit"
	TransactionFeeDeduction TransactionType = "fee_deduction"
	TransactionDebtPayment  TransactionType = "debt_payment"
)

// Transaction is one append-only ledger entry. Entries are written once and
// used for audit and display; the live balance is never recomputed from them.
type Transaction struct {
	ID            string
	MerchantID    string
	Type          TransactionType
	Amount        decimal.Decimal
	Description   string
	ReferenceID   string
	PaymentMethod string
	CreatedAt     time.Time
}

// BalanceRepository persists merchant balance records.
type BalanceRepository interface {
	// Get returns the balance for a merchant, or nil when absent.
	Get(ctx context.Context, merchantID string) (*MerchantBalance, error)
	// Create inserts a new balance record.
	Create(ctx context.Context, balance *MerchantBalance) error
	// Update persists the aggregate as one atomic write guarded by the
	// version the aggregate was loaded with. Returns ErrVersionConflict
	// when a concurrent writer got there first.
	Update(ctx context.Context, balance *MerchantBalance) error
	// ListDelinquent returns merchants with positive debt that are not
	// blocked yet.
	ListDelinquent(ctx context.Context) ([]*MerchantBalance, error)
}

// TransactionRepository appends and lists ledger entries.
type TransactionRepository interface {
	Append(ctx context.Context, txn Transaction) error
	ListByMerchant(ctx context.Context, merchantID string, limit int) ([]Transaction, error)
	ListByMerchantBetween(ctx context.Context, merchantID string, from, to time.Time) ([]Transaction, error)
}
