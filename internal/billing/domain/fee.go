package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus tracks a platform fee through its lifecycle. The status only
// advances: pending -> consolidated -> paid. Fees are never deleted.
type FeeStatus string

const (
	FeePending      FeeStatus = "pending"
	FeeConsolidated FeeStatus = "consolidated"
	FeePaid         FeeStatus = "paid"
)

// PlatformFee is one per-sale fee record. The amount is computed by the
// order-settlement caller and immutable afterwards.
type PlatformFee struct {
	ID         string
	MerchantID string
	OrderID    string
	Amount     decimal.Decimal
	Status     FeeStatus
	CreatedAt  time.Time
}

// NewPlatformFee validates and builds a pending fee record.
func NewPlatformFee(id, merchantID, orderID string, amount decimal.Decimal, now time.Time) (*PlatformFee, error) {
	if merchantID == "" {
		return nil, ErrEmptyMerchantID
	}
	if orderID == "" {
		return nil, ErrEmptyOrderID
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidFeeAmount
	}
	return &PlatformFee{
		ID:         id,
		MerchantID: merchantID,
		OrderID:    orderID,
		Amount:     amount,
		Status:     FeePending,
		CreatedAt:  now.UTC(),
	}, nil
}

// FeeRepository persists platform fees.
type FeeRepository interface {
	// Create inserts a fee. Returns ErrDuplicateOrder when a fee for the
	// order already exists.
	Create(ctx context.Context, fee *PlatformFee) error
	GetByOrder(ctx context.Context, orderID string) (*PlatformFee, error)
	// ListPendingInWindow returns pending fees created inside [from, to).
	ListPendingInWindow(ctx context.Context, from, to time.Time) ([]PlatformFee, error)
	// MarkConsolidated advances the given fees to consolidated.
	MarkConsolidated(ctx context.Context, ids []string) error
}
