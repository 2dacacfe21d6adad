package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks a daily fee invoice.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

// DailyFeeInvoice aggregates one calendar day's fees for one merchant.
// Unique per (merchant, invoice_date); duplicate creation is a no-op at the
// repository layer so the consolidation job can be re-run safely.
type DailyFeeInvoice struct {
	ID               string
	MerchantID       string
	InvoiceDate      time.Time
	TotalFees        decimal.Decimal
	FeesCount        int
	Status           InvoiceStatus
	DueDate          time.Time
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewDailyFeeInvoice builds a pending invoice for one merchant and day.
// The invoice is due one day after its date.
func NewDailyFeeInvoice(id, merchantID string, invoiceDate time.Time, totalFees decimal.Decimal, feesCount int, now time.Time) (*DailyFeeInvoice, error) {
	if merchantID == "" {
		return nil, ErrEmptyMerchantID
	}
	if invoiceDate.IsZero() {
		return nil, ErrInvalidInvoiceDate
	}
	if !totalFees.IsPositive() || feesCount <= 0 {
		return nil, ErrEmptyInvoice
	}
	return &DailyFeeInvoice{
		ID:          id,
		MerchantID:  merchantID,
		InvoiceDate: invoiceDate,
		TotalFees:   totalFees,
		FeesCount:   feesCount,
		Status:      InvoicePending,
		DueDate:     invoiceDate.AddDate(0, 0, 1),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// InvoiceRepository persists daily fee invoices.
type InvoiceRepository interface {
	// Create inserts an invoice. Returns ErrDuplicateInvoice when one
	// already exists for the (merchant, invoice_date) pair.
	Create(ctx context.Context, invoice *DailyFeeInvoice) error
	// ListDuePending returns pending invoices whose due date has passed.
	ListDuePending(ctx context.Context, before time.Time) ([]DailyFeeInvoice, error)
	// MarkOverdue flips a pending invoice to overdue. Returns false when
	// the invoice was not pending anymore, so a caller acting on the
	// transition acts at most once.
	MarkOverdue(ctx context.Context, id string, at time.Time) (bool, error)
	// SettleOverdue marks every overdue invoice of the merchant paid,
	// recording the payment reference. Called once the debt behind them
	// has been cleared.
	SettleOverdue(ctx context.Context, merchantID, paymentReference string) error
	ListByMerchant(ctx context.Context, merchantID string, from, to time.Time) ([]DailyFeeInvoice, error)
}
