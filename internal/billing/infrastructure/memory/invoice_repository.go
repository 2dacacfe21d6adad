package memory

import (
	"context"
	"sync"
	"time"

	billing "telegateway/internal/billing/domain"
)

// InvoiceRepository is an in-memory invoice store for tests.
type InvoiceRepository struct {
	mu    sync.RWMutex
	byID  map[string]*billing.DailyFeeInvoice
	byDay map[string]string
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{
		byID:  make(map[string]*billing.DailyFeeInvoice),
		byDay: make(map[string]string),
	}
}

func dayKey(merchantID string, invoiceDate time.Time) string {
	return merchantID + "|" + invoiceDate.UTC().Format("2006-01-02")
}

// Create inserts an invoice, enforcing (merchant, date) uniqueness.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *billing.DailyFeeInvoice) error {
	_ = ctx
	if invoice == nil {
		return billing.ErrEmptyInvoice
	}
	key := dayKey(invoice.MerchantID, invoice.InvoiceDate)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byDay[key]; exists {
		return billing.ErrDuplicateInvoice
	}
	copied := *invoice
	r.byID[invoice.ID] = &copied
	r.byDay[key] = invoice.ID
	return nil
}

// ListDuePending returns pending invoices whose due date has passed.
func (r *InvoiceRepository) ListDuePending(ctx context.Context, before time.Time) ([]billing.DailyFeeInvoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.DailyFeeInvoice
	for _, invoice := range r.byID {
		if invoice.Status == billing.InvoicePending && invoice.DueDate.Before(before) {
			result = append(result, *invoice)
		}
	}
	return result, nil
}

// MarkOverdue flips a pending invoice to overdue.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, id string, at time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	invoice := r.byID[id]
	if invoice == nil || invoice.Status != billing.InvoicePending {
		return false, nil
	}
	invoice.Status = billing.InvoiceOverdue
	invoice.UpdatedAt = at.UTC()
	return true, nil
}

// SettleOverdue marks every overdue invoice of the merchant paid.
func (r *InvoiceRepository) SettleOverdue(ctx context.Context, merchantID, paymentReference string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, invoice := range r.byID {
		if invoice.MerchantID == merchantID && invoice.Status == billing.InvoiceOverdue {
			invoice.Status = billing.InvoicePaid
			invoice.PaymentReference = paymentReference
		}
	}
	return nil
}

// ListByMerchant returns the merchant's invoices inside [from, to).
func (r *InvoiceRepository) ListByMerchant(ctx context.Context, merchantID string, from, to time.Time) ([]billing.DailyFeeInvoice, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.DailyFeeInvoice
	for _, invoice := range r.byID {
		if invoice.MerchantID != merchantID {
			continue
		}
		if invoice.InvoiceDate.Before(from) || !invoice.InvoiceDate.Before(to) {
			continue
		}
		result = append(result, *invoice)
	}
	return result, nil
}

// All returns every stored invoice for assertion convenience.
func (r *InvoiceRepository) All() []billing.DailyFeeInvoice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.DailyFeeInvoice
	for _, invoice := range r.byID {
		result = append(result, *invoice)
	}
	return result
}
