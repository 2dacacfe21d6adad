package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "telegateway/internal/billing/domain"
)

// InvoiceRepository persists daily fee invoices.
type InvoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts an invoice. The (merchant_id, invoice_date) pair carries a
// unique constraint; a violation maps to ErrDuplicateInvoice so re-running
// the consolidation job for the same day is a no-op.
func (r *InvoiceRepository) Create(ctx context.Context, invoice *billing.DailyFeeInvoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if invoice == nil {
		return errors.New("invoice repo: nil invoice")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO daily_fee_invoices (
	id, merchant_id, invoice_date, total_fees, fees_count, status, due_date,
	payment_reference, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		invoice.ID, invoice.MerchantID, invoice.InvoiceDate, invoice.TotalFees, invoice.FeesCount,
		invoice.Status, invoice.DueDate, nullString(invoice.PaymentReference), invoice.CreatedAt, invoice.UpdatedAt)
	if isUniqueViolation(err) {
		return billing.ErrDuplicateInvoice
	}
	return err
}

// ListDuePending returns pending invoices whose due date has passed.
func (r *InvoiceRepository) ListDuePending(ctx context.Context, before time.Time) ([]billing.DailyFeeInvoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, invoice_date, total_fees, fees_count, status, due_date,
	payment_reference, created_at, updated_at
FROM daily_fee_invoices
WHERE status = $1 AND due_date < $2
ORDER BY merchant_id ASC, invoice_date ASC`, billing.InvoicePending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

// MarkOverdue flips a pending invoice to overdue. Returns false when the
// invoice had already left pending.
func (r *InvoiceRepository) MarkOverdue(ctx context.Context, id string, at time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("invoice repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE daily_fee_invoices
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`, billing.InvoiceOverdue, at, id, billing.InvoicePending)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// SettleOverdue marks every overdue invoice of the merchant paid.
func (r *InvoiceRepository) SettleOverdue(ctx context.Context, merchantID, paymentReference string) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE daily_fee_invoices
SET status = $1, payment_reference = $2, updated_at = NOW()
WHERE merchant_id = $3 AND status = $4`, billing.InvoicePaid, nullString(paymentReference), merchantID, billing.InvoiceOverdue)
	return err
}

// ListByMerchant returns the merchant's invoices inside [from, to), oldest
// first.
func (r *InvoiceRepository) ListByMerchant(ctx context.Context, merchantID string, from, to time.Time) ([]billing.DailyFeeInvoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, invoice_date, total_fees, fees_count, status, due_date,
	payment_reference, created_at, updated_at
FROM daily_fee_invoices
WHERE merchant_id = $1 AND invoice_date >= $2 AND invoice_date < $3
ORDER BY invoice_date ASC`, merchantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInvoices(rows)
}

func scanInvoices(rows *sql.Rows) ([]billing.DailyFeeInvoice, error) {
	var result []billing.DailyFeeInvoice
	for rows.Next() {
		var invoice billing.DailyFeeInvoice
		var paymentReference sql.NullString
		if err := rows.Scan(
			&invoice.ID, &invoice.MerchantID, &invoice.InvoiceDate, &invoice.TotalFees, &invoice.FeesCount,
			&invoice.Status, &invoice.DueDate, &paymentReference, &invoice.CreatedAt, &invoice.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if paymentReference.Valid {
			invoice.PaymentReference = paymentReference.String
		}
		invoice.InvoiceDate = invoice.InvoiceDate.UTC()
		invoice.DueDate = invoice.DueDate.UTC()
		invoice.CreatedAt = invoice.CreatedAt.UTC()
		invoice.UpdatedAt = invoice.UpdatedAt.UTC()
		result = append(result, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
