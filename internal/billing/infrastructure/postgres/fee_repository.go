package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	billing "telegateway/internal/billing/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// FeeRepository persists platform fees.
type FeeRepository struct {
	db *sql.DB
}

// NewFeeRepository constructs a repository.
func NewFeeRepository(db *sql.DB) *FeeRepository {
	return &FeeRepository{db: db}
}

// Create inserts a fee. The order id carries a unique constraint; a
// violation maps to ErrDuplicateOrder.
func (r *FeeRepository) Create(ctx context.Context, fee *billing.PlatformFee) error {
	if r == nil || r.db == nil {
		return errors.New("fee repo: nil db")
	}
	if fee == nil {
		return errors.New("fee repo: nil fee")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO platform_fees (id, merchant_id, order_id, amount, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		fee.ID, fee.MerchantID, fee.OrderID, fee.Amount, fee.Status, fee.CreatedAt)
	if isUniqueViolation(err) {
		return billing.ErrDuplicateOrder
	}
	return err
}

// GetByOrder loads the fee recorded for an order, or nil when absent.
func (r *FeeRepository) GetByOrder(ctx context.Context, orderID string) (*billing.PlatformFee, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, merchant_id, order_id, amount, status, created_at
FROM platform_fees
WHERE order_id = $1
LIMIT 1`, orderID)
	var fee billing.PlatformFee
	err := row.Scan(&fee.ID, &fee.MerchantID, &fee.OrderID, &fee.Amount, &fee.Status, &fee.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	fee.CreatedAt = fee.CreatedAt.UTC()
	return &fee, nil
}

// ListPendingInWindow returns pending fees created inside [from, to).
func (r *FeeRepository) ListPendingInWindow(ctx context.Context, from, to time.Time) ([]billing.PlatformFee, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("fee repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, order_id, amount, status, created_at
FROM platform_fees
WHERE status = $1 AND created_at >= $2 AND created_at < $3
ORDER BY merchant_id ASC, created_at ASC`, billing.FeePending, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []billing.PlatformFee
	for rows.Next() {
		var fee billing.PlatformFee
		if err := rows.Scan(&fee.ID, &fee.MerchantID, &fee.OrderID, &fee.Amount, &fee.Status, &fee.CreatedAt); err != nil {
			return nil, err
		}
		fee.CreatedAt = fee.CreatedAt.UTC()
		result = append(result, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkConsolidated advances pending fees to consolidated. The status filter
// keeps the advance monotonic.
func (r *FeeRepository) MarkConsolidated(ctx context.Context, ids []string) error {
	if r == nil || r.db == nil {
		return errors.New("fee repo: nil db")
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE platform_fees
SET status = $1
WHERE id = ANY($2) AND status = $3`, billing.FeeConsolidated, ids, billing.FeePending)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
