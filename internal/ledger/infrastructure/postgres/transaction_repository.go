package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ledger "telegateway/internal/ledger/domain"
)

// TransactionRepository persists append-only ledger entries.
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append writes one ledger entry. Entries are never updated or deleted.
func (r *TransactionRepository) Append(ctx context.Context, txn ledger.Transaction) error {
	if r == nil || r.db == nil {
		return errors.New("transaction repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO balance_transactions (
	id, merchant_id, type, amount, description, reference_id, payment_method, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		txn.ID, txn.MerchantID, txn.Type, txn.Amount, txn.Description,
		nullString(txn.ReferenceID), nullString(txn.PaymentMethod), txn.CreatedAt)
	return err
}

// ListByMerchant returns the merchant's history, newest first.
func (r *TransactionRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]ledger.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, type, amount, description, reference_id, payment_method, created_at
FROM balance_transactions
WHERE merchant_id = $1
ORDER BY created_at DESC
LIMIT $2`, merchantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// ListByMerchantBetween returns entries inside [from, to), oldest first.
// Used by the billing statement builder.
func (r *TransactionRepository) ListByMerchantBetween(ctx context.Context, merchantID string, from, to time.Time) ([]ledger.Transaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("transaction repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, merchant_id, type, amount, description, reference_id, payment_method, created_at
FROM balance_transactions
WHERE merchant_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`, merchantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for rows.Next() {
		var txn ledger.Transaction
		var referenceID sql.NullString
		var paymentMethod sql.NullString
		if err := rows.Scan(&txn.ID, &txn.MerchantID, &txn.Type, &txn.Amount, &txn.Description, &referenceID, &paymentMethod, &txn.CreatedAt); err != nil {
			return nil, err
		}
		if referenceID.Valid {
			txn.ReferenceID = referenceID.String
		}
		if paymentMethod.Valid {
			txn.PaymentMethod = paymentMethod.String
		}
		txn.CreatedAt = txn.CreatedAt.UTC()
		result = append(result, txn)
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
