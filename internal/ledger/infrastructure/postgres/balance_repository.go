package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	ledger "telegateway/internal/ledger/domain"
)

// BalanceRepository persists merchant balances in postgres.
type BalanceRepository struct {
	db *sql.DB
}

// NewBalanceRepository constructs a repository.
func NewBalanceRepository(db *sql.DB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// Get loads a merchant balance, or nil when absent.
func (r *BalanceRepository) Get(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("balance repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT merchant_id, balance, debt_amount, debt_started_at, is_blocked, blocked_at,
	fee_rate, max_debt_days, last_warned_at, version, created_at, updated_at
FROM merchant_balances
WHERE merchant_id = $1
LIMIT 1`, merchantID)
	return scanBalance(row)
}

// Create inserts a new balance record.
func (r *BalanceRepository) Create(ctx context.Context, balance *ledger.MerchantBalance) error {
	if r == nil || r.db == nil {
		return errors.New("balance repo: nil db")
	}
	if balance == nil {
		return ledger.ErrNilBalance
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO merchant_balances (
	merchant_id, balance, debt_amount, debt_started_at, is_blocked, blocked_at,
	fee_rate, max_debt_days, last_warned_at, version, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		balance.MerchantID, balance.Balance, balance.DebtAmount, nullTime(balance.DebtStartedAt),
		balance.IsBlocked, nullTime(balance.BlockedAt), balance.FeeRate, balance.MaxDebtDays,
		nullTime(balance.LastWarnedAt), balance.Version, balance.CreatedAt, balance.UpdatedAt)
	return err
}

// Update writes the aggregate back guarded by the version it was loaded
// with. Zero rows affected means a concurrent writer won the race.
func (r *BalanceRepository) Update(ctx context.Context, balance *ledger.MerchantBalance) error {
	if r == nil || r.db == nil {
		return errors.New("balance repo: nil db")
	}
	if balance == nil {
		return ledger.ErrNilBalance
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE merchant_balances
SET balance = $1, debt_amount = $2, debt_started_at = $3, is_blocked = $4, blocked_at = $5,
	fee_rate = $6, max_debt_days = $7, last_warned_at = $8, version = version + 1, updated_at = $9
WHERE merchant_id = $10 AND version = $11`,
		balance.Balance, balance.DebtAmount, nullTime(balance.DebtStartedAt),
		balance.IsBlocked, nullTime(balance.BlockedAt), balance.FeeRate, balance.MaxDebtDays,
		nullTime(balance.LastWarnedAt), balance.UpdatedAt, balance.MerchantID, balance.Version)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrVersionConflict
	}
	balance.Version++
	return nil
}

// ListDelinquent returns merchants with positive debt that are not blocked.
func (r *BalanceRepository) ListDelinquent(ctx context.Context) ([]*ledger.MerchantBalance, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("balance repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT merchant_id, balance, debt_amount, debt_started_at, is_blocked, blocked_at,
	fee_rate, max_debt_days, last_warned_at, version, created_at, updated_at
FROM merchant_balances
WHERE debt_amount > 0 AND is_blocked = FALSE
ORDER BY merchant_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ledger.MerchantBalance
	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		if balance != nil {
			result = append(result, balance)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*ledger.MerchantBalance, error) {
	var balance ledger.MerchantBalance
	var debtStartedAt sql.NullTime
	var blockedAt sql.NullTime
	var lastWarnedAt sql.NullTime
	err := row.Scan(
		&balance.MerchantID,
		&balance.Balance,
		&balance.DebtAmount,
		&debtStartedAt,
		&balance.IsBlocked,
		&blockedAt,
		&balance.FeeRate,
		&balance.MaxDebtDays,
		&lastWarnedAt,
		&balance.Version,
		&balance.CreatedAt,
		&balance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if debtStartedAt.Valid {
		t := debtStartedAt.Time.UTC()
		balance.DebtStartedAt = &t
	}
	if blockedAt.Valid {
		t := blockedAt.Time.UTC()
		balance.BlockedAt = &t
	}
	if lastWarnedAt.Valid {
		t := lastWarnedAt.Time.UTC()
		balance.LastWarnedAt = &t
	}
	balance.CreatedAt = balance.CreatedAt.UTC()
	balance.UpdatedAt = balance.UpdatedAt.UTC()
	return &balance, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
