package memory

import (
	"context"
	"sync"

	ledger "telegateway/internal/ledger/domain"
)

// BalanceRepository is an in-memory balance store for tests.
type BalanceRepository struct {
	mu   sync.RWMutex
	data map[string]*ledger.MerchantBalance
}

// NewBalanceRepository constructs a repository.
func NewBalanceRepository() *BalanceRepository {
	return &BalanceRepository{data: make(map[string]*ledger.MerchantBalance)}
}

// Get loads a merchant balance, or nil when absent.
func (r *BalanceRepository) Get(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	balance := r.data[merchantID]
	if balance == nil {
		return nil, nil
	}
	return balance.Clone(), nil
}

// Create inserts a new balance record.
func (r *BalanceRepository) Create(ctx context.Context, balance *ledger.MerchantBalance) error {
	_ = ctx
	if balance == nil {
		return ledger.ErrNilBalance
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[balance.MerchantID] = balance.Clone()
	return nil
}

// Update writes the aggregate back with the same version guard the postgres
// repository enforces.
func (r *BalanceRepository) Update(ctx context.Context, balance *ledger.MerchantBalance) error {
	_ = ctx
	if balance == nil {
		return ledger.ErrNilBalance
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.data[balance.MerchantID]
	if current == nil {
		return ledger.ErrBalanceNotFound
	}
	if current.Version != balance.Version {
		return ledger.ErrVersionConflict
	}
	balance.Version++
	r.data[balance.MerchantID] = balance.Clone()
	return nil
}

// ListDelinquent returns merchants with positive debt that are not blocked.
func (r *BalanceRepository) ListDelinquent(ctx context.Context) ([]*ledger.MerchantBalance, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*ledger.MerchantBalance
	for _, balance := range r.data {
		if balance.DebtAmount.IsPositive() && !balance.IsBlocked {
			result = append(result, balance.Clone())
		}
	}
	return result, nil
}
