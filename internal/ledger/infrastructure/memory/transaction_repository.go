package memory

import (
	"context"
	"sync"
	"time"

	ledger "telegateway/internal/ledger/domain"
)

// TransactionRepository is an in-memory transaction log for tests.
type TransactionRepository struct {
	mu      sync.RWMutex
	entries []ledger.Transaction
}

// NewTransactionRepository constructs a repository.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{}
}

// Append stores one ledger entry.
func (r *TransactionRepository) Append(ctx context.Context, txn ledger.Transaction) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, txn)
	return nil
}

// ListByMerchant returns the merchant's history, newest first.
func (r *TransactionRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]ledger.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []ledger.Transaction
	for i := len(r.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if r.entries[i].MerchantID == merchantID {
			result = append(result, r.entries[i])
		}
	}
	return result, nil
}

// ListByMerchantBetween returns entries inside [from, to), oldest first.
func (r *TransactionRepository) ListByMerchantBetween(ctx context.Context, merchantID string, from, to time.Time) ([]ledger.Transaction, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []ledger.Transaction
	for _, txn := range r.entries {
		if txn.MerchantID != merchantID {
			continue
		}
		if txn.CreatedAt.Before(from) || !txn.CreatedAt.Before(to) {
			continue
		}
		result = append(result, txn)
	}
	return result, nil
}

// All returns every stored entry for assertion convenience.
func (r *TransactionRepository) All() []ledger.Transaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ledger.Transaction, len(r.entries))
	copy(out, r.entries)
	return out
}
