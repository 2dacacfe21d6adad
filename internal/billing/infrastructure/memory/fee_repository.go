package memory

import (
	"context"
	"sync"
	"time"

	billing "telegateway/internal/billing/domain"
)

// FeeRepository is an in-memory fee store for tests.
type FeeRepository struct {
	mu      sync.RWMutex
	byID    map[string]*billing.PlatformFee
	byOrder map[string]string
}

// NewFeeRepository constructs a repository.
func NewFeeRepository() *FeeRepository {
	return &FeeRepository{
		byID:    make(map[string]*billing.PlatformFee),
		byOrder: make(map[string]string),
	}
}

// Create inserts a fee, enforcing order uniqueness.
func (r *FeeRepository) Create(ctx context.Context, fee *billing.PlatformFee) error {
	_ = ctx
	if fee == nil {
		return billing.ErrInvalidFeeAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byOrder[fee.OrderID]; exists {
		return billing.ErrDuplicateOrder
	}
	copied := *fee
	r.byID[fee.ID] = &copied
	r.byOrder[fee.OrderID] = fee.ID
	return nil
}

// GetByOrder loads the fee for an order, or nil when absent.
func (r *FeeRepository) GetByOrder(ctx context.Context, orderID string) (*billing.PlatformFee, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	copied := *r.byID[id]
	return &copied, nil
}

// ListPendingInWindow returns pending fees created inside [from, to).
func (r *FeeRepository) ListPendingInWindow(ctx context.Context, from, to time.Time) ([]billing.PlatformFee, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []billing.PlatformFee
	for _, fee := range r.byID {
		if fee.Status != billing.FeePending {
			continue
		}
		if fee.CreatedAt.Before(from) || !fee.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *fee)
	}
	return result, nil
}

// MarkConsolidated advances pending fees to consolidated.
func (r *FeeRepository) MarkConsolidated(ctx context.Context, ids []string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		fee := r.byID[id]
		if fee != nil && fee.Status == billing.FeePending {
			fee.Status = billing.FeeConsolidated
		}
	}
	return nil
}

// Get returns a fee by id for assertion convenience.
func (r *FeeRepository) Get(id string) *billing.PlatformFee {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fee := r.byID[id]
	if fee == nil {
		return nil
	}
	copied := *fee
	return &copied
}
