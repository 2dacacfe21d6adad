package application

import (
	"context"
	"errors"
	"time"

	billing "telegateway/internal/billing/domain"
	"telegateway/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FeeRecorder creates one pending platform fee per qualifying sale. The fee
// amount is computed by the order-settlement caller; no rate lookup happens
// here.
type FeeRecorder struct {
	fees  billing.FeeRepository
	clock Clock
}

// NewFeeRecorder constructs a recorder.
func NewFeeRecorder(fees billing.FeeRepository, clock Clock) (*FeeRecorder, error) {
	if fees == nil {
		return nil, errors.New("fee recorder: nil fee repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &FeeRecorder{fees: fees, clock: clock}, nil
}

// Record creates the fee for an order. Recording the same order twice is a
// no-op returning the existing record, so order-settlement retries are safe.
func (r *FeeRecorder) Record(ctx context.Context, merchantID, orderID string, amount decimal.Decimal) (*billing.PlatformFee, error) {
	fee, err := billing.NewPlatformFee(uuid.NewString(), merchantID, orderID, amount, r.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := r.fees.Create(ctx, fee); err != nil {
		if errors.Is(err, billing.ErrDuplicateOrder) {
			return r.fees.GetByOrder(ctx, orderID)
		}
		return nil, err
	}
	metrics.IncFeeRecorded()
	return fee, nil
}
