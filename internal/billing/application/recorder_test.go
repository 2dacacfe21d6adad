package application

import (
	"context"
	"errors"
	"testing"

	billing "telegateway/internal/billing/domain"
	"telegateway/internal/billing/infrastructure/memory"
)

func TestFeeRecorder_DuplicateOrderIsNoOp(t *testing.T) {
	fees := memory.NewFeeRepository()
	recorder, err := NewFeeRecorder(fees, fixedClock{now: testNow})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	first, err := recorder.Record(context.Background(), "merchant-a", "order-1", dec("7.77"))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	second, err := recorder.Record(context.Background(), "merchant-a", "order-1", dec("9.99"))
	if err != nil {
		t.Fatalf("duplicate record: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate should return the existing fee, got %s vs %s", second.ID, first.ID)
	}
	if !second.Amount.Equal(dec("7.77")) {
		t.Fatalf("existing fee amount is immutable, got %s", second.Amount)
	}
}

func TestFeeRecorder_RejectsInvalidInput(t *testing.T) {
	fees := memory.NewFeeRepository()
	recorder, err := NewFeeRecorder(fees, fixedClock{now: testNow})
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	if _, err := recorder.Record(context.Background(), "", "order-1", dec("1")); !errors.Is(err, billing.ErrEmptyMerchantID) {
		t.Fatalf("expected ErrEmptyMerchantID, got %v", err)
	}
	if _, err := recorder.Record(context.Background(), "merchant-a", "", dec("1")); !errors.Is(err, billing.ErrEmptyOrderID) {
		t.Fatalf("expected ErrEmptyOrderID, got %v", err)
	}
	if _, err := recorder.Record(context.Background(), "merchant-a", "order-1", dec("0")); !errors.Is(err, billing.ErrInvalidFeeAmount) {
		t.Fatalf("expected ErrInvalidFeeAmount, got %v", err)
	}
}
