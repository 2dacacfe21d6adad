package auth

import (
	"context"
	"errors"
)

var (
	// ErrMerchantMismatch indicates the resource belongs to a different merchant.
	ErrMerchantMismatch = errors.New("merchant mismatch")
)

// EnsureMerchantScope verifies the caller may act on the given merchant.
// Admins and operators may act on any merchant; everyone else only on
// their own.
func EnsureMerchantScope(ctx context.Context, merchantID string) error {
	if merchantID == "" {
		return nil
	}
	if RoleAtLeast(RoleFromContext(ctx), RoleOperator) {
		return nil
	}
	if MerchantIDFromContext(ctx) != merchantID {
		return ErrMerchantMismatch
	}
	return nil
}
