package ledger

import "errors"

var (
	// ErrEmptyMerchantID indicates a missing merchant id.
	ErrEmptyMerchantID = errors.New("ledger: empty merchant id")
	// ErrNilBalance indicates an operation on a nil aggregate.
	ErrNilBalance = errors.New("ledger: nil balance")
	// ErrInvalidAmount indicates an amount that is zero or negative.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrNegativeFeeRate indicates a fee rate below zero.
	ErrNegativeFeeRate = errors.New("ledger: fee rate must not be negative")
	// ErrNotBlocked indicates an unblock on a merchant that is not blocked.
	ErrNotBlocked = errors.New("ledger: merchant is not blocked")
	// ErrBalanceNotFound indicates no balance record for the merchant.
	ErrBalanceNotFound = errors.New("ledger: balance not found")
	// ErrBalanceExists indicates the merchant is already registered.
	ErrBalanceExists = errors.New("ledger: balance already exists")
	// ErrVersionConflict indicates a concurrent update won the write race.
	ErrVersionConflict = errors.New("ledger: balance version conflict")
)
