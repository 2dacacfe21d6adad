package billing

import "errors"

var (
	// ErrEmptyMerchantID indicates a missing merchant id.
	ErrEmptyMerchantID = errors.New("billing: empty merchant id")
	// ErrEmptyOrderID indicates a missing order id.
	ErrEmptyOrderID = errors.New("billing: empty order id")
	// ErrInvalidFeeAmount indicates a fee amount that is zero or negative.
	ErrInvalidFeeAmount = errors.New("billing: fee amount must be positive")
	// ErrDuplicateOrder indicates a fee already exists for the order.
	ErrDuplicateOrder = errors.New("billing: fee already recorded for order")
	// ErrInvalidInvoiceDate indicates a zero invoice date.
	ErrInvalidInvoiceDate = errors.New("billing: invalid invoice date")
	// ErrEmptyInvoice indicates an invoice with no fees behind it.
	ErrEmptyInvoice = errors.New("billing: invoice requires at least one fee")
	// ErrDuplicateInvoice indicates an invoice already exists for the
	// merchant and date.
	ErrDuplicateInvoice = errors.New("billing: invoice already exists for merchant and date")
)
