package application

import (
	"context"
	"errors"
	"time"

	billing "telegateway/internal/billing/domain"
	ledger "telegateway/internal/ledger/domain"

	"github.com/shopspring/decimal"
)

// MonthlyStatement gathers one merchant's ledger activity for a month.
type MonthlyStatement struct {
	MerchantID     string
	Month          time.Time
	Transactions   []ledger.Transaction
	Invoices       []billing.DailyFeeInvoice
	TotalCredits   decimal.Decimal
	TotalDebits    decimal.Decimal
	TotalFees      decimal.Decimal
	ClosingBalance decimal.Decimal
	ClosingDebt    decimal.Decimal
	GeneratedAt    time.Time
}

// StatementService assembles monthly statements for export.
type StatementService struct {
	balances ledger.BalanceRepository
	txns     ledger.TransactionRepository
	invoices billing.InvoiceRepository
}

// NewStatementService constructs the service.
func NewStatementService(balances ledger.BalanceRepository, txns ledger.TransactionRepository, invoices billing.InvoiceRepository) (*StatementService, error) {
	if balances == nil || txns == nil || invoices == nil {
		return nil, errors.New("statement service: nil repository")
	}
	return &StatementService{balances: balances, txns: txns, invoices: invoices}, nil
}

// Monthly builds the statement for the month containing the given date.
func (s *StatementService) Monthly(ctx context.Context, merchantID string, month time.Time) (*MonthlyStatement, error) {
	if merchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}
	balance, err := s.balances.Get(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return nil, ledger.ErrBalanceNotFound
	}

	from := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	txns, err := s.txns.ListByMerchantBetween(ctx, merchantID, from, to)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByMerchant(ctx, merchantID, from, to)
	if err != nil {
		return nil, err
	}

	stmt := &MonthlyStatement{
		MerchantID:     merchantID,
		Month:          from,
		Transactions:   txns,
		Invoices:       invoices,
		ClosingBalance: balance.Balance,
		ClosingDebt:    balance.DebtAmount,
		GeneratedAt:    time.Now().UTC(),
	}
	for _, txn := range txns {
		switch txn.Type {
		case ledger.TransactionCredit, ledger.TransactionDebtPayment:
			stmt.TotalCredits = stmt.TotalCredits.Add(txn.Amount)
		case ledger.TransactionDebit:
			stmt.TotalDebits = stmt.TotalDebits.Add(txn.Amount.Abs())
		case ledger.TransactionFeeDeduction:
			stmt.TotalFees = stmt.TotalFees.Add(txn.Amount.Abs())
		}
	}
	return stmt, nil
}
