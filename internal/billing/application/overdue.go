package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	billing "telegateway/internal/billing/domain"
	ledger "telegateway/internal/ledger/domain"
	"telegateway/internal/observability/metrics"

	"github.com/shopspring/decimal"
)

// DebtAccruer moves an unpaid invoice total onto the merchant's debt.
// Implemented by the ledger service so the debt clock rules stay in one
// place.
type DebtAccruer interface {
	AccrueDebt(ctx context.Context, merchantID string, amount decimal.Decimal, referenceID, description string) (*ledger.MerchantBalance, error)
}

// OverdueJob turns unpaid daily invoices into merchant debt. Invoices whose
// due date has passed are marked overdue and their total accrues on the
// ledger, starting the delinquency clock. Each invoice is an independent
// unit of work.
type OverdueJob struct {
	invoices billing.InvoiceRepository
	accruer  DebtAccruer
	clock    Clock
	logger   *log.Logger
}

// OverdueSummary reports one overdue collection run.
type OverdueSummary struct {
	ProcessedAt     time.Time `json:"processed_at"`
	DurationMS      int64     `json:"duration_ms"`
	InvoicesOverdue int       `json:"invoices_overdue"`
	InvoicesFailed  int       `json:"invoices_failed"`
}

// NewOverdueJob constructs the job.
func NewOverdueJob(invoices billing.InvoiceRepository, accruer DebtAccruer, clock Clock, logger *log.Logger) (*OverdueJob, error) {
	if invoices == nil {
		return nil, errors.New("overdue job: nil invoice repository")
	}
	if accruer == nil {
		return nil, errors.New("overdue job: nil debt accruer")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &OverdueJob{invoices: invoices, accruer: accruer, clock: clock, logger: logger}, nil
}

// Run collects every invoice past due. The status flip happens first and is
// a guarded transition, so the debt accrual behind it runs at most once per
// invoice even across overlapping runs.
func (j *OverdueJob) Run(ctx context.Context) (*OverdueSummary, error) {
	start := j.clock.Now()
	due, err := j.invoices.ListDuePending(ctx, start)
	if err != nil {
		metrics.ObserveJobRun("collect_overdue", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("overdue job: list due invoices: %w", err)
	}

	summary := &OverdueSummary{ProcessedAt: start}
	for _, invoice := range due {
		if err := j.collect(ctx, invoice); err != nil {
			summary.InvoicesFailed++
			if j.logger != nil {
				j.logger.Printf("overdue: invoice=%s merchant=%s err=%v", invoice.ID, invoice.MerchantID, err)
			}
			continue
		}
		summary.InvoicesOverdue++
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	metrics.ObserveJobRun("collect_overdue", metrics.ResultSuccess, time.Since(start))
	return summary, nil
}

func (j *OverdueJob) collect(ctx context.Context, invoice billing.DailyFeeInvoice) error {
	transitioned, err := j.invoices.MarkOverdue(ctx, invoice.ID, j.clock.Now())
	if err != nil {
		return err
	}
	if !transitioned {
		return nil
	}
	description := fmt.Sprintf("Fatura diária de %s não paga", invoice.InvoiceDate.Format("02/01/2006"))
	if _, err := j.accruer.AccrueDebt(ctx, invoice.MerchantID, invoice.TotalFees, invoice.ID, description); err != nil {
		// The invoice is already overdue; the accrual needs manual
		// reconciliation, so this must not pass quietly.
		return fmt.Errorf("debt accrual failed after overdue transition, invoice %s requires reconciliation: %w", invoice.ID, err)
	}
	return nil
}
