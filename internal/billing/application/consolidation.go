package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	billing "telegateway/internal/billing/domain"
	"telegateway/internal/notify"
	"telegateway/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Summary reports one scheduled job run.
type Summary struct {
	Job             string    `json:"job"`
	ProcessedAt     time.Time `json:"processed_at"`
	DurationMS      int64     `json:"duration_ms"`
	FeesProcessed   int       `json:"fees_processed,omitempty"`
	InvoicesCreated int       `json:"invoices_created,omitempty"`
	InvoicesSkipped int       `json:"invoices_skipped,omitempty"`
	MerchantsFailed int       `json:"merchants_failed,omitempty"`
}

// ConsolidationJob aggregates the previous day's pending fees into one
// DailyFeeInvoice per merchant. Designed for a daily cron; re-running the
// same day is safe because the invoice is unique per (merchant, date).
type ConsolidationJob struct {
	fees     billing.FeeRepository
	invoices billing.InvoiceRepository
	notifier notify.Notifier
	location *time.Location
	clock    Clock
	logger   *log.Logger
}

// NewConsolidationJob constructs the job. location is the platform's
// reference timezone used to cut the daily window.
func NewConsolidationJob(fees billing.FeeRepository, invoices billing.InvoiceRepository, notifier notify.Notifier, location *time.Location, clock Clock, logger *log.Logger) (*ConsolidationJob, error) {
	if fees == nil {
		return nil, errors.New("consolidation job: nil fee repository")
	}
	if invoices == nil {
		return nil, errors.New("consolidation job: nil invoice repository")
	}
	if location == nil {
		location = time.UTC
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ConsolidationJob{
		fees:     fees,
		invoices: invoices,
		notifier: notifier,
		location: location,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Run consolidates yesterday's pending fees. A failure on one merchant's
// group is logged and counted; the remaining groups still run.
func (j *ConsolidationJob) Run(ctx context.Context) (*Summary, error) {
	start := j.clock.Now()
	windowStart, windowEnd := j.window(start)

	pending, err := j.fees.ListPendingInWindow(ctx, windowStart, windowEnd)
	if err != nil {
		metrics.ObserveJobRun("consolidate_fees", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("consolidation job: list pending fees: %w", err)
	}

	groups := make(map[string][]billing.PlatformFee)
	for _, fee := range pending {
		groups[fee.MerchantID] = append(groups[fee.MerchantID], fee)
	}
	merchants := make([]string, 0, len(groups))
	for merchantID := range groups {
		merchants = append(merchants, merchantID)
	}
	sort.Strings(merchants)

	summary := &Summary{Job: "consolidate_fees", ProcessedAt: start}
	for _, merchantID := range merchants {
		created, processed, err := j.consolidateMerchant(ctx, merchantID, windowStart, groups[merchantID])
		if err != nil {
			summary.MerchantsFailed++
			if j.logger != nil {
				j.logger.Printf("consolidation: merchant=%s err=%v", merchantID, err)
			}
			continue
		}
		summary.FeesProcessed += processed
		if created {
			summary.InvoicesCreated++
		} else {
			summary.InvoicesSkipped++
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	metrics.AddInvoicesCreated(summary.InvoicesCreated)
	metrics.AddInvoicesSkipped(summary.InvoicesSkipped)
	metrics.ObserveJobRun("consolidate_fees", metrics.ResultSuccess, time.Since(start))
	if j.logger != nil {
		j.logger.Printf("consolidation: fees=%d invoices=%d skipped=%d failed=%d", summary.FeesProcessed, summary.InvoicesCreated, summary.InvoicesSkipped, summary.MerchantsFailed)
	}
	return summary, nil
}

// consolidateMerchant creates the merchant's invoice and marks its fees
// consolidated. Returns whether a new invoice was created.
func (j *ConsolidationJob) consolidateMerchant(ctx context.Context, merchantID string, invoiceDate time.Time, fees []billing.PlatformFee) (bool, int, error) {
	total := decimal.Zero
	ids := make([]string, 0, len(fees))
	for _, fee := range fees {
		total = total.Add(fee.Amount)
		ids = append(ids, fee.ID)
	}

	invoice, err := billing.NewDailyFeeInvoice(uuid.NewString(), merchantID, invoiceDate, total, len(fees), j.clock.Now())
	if err != nil {
		return false, 0, err
	}

	if err := j.invoices.Create(ctx, invoice); err != nil {
		if errors.Is(err, billing.ErrDuplicateInvoice) {
			// The day was already consolidated; still advance any fees
			// a previous partial run left pending.
			if err := j.fees.MarkConsolidated(ctx, ids); err != nil {
				return false, 0, err
			}
			return false, len(fees), nil
		}
		return false, 0, err
	}

	if err := j.fees.MarkConsolidated(ctx, ids); err != nil {
		return true, 0, err
	}

	if j.notifier != nil {
		msg := notify.Message{
			MerchantID: merchantID,
			Title:      "Fatura diária gerada",
			Body:       fmt.Sprintf("Taxas de %s: R$%s (%d vendas). Vencimento em 1 dia.", invoiceDate.Format("02/01/2006"), total.StringFixed(2), len(fees)),
		}
		if err := j.notifier.Notify(ctx, msg); err != nil && j.logger != nil {
			j.logger.Printf("consolidation: invoice notification failed: merchant=%s err=%v", merchantID, err)
		}
	}
	return true, len(fees), nil
}

// window returns [start of yesterday, start of today) in the platform
// timezone.
func (j *ConsolidationJob) window(now time.Time) (time.Time, time.Time) {
	local := now.In(j.location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, j.location)
	return today.AddDate(0, 0, -1), today
}
