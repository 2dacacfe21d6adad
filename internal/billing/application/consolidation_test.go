package application

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	billing "telegateway/internal/billing/domain"
	"telegateway/internal/billing/infrastructure/memory"
	"telegateway/internal/notify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type notifierStub struct {
	messages []notify.Message
	err      error
}

func (n *notifierStub) Notify(_ context.Context, msg notify.Message) error {
	n.messages = append(n.messages, msg)
	return n.err
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func seedFee(t *testing.T, fees *memory.FeeRepository, merchantID, orderID, amount string, createdAt time.Time) *billing.PlatformFee {
	t.Helper()
	fee, err := billing.NewPlatformFee(uuid.NewString(), merchantID, orderID, dec(amount), createdAt)
	if err != nil {
		t.Fatalf("new fee: %v", err)
	}
	if err := fees.Create(context.Background(), fee); err != nil {
		t.Fatalf("create fee: %v", err)
	}
	return fee
}

func TestConsolidation_OneInvoicePerMerchant(t *testing.T) {
	fees := memory.NewFeeRepository()
	invoices := memory.NewInvoiceRepository()
	notifier := &notifierStub{}
	logger := log.New(os.Stdout, "", 0)

	yesterday := testNow.Add(-26 * time.Hour)
	feeA1 := seedFee(t, fees, "merchant-a", "order-1", "10.00", yesterday)
	feeA2 := seedFee(t, fees, "merchant-a", "order-2", "5.50", yesterday)
	seedFee(t, fees, "merchant-b", "order-3", "2.25", yesterday)
	// Today's fee stays out of the window.
	seedFee(t, fees, "merchant-a", "order-4", "99.00", testNow.Add(-time.Hour))

	job, err := NewConsolidationJob(fees, invoices, notifier, time.UTC, fixedClock{now: testNow}, logger)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.InvoicesCreated != 2 || summary.FeesProcessed != 3 {
		t.Fatalf("expected 2 invoices / 3 fees, got %+v", summary)
	}

	all := invoices.All()
	totals := map[string]string{}
	for _, invoice := range all {
		totals[invoice.MerchantID] = invoice.TotalFees.StringFixed(2)
		if invoice.Status != billing.InvoicePending {
			t.Fatalf("new invoice should be pending, got %s", invoice.Status)
		}
		if !invoice.DueDate.Equal(invoice.InvoiceDate.AddDate(0, 0, 1)) {
			t.Fatalf("due date should be invoice date + 1, got %s", invoice.DueDate)
		}
	}
	if totals["merchant-a"] != "15.50" || totals["merchant-b"] != "2.25" {
		t.Fatalf("unexpected invoice totals: %v", totals)
	}

	for _, fee := range []*billing.PlatformFee{feeA1, feeA2} {
		if got := fees.Get(fee.ID); got.Status != billing.FeeConsolidated {
			t.Fatalf("fee %s should be consolidated, got %s", fee.OrderID, got.Status)
		}
	}
	if len(notifier.messages) != 2 {
		t.Fatalf("expected 2 invoice notifications, got %d", len(notifier.messages))
	}
}

func TestConsolidation_RerunIsIdempotent(t *testing.T) {
	fees := memory.NewFeeRepository()
	invoices := memory.NewInvoiceRepository()
	logger := log.New(os.Stdout, "", 0)

	yesterday := testNow.Add(-26 * time.Hour)
	seedFee(t, fees, "merchant-a", "order-1", "10.00", yesterday)

	job, err := NewConsolidationJob(fees, invoices, nil, time.UTC, fixedClock{now: testNow}, logger)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	// A straggler fee from the same day shows up before the rerun.
	seedFee(t, fees, "merchant-a", "order-2", "3.00", yesterday)

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.InvoicesCreated != 0 || summary.InvoicesSkipped != 1 {
		t.Fatalf("rerun should skip, got %+v", summary)
	}
	if len(invoices.All()) != 1 {
		t.Fatalf("expected exactly one invoice, got %d", len(invoices.All()))
	}

	// The straggler still advanced so it cannot double-bill tomorrow.
	window := testNow.Add(-26 * time.Hour)
	pending, err := fees.ListPendingInWindow(context.Background(), window.Add(-time.Hour), testNow)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("straggler fee should be consolidated, still pending: %+v", pending)
	}
}

func TestConsolidation_MerchantFailureIsIsolated(t *testing.T) {
	fees := memory.NewFeeRepository()
	invoices := memory.NewInvoiceRepository()
	logger := log.New(os.Stdout, "", 0)

	yesterday := testNow.Add(-26 * time.Hour)
	seedFee(t, fees, "merchant-a", "order-1", "10.00", yesterday)
	seedFee(t, fees, "merchant-b", "order-2", "4.00", yesterday)

	failing := &failingInvoiceRepo{InvoiceRepository: invoices, failMerchant: "merchant-a"}
	job, err := NewConsolidationJob(fees, failing, nil, time.UTC, fixedClock{now: testNow}, logger)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.MerchantsFailed != 1 || summary.InvoicesCreated != 1 {
		t.Fatalf("expected one failure and one invoice, got %+v", summary)
	}
	all := invoices.All()
	if len(all) != 1 || all[0].MerchantID != "merchant-b" {
		t.Fatalf("merchant-b should still be invoiced, got %+v", all)
	}
}

type failingInvoiceRepo struct {
	*memory.InvoiceRepository
	failMerchant string
}

func (r *failingInvoiceRepo) Create(ctx context.Context, invoice *billing.DailyFeeInvoice) error {
	if invoice.MerchantID == r.failMerchant {
		return errors.New("simulated write failure")
	}
	return r.InvoiceRepository.Create(ctx, invoice)
}
