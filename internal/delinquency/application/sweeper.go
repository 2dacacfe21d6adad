package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	ledger "telegateway/internal/ledger/domain"
	"telegateway/internal/notify"
	"telegateway/internal/observability/metrics"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// LedgerGateway is the slice of the ledger service the sweeper needs.
type LedgerGateway interface {
	Delinquents(ctx context.Context) ([]*ledger.MerchantBalance, error)
	Block(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error)
	BackfillDebtClock(ctx context.Context, merchantID string) error
	MarkWarned(ctx context.Context, merchantID string) error
}

// SweepSummary reports one sweeper run.
type SweepSummary struct {
	ProcessedAt     time.Time `json:"processed_at"`
	DurationMS      int64     `json:"duration_ms"`
	MerchantsSwept  int       `json:"merchants_swept"`
	Blocked         int       `json:"blocked"`
	Warned          int       `json:"warned"`
	Backfilled      int       `json:"backfilled"`
	MerchantsFailed int       `json:"merchants_failed"`
}

// Sweeper scans delinquent merchants, warns one day before the grace period
// runs out and blocks once it has elapsed. Blocked merchants never match the
// scan again, so re-running within the same day is safe.
type Sweeper struct {
	gateway  LedgerGateway
	notifier notify.Notifier
	cfg      Config
	clock    Clock
	logger   *log.Logger
}

// NewSweeper constructs the sweeper.
func NewSweeper(gateway LedgerGateway, notifier notify.Notifier, cfg Config, clock Clock, logger *log.Logger) (*Sweeper, error) {
	if gateway == nil {
		return nil, errors.New("sweeper: nil ledger gateway")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Sweeper{gateway: gateway, notifier: notifier, cfg: cfg, clock: clock, logger: logger}, nil
}

// Run sweeps every delinquent merchant. Each merchant is an independent
// unit of work; one failure never aborts the rest.
func (s *Sweeper) Run(ctx context.Context) (*SweepSummary, error) {
	start := s.clock.Now()
	delinquents, err := s.gateway.Delinquents(ctx)
	if err != nil {
		metrics.ObserveJobRun("check_delinquents", metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("sweeper: list delinquents: %w", err)
	}

	summary := &SweepSummary{ProcessedAt: start}
	for _, merchant := range delinquents {
		outcome, err := s.sweep(ctx, merchant, start)
		if err != nil {
			summary.MerchantsFailed++
			if s.logger != nil {
				s.logger.Printf("sweeper: merchant=%s err=%v", merchant.MerchantID, err)
			}
			continue
		}
		summary.MerchantsSwept++
		switch outcome {
		case sweepBlocked:
			summary.Blocked++
		case sweepWarned:
			summary.Warned++
		case sweepBackfilled:
			summary.Backfilled++
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	metrics.ObserveJobRun("check_delinquents", metrics.ResultSuccess, time.Since(start))
	if s.logger != nil {
		s.logger.Printf("sweeper: swept=%d blocked=%d warned=%d backfilled=%d failed=%d", summary.MerchantsSwept, summary.Blocked, summary.Warned, summary.Backfilled, summary.MerchantsFailed)
	}
	return summary, nil
}

type sweepOutcome int

const (
	sweepNone sweepOutcome = iota
	sweepBlocked
	sweepWarned
	sweepBackfilled
)

func (s *Sweeper) sweep(ctx context.Context, merchant *ledger.MerchantBalance, now time.Time) (sweepOutcome, error) {
	// A delinquent merchant without a debt clock is a data gap, not an
	// error: backfill the clock and let the next pass judge the age.
	if merchant.DebtStartedAt == nil {
		if err := s.gateway.BackfillDebtClock(ctx, merchant.MerchantID); err != nil {
			return sweepNone, err
		}
		return sweepBackfilled, nil
	}

	maxDays := merchant.GracePeriodDays()
	days := merchant.DaysSinceDebt(now)

	switch {
	case days >= maxDays:
		if _, err := s.gateway.Block(ctx, merchant.MerchantID); err != nil {
			return sweepNone, err
		}
		metrics.IncMerchantBlocked()
		s.send(ctx, notify.Message{
			MerchantID: merchant.MerchantID,
			Title:      "Bot suspenso por débito em aberto",
			Body:       fmt.Sprintf("Seu bot foi suspenso. Pague o débito de R$%s para reativar.", merchant.DebtAmount.StringFixed(2)),
			URL:        s.cfg.DashboardURL,
		})
		return sweepBlocked, nil

	case days == maxDays-1:
		if s.cfg.WarnOncePerDay && merchant.WarnedToday(now) {
			return sweepNone, nil
		}
		s.send(ctx, notify.Message{
			MerchantID: merchant.MerchantID,
			Title:      "Último aviso: débito em aberto",
			Body:       fmt.Sprintf("Débito de R$%s vence amanhã. Após o prazo seu bot será suspenso.", merchant.DebtAmount.StringFixed(2)),
			URL:        s.cfg.DashboardURL,
		})
		metrics.IncMerchantWarned()
		if s.cfg.WarnOncePerDay {
			if err := s.gateway.MarkWarned(ctx, merchant.MerchantID); err != nil {
				return sweepNone, err
			}
		}
		return sweepWarned, nil
	}
	return sweepNone, nil
}

// send delivers a notification best-effort; the sweep outcome never depends
// on delivery.
func (s *Sweeper) send(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, msg); err != nil && s.logger != nil {
		s.logger.Printf("sweeper: notification failed: merchant=%s err=%v", msg.MerchantID, err)
	}
}
