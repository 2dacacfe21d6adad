package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"telegateway/internal/intake/gateway"
	ledgerapp "telegateway/internal/ledger/application"
	ledger "telegateway/internal/ledger/domain"
	"telegateway/internal/observability/metrics"

	"github.com/shopspring/decimal"
)

var (
	// ErrMerchantNotFound indicates the webhook reference resolved to no
	// known merchant.
	ErrMerchantNotFound = errors.New("intake: merchant not found")
	// ErrInvalidTopUp indicates bad top-up input.
	ErrInvalidTopUp = errors.New("intake: invalid top-up request")
)

// ChargeCreator creates charges at the payment gateway.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Charge, error)
}

// Ledger is the slice of the ledger service the intake needs.
type Ledger interface {
	Credit(ctx context.Context, merchantID string, amount decimal.Decimal, method, description, referenceID string) (*ledgerapp.CreditOutcome, error)
	Balance(ctx context.Context, merchantID string) (*ledger.MerchantBalance, error)
}

// TopUpService creates pending gateway charges for merchant-initiated
// top-ups. The ledger is only touched later, when the gateway confirms the
// payment through the webhook.
type TopUpService struct {
	charges ChargeCreator
	ledger  Ledger
}

// NewTopUpService constructs the service.
func NewTopUpService(charges ChargeCreator, ledger Ledger) (*TopUpService, error) {
	if charges == nil {
		return nil, errors.New("topup service: nil charge creator")
	}
	if ledger == nil {
		return nil, errors.New("topup service: nil ledger")
	}
	return &TopUpService{charges: charges, ledger: ledger}, nil
}

// RequestTopUp creates a charge for the merchant. The merchant id travels
// as externalReference so the confirmation webhook can resolve it back.
func (s *TopUpService) RequestTopUp(ctx context.Context, merchantID string, amount decimal.Decimal, billingType gateway.BillingType) (*gateway.Charge, error) {
	if merchantID == "" || !amount.IsPositive() {
		return nil, ErrInvalidTopUp
	}
	if billingType != gateway.BillingPIX && billingType != gateway.BillingCard {
		return nil, fmt.Errorf("%w: unsupported billing type %q", ErrInvalidTopUp, billingType)
	}
	if _, err := s.ledger.Balance(ctx, merchantID); err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, err
	}

	return s.charges.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:        merchantID,
		BillingType:       billingType,
		Value:             amount,
		Description:       "Recarga de saldo TeleGateway",
		ExternalReference: merchantID,
	})
}

// WebhookEvent is the payload the payment gateway delivers.
type WebhookEvent struct {
	Event   string         `json:"event"`
	Payment WebhookPayment `json:"payment"`
}

// WebhookPayment is the payment object inside a webhook event.
type WebhookPayment struct {
	ID                string          `json:"id"`
	Value             decimal.Decimal `json:"value"`
	BillingType       string          `json:"billingType"`
	Status            string          `json:"status"`
	ExternalReference string          `json:"externalReference"`
}

// WebhookResult is the acknowledgement returned to the gateway.
type WebhookResult struct {
	Received   bool            `json:"received"`
	Ignored    bool            `json:"ignored,omitempty"`
	MerchantID string          `json:"merchant_id,omitempty"`
	NewBalance decimal.Decimal `json:"new_balance,omitempty"`
	NewDebt    decimal.Decimal `json:"new_debt,omitempty"`
}

const (
	eventPaymentReceived  = "PAYMENT_RECEIVED"
	eventPaymentConfirmed = "PAYMENT_CONFIRMED"
)

// WebhookService applies confirmed gateway payments to the ledger.
type WebhookService struct {
	ledger Ledger
	logger *log.Logger
}

// NewWebhookService constructs the service.
func NewWebhookService(ledger Ledger, logger *log.Logger) (*WebhookService, error) {
	if ledger == nil {
		return nil, errors.New("webhook service: nil ledger")
	}
	return &WebhookService{ledger: ledger, logger: logger}, nil
}

// HandleEvent processes one webhook delivery. Only payment-received and
// payment-confirmed events mutate the ledger; everything else is
// acknowledged and ignored. Redelivery retries are the gateway's job, so an
// unresolvable merchant reference is a hard error back to the caller.
func (s *WebhookService) HandleEvent(ctx context.Context, event WebhookEvent) (*WebhookResult, error) {
	start := time.Now()

	if event.Event != eventPaymentReceived && event.Event != eventPaymentConfirmed {
		metrics.ObserveWebhookEvent(event.Event, metrics.ResultIgnored, time.Since(start))
		return &WebhookResult{Received: true, Ignored: true}, nil
	}

	merchantID := event.Payment.ExternalReference
	if merchantID == "" {
		metrics.ObserveWebhookEvent(event.Event, metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: empty external reference", ErrMerchantNotFound)
	}
	if !event.Payment.Value.IsPositive() {
		metrics.ObserveWebhookEvent(event.Event, metrics.ResultError, time.Since(start))
		return nil, ledger.ErrInvalidAmount
	}

	outcome, err := s.ledger.Credit(ctx, merchantID, event.Payment.Value, event.Payment.BillingType, "Recarga confirmada pelo gateway", event.Payment.ID)
	if err != nil {
		if errors.Is(err, ledger.ErrBalanceNotFound) {
			metrics.ObserveWebhookEvent(event.Event, metrics.ResultError, time.Since(start))
			return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, merchantID)
		}
		metrics.ObserveWebhookEvent(event.Event, metrics.ResultError, time.Since(start))
		return nil, err
	}

	if s.logger != nil {
		s.logger.Printf("intake: credit applied: merchant=%s payment=%s value=%s debt_paid=%s", merchantID, event.Payment.ID, event.Payment.Value.StringFixed(2), outcome.DebtPaid.StringFixed(2))
	}
	metrics.ObserveWebhookEvent(event.Event, metrics.ResultSuccess, time.Since(start))
	return &WebhookResult{
		Received:   true,
		MerchantID: merchantID,
		NewBalance: outcome.NewBalance,
		NewDebt:    outcome.NewDebt,
	}, nil
}
