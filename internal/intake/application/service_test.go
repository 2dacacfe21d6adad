package application

import (
	"context"
	"errors"
	"testing"

	"telegateway/internal/intake/gateway"
	ledgerapp "telegateway/internal/ledger/application"
	ledger "telegateway/internal/ledger/domain"

	"github.com/shopspring/decimal"
)

type ledgerStub struct {
	balances map[string]*ledger.MerchantBalance
	credits  []creditCall
}

type creditCall struct {
	merchantID  string
	amount      decimal.Decimal
	method      string
	referenceID string
}

func (l *ledgerStub) Credit(_ context.Context, merchantID string, amount decimal.Decimal, method, _, referenceID string) (*ledgerapp.CreditOutcome, error) {
	balance, ok := l.balances[merchantID]
	if !ok {
		return nil, ledger.ErrBalanceNotFound
	}
	l.credits = append(l.credits, creditCall{merchantID: merchantID, amount: amount, method: method, referenceID: referenceID})
	return &ledgerapp.CreditOutcome{
		MerchantID: merchantID,
		NewBalance: balance.Balance.Add(amount),
		NewDebt:    balance.DebtAmount,
	}, nil
}

func (l *ledgerStub) Balance(_ context.Context, merchantID string) (*ledger.MerchantBalance, error) {
	balance, ok := l.balances[merchantID]
	if !ok {
		return nil, ledger.ErrBalanceNotFound
	}
	return balance, nil
}

type chargeStub struct {
	charges []gateway.ChargeRequest
	err     error
}

func (c *chargeStub) CreateCharge(_ context.Context, req gateway.ChargeRequest) (*gateway.Charge, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.charges = append(c.charges, req)
	return &gateway.Charge{ID: "chg-1", Status: "PENDING", BillingType: req.BillingType}, nil
}

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func knownLedger() *ledgerStub {
	return &ledgerStub{balances: map[string]*ledger.MerchantBalance{
		"merchant-1": {MerchantID: "merchant-1", Balance: dec("10"), DebtAmount: decimal.Zero},
	}}
}

func TestHandleEvent_NonPaymentEventIsAcknowledgedAndIgnored(t *testing.T) {
	stub := knownLedger()
	svc, err := NewWebhookService(stub, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	for _, event := range []string{"PAYMENT_CREATED", "PAYMENT_UPDATED", "SUBSCRIPTION_DELETED", ""} {
		result, err := svc.HandleEvent(context.Background(), WebhookEvent{Event: event})
		if err != nil {
			t.Fatalf("event %q: %v", event, err)
		}
		if !result.Received || !result.Ignored {
			t.Fatalf("event %q should be received and ignored, got %+v", event, result)
		}
	}
	if len(stub.credits) != 0 {
		t.Fatalf("ignored events must not touch the ledger, got %v", stub.credits)
	}
}

func TestHandleEvent_PaymentReceivedCredits(t *testing.T) {
	stub := knownLedger()
	svc, err := NewWebhookService(stub, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.HandleEvent(context.Background(), WebhookEvent{
		Event: "PAYMENT_RECEIVED",
		Payment: WebhookPayment{
			ID:                "pay-9",
			Value:             dec("55.00"),
			BillingType:       "PIX",
			ExternalReference: "merchant-1",
		},
	})
	if err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if result.Ignored {
		t.Fatal("payment event must not be ignored")
	}
	if result.MerchantID != "merchant-1" || !result.NewBalance.Equal(dec("65")) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(stub.credits) != 1 {
		t.Fatalf("expected one credit, got %d", len(stub.credits))
	}
	call := stub.credits[0]
	if call.referenceID != "pay-9" || call.method != "PIX" {
		t.Fatalf("credit should carry payment id and method, got %+v", call)
	}
}

func TestHandleEvent_UnknownMerchantIsHardError(t *testing.T) {
	svc, err := NewWebhookService(knownLedger(), nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.HandleEvent(context.Background(), WebhookEvent{
		Event: "PAYMENT_CONFIRMED",
		Payment: WebhookPayment{
			ID:                "pay-10",
			Value:             dec("5.00"),
			ExternalReference: "merchant-ghost",
		},
	})
	if !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("expected ErrMerchantNotFound, got %v", err)
	}

	_, err = svc.HandleEvent(context.Background(), WebhookEvent{
		Event:   "PAYMENT_CONFIRMED",
		Payment: WebhookPayment{ID: "pay-11", Value: dec("5.00")},
	})
	if !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("missing reference: expected ErrMerchantNotFound, got %v", err)
	}
}

func TestRequestTopUp(t *testing.T) {
	charges := &chargeStub{}
	svc, err := NewTopUpService(charges, knownLedger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	charge, err := svc.RequestTopUp(context.Background(), "merchant-1", dec("30"), gateway.BillingPIX)
	if err != nil {
		t.Fatalf("request topup: %v", err)
	}
	if charge.ID != "chg-1" {
		t.Fatalf("unexpected charge: %+v", charge)
	}
	if len(charges.charges) != 1 || charges.charges[0].ExternalReference != "merchant-1" {
		t.Fatalf("charge must carry the merchant as external reference, got %+v", charges.charges)
	}

	if _, err := svc.RequestTopUp(context.Background(), "merchant-1", dec("0"), gateway.BillingPIX); !errors.Is(err, ErrInvalidTopUp) {
		t.Fatalf("expected ErrInvalidTopUp, got %v", err)
	}
	if _, err := svc.RequestTopUp(context.Background(), "merchant-ghost", dec("30"), gateway.BillingPIX); !errors.Is(err, ErrMerchantNotFound) {
		t.Fatalf("expected ErrMerchantNotFound, got %v", err)
	}
}
