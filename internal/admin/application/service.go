package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"telegateway/internal/audit"
	"telegateway/internal/auth"
	ledgerapp "telegateway/internal/ledger/application"
	ledger "telegateway/internal/ledger/domain"

	"github.com/shopspring/decimal"
)

// Actions the admin balance endpoint accepts.
const (
	ActionCredit        = "credit"
	ActionDebit         = "debit"
	ActionUnblock       = "unblock"
	ActionAdjustFeeRate = "adjust_fee_rate"
)

var (
	// ErrForbidden indicates the caller is not an admin.
	ErrForbidden = errors.New("admin: forbidden")
	// ErrUnknownAction indicates an unsupported action value.
	ErrUnknownAction = errors.New("admin: unknown action")
)

// Request describes one manual balance intervention.
type Request struct {
	MerchantID string
	Action     string
	Amount     decimal.Decimal
	FeeRate    decimal.Decimal
	Reason     string
	IP         string
	UserAgent  string
}

// Result reports the merchant state after the intervention.
type Result struct {
	MerchantID string
	Action     string
	NewBalance decimal.Decimal
	NewDebt    decimal.Decimal
	OldFeeRate decimal.Decimal
	NewFeeRate decimal.Decimal
	DebtPaid   decimal.Decimal
	Unblocked  bool
}

// Service executes manual balance interventions. Every action goes through
// the ledger service, so admin credits follow the same debt-first rule as
// gateway payments, and every action leaves one audit entry.
type Service struct {
	ledger *ledgerapp.Service
	audits audit.Logger
	logger *log.Logger
}

// NewService constructs the admin service.
func NewService(ledgerSvc *ledgerapp.Service, audits audit.Logger, logger *log.Logger) (*Service, error) {
	if ledgerSvc == nil {
		return nil, errors.New("admin service: nil ledger service")
	}
	return &Service{ledger: ledgerSvc, audits: audits, logger: logger}, nil
}

// Apply runs one intervention. The role check fails closed: anything other
// than an admin identity in context is rejected before any read.
func (s *Service) Apply(ctx context.Context, req Request) (*Result, error) {
	if auth.RoleFromContext(ctx) != auth.RoleAdmin {
		return nil, ErrForbidden
	}
	if req.MerchantID == "" {
		return nil, ledger.ErrEmptyMerchantID
	}

	before, err := s.ledger.Balance(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}
	oldData := snapshot(before)

	result := &Result{MerchantID: req.MerchantID, Action: req.Action}
	switch req.Action {
	case ActionCredit:
		outcome, err := s.ledger.Credit(ctx, req.MerchantID, req.Amount, "admin", req.Reason, "")
		if err != nil {
			return nil, err
		}
		result.NewBalance = outcome.NewBalance
		result.NewDebt = outcome.NewDebt
		result.DebtPaid = outcome.DebtPaid
		result.Unblocked = outcome.Unblocked
	case ActionDebit:
		outcome, err := s.ledger.Debit(ctx, req.MerchantID, req.Amount, req.Reason)
		if err != nil {
			return nil, err
		}
		result.NewBalance = outcome.NewBalance
		result.NewDebt = outcome.NewDebt
	case ActionUnblock:
		balance, err := s.ledger.ForceUnblock(ctx, req.MerchantID)
		if err != nil {
			return nil, err
		}
		result.NewBalance = balance.Balance
		result.NewDebt = balance.DebtAmount
		result.Unblocked = true
	case ActionAdjustFeeRate:
		change, err := s.ledger.AdjustFeeRate(ctx, req.MerchantID, req.FeeRate)
		if err != nil {
			return nil, err
		}
		result.OldFeeRate = change.OldRate
		result.NewFeeRate = change.NewRate
		after, err := s.ledger.Balance(ctx, req.MerchantID)
		if err != nil {
			return nil, err
		}
		result.NewBalance = after.Balance
		result.NewDebt = after.DebtAmount
	default:
		return nil, ErrUnknownAction
	}

	s.logAudit(ctx, req, oldData)
	return result, nil
}

func (s *Service) logAudit(ctx context.Context, req Request, oldData json.RawMessage) {
	if s.audits == nil {
		return
	}
	after, err := s.ledger.Balance(ctx, req.MerchantID)
	var newData json.RawMessage
	if err == nil {
		newData = snapshot(after)
	}
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       "balance." + req.Action,
		ResourceType: "merchant_balance",
		ResourceID:   req.MerchantID,
		MerchantID:   req.MerchantID,
		OldData:      oldData,
		NewData:      newData,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.audits.Log(ctx, entry); err != nil && s.logger != nil {
		s.logger.Printf("admin: audit log failed: merchant=%s action=%s err=%v", req.MerchantID, req.Action, err)
	}
}

func snapshot(b *ledger.MerchantBalance) json.RawMessage {
	if b == nil {
		return nil
	}
	data, _ := json.Marshal(map[string]any{
		"balance":     b.Balance,
		"debt_amount": b.DebtAmount,
		"is_blocked":  b.IsBlocked,
		"fee_rate":    b.FeeRate,
		"version":     b.Version,
	})
	return data
}
