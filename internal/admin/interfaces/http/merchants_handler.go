package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"telegateway/internal/audit"
	"telegateway/internal/auth"
	ledgerapp "telegateway/internal/ledger/application"
	ledger "telegateway/internal/ledger/domain"

	"github.com/shopspring/decimal"
)

// MerchantsHandler registers merchant balance records at onboarding.
type MerchantsHandler struct {
	ledger *ledgerapp.Service
	audits audit.Logger
}

// NewMerchantsHandler constructs the handler.
func NewMerchantsHandler(ledgerSvc *ledgerapp.Service, audits audit.Logger) (*MerchantsHandler, error) {
	if ledgerSvc == nil {
		return nil, errors.New("merchants handler: nil ledger service")
	}
	return &MerchantsHandler{ledger: ledgerSvc, audits: audits}, nil
}

// ServeHTTP handles POST /api/v1/admin/merchants.
func (h *MerchantsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if auth.RoleFromContext(r.Context()) != auth.RoleAdmin {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	var req struct {
		MerchantID string          `json:"merchant_id"`
		FeeRate    decimal.Decimal `json:"fee_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	balance, err := h.ledger.Register(r.Context(), req.MerchantID, req.FeeRate)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ledger.ErrEmptyMerchantID), errors.Is(err, ledger.ErrNegativeFeeRate):
			status = http.StatusBadRequest
		case errors.Is(err, ledger.ErrBalanceExists):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if h.audits != nil {
		newData, _ := json.Marshal(map[string]any{
			"merchant_id": balance.MerchantID,
			"fee_rate":    balance.FeeRate,
		})
		_ = h.audits.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       "merchant.register",
			ResourceType: "merchant_balance",
			ResourceID:   balance.MerchantID,
			MerchantID:   balance.MerchantID,
			NewData:      newData,
			IP:           r.RemoteAddr,
			UserAgent:    r.UserAgent(),
			CreatedAt:    time.Now().UTC(),
		})
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"merchant_id": balance.MerchantID,
		"balance":     balance.Balance.StringFixed(2),
		"fee_rate":    balance.FeeRate.String(),
		"created_at":  balance.CreatedAt,
	})
}
