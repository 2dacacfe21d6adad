package http

import (
	"encoding/json"
	"errors"
	"net/http"

	adminapp "telegateway/internal/admin/application"
	ledger "telegateway/internal/ledger/domain"

	"github.com/shopspring/decimal"
)

// BalanceHandler exposes manual balance interventions.
type BalanceHandler struct {
	service *adminapp.Service
}

// NewBalanceHandler constructs the handler.
func NewBalanceHandler(service *adminapp.Service) (*BalanceHandler, error) {
	if service == nil {
		return nil, errors.New("admin handler: nil service")
	}
	return &BalanceHandler{service: service}, nil
}

// ServeHTTP handles POST /api/v1/admin/balance.
func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		MerchantID string          `json:"merchant_id"`
		Action     string          `json:"action"`
		Amount     decimal.Decimal `json:"amount"`
		FeeRate    decimal.Decimal `json:"fee_rate"`
		Reason     string          `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := h.service.Apply(r.Context(), adminapp.Request{
		MerchantID: req.MerchantID,
		Action:     req.Action,
		Amount:     req.Amount,
		FeeRate:    req.FeeRate,
		Reason:     req.Reason,
		IP:         r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, adminapp.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, adminapp.ErrUnknownAction),
			errors.Is(err, ledger.ErrInvalidAmount),
			errors.Is(err, ledger.ErrNegativeFeeRate),
			errors.Is(err, ledger.ErrNotBlocked),
			errors.Is(err, ledger.ErrEmptyMerchantID):
			status = http.StatusBadRequest
		case errors.Is(err, ledger.ErrBalanceNotFound):
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	payload := map[string]any{
		"success":     true,
		"merchant_id": result.MerchantID,
		"action":      result.Action,
		"new_balance": result.NewBalance,
		"new_debt":    result.NewDebt,
	}
	if result.Action == adminapp.ActionAdjustFeeRate {
		payload["old_fee_rate"] = result.OldFeeRate
		payload["new_fee_rate"] = result.NewFeeRate
	}
	if result.Action == adminapp.ActionCredit {
		payload["debt_paid"] = result.DebtPaid
		payload["unblocked"] = result.Unblocked
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
