package http

import (
	"encoding/json"
	"errors"
	"net/http"

	billingapp "telegateway/internal/billing/application"
	billing "telegateway/internal/billing/domain"

	"github.com/shopspring/decimal"
)

// FeeHandler records platform fees. Called by the order-settlement side of
// the platform, which authenticates as an operator.
type FeeHandler struct {
	recorder *billingapp.FeeRecorder
}

// NewFeeHandler constructs the handler.
func NewFeeHandler(recorder *billingapp.FeeRecorder) (*FeeHandler, error) {
	if recorder == nil {
		return nil, errors.New("fee handler: nil recorder")
	}
	return &FeeHandler{recorder: recorder}, nil
}

// ServeHTTP handles POST /api/v1/fees.
func (h *FeeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		MerchantID string          `json:"merchant_id"`
		OrderID    string          `json:"order_id"`
		Amount     decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	fee, err := h.recorder.Record(r.Context(), req.MerchantID, req.OrderID, req.Amount)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, billing.ErrEmptyMerchantID),
			errors.Is(err, billing.ErrEmptyOrderID),
			errors.Is(err, billing.ErrInvalidFeeAmount):
			status = http.StatusBadRequest
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"fee_id":      fee.ID,
		"merchant_id": fee.MerchantID,
		"order_id":    fee.OrderID,
		"amount":      fee.Amount.StringFixed(2),
		"status":      string(fee.Status),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
