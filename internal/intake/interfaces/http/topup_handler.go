package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"telegateway/internal/auth"
	intakeapp "telegateway/internal/intake/application"
	"telegateway/internal/intake/gateway"

	"github.com/shopspring/decimal"
)

// TopUpHandler lets a merchant request a balance top-up charge.
type TopUpHandler struct {
	service *intakeapp.TopUpService
}

// NewTopUpHandler constructs the handler.
func NewTopUpHandler(service *intakeapp.TopUpService) (*TopUpHandler, error) {
	if service == nil {
		return nil, errors.New("topup handler: nil service")
	}
	return &TopUpHandler{service: service}, nil
}

// ServeHTTP handles POST /api/v1/topups.
func (h *TopUpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		MerchantID string          `json:"merchant_id"`
		Amount     decimal.Decimal `json:"amount"`
		Method     string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.MerchantID == "" {
		req.MerchantID = auth.MerchantIDFromContext(r.Context())
	}
	if err := auth.EnsureMerchantScope(r.Context(), req.MerchantID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	billingType := gateway.BillingPIX
	if req.Method != "" {
		billingType = gateway.BillingType(req.Method)
	}

	charge, err := h.service.RequestTopUp(r.Context(), req.MerchantID, req.Amount, billingType)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, intakeapp.ErrInvalidTopUp):
			status = http.StatusBadRequest
		case errors.Is(err, intakeapp.ErrMerchantNotFound):
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"charge_id":    charge.ID,
		"status":       charge.Status,
		"billing_type": charge.BillingType,
		"value":        charge.Value,
		"invoice_url":  charge.InvoiceURL,
		"pix_payload":  charge.PixPayload,
	})
}
