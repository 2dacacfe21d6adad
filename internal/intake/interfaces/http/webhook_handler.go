package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	intakeapp "telegateway/internal/intake/application"
	ledger "telegateway/internal/ledger/domain"
)

// WebhookHandler receives payment confirmations from the gateway. The route
// is exempt from JWT auth and guarded by the shared access token the
// gateway is configured to send.
type WebhookHandler struct {
	service     *intakeapp.WebhookService
	accessToken string
	logger      *log.Logger
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(service *intakeapp.WebhookService, accessToken string, logger *log.Logger) (*WebhookHandler, error) {
	if service == nil {
		return nil, errors.New("webhook handler: nil service")
	}
	return &WebhookHandler{service: service, accessToken: accessToken, logger: logger}, nil
}

// ServeHTTP handles POST /webhooks/gateway/balance.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.accessToken != "" {
		provided := r.Header.Get("asaas-access-token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.accessToken)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	var event intakeapp.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	result, err := h.service.HandleEvent(r.Context(), event)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, intakeapp.ErrMerchantNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ledger.ErrInvalidAmount):
			status = http.StatusBadRequest
		}
		if h.logger != nil {
			h.logger.Printf("webhook: event=%s err=%v", event.Event, err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
