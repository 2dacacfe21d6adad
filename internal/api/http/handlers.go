package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telegateway/internal/auth"
	billingapp "telegateway/internal/billing/application"
	billing "telegateway/internal/billing/domain"
	billinginterfaces "telegateway/internal/billing/interfaces"
	ledgerapp "telegateway/internal/ledger/application"
	ledger "telegateway/internal/ledger/domain"
)

const timeLayout = time.RFC3339

// BalanceHandler serves the merchant solvency snapshot the dashboard shows.
type BalanceHandler struct {
	service *ledgerapp.Service
}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler(service *ledgerapp.Service) *BalanceHandler {
	return &BalanceHandler{service: service}
}

type balanceView struct {
	MerchantID      string     `json:"merchant_id"`
	Balance         string     `json:"balance"`
	DebtAmount      string     `json:"debt_amount"`
	IsBlocked       bool       `json:"is_blocked"`
	FeeRate         string     `json:"fee_rate"`
	DebtStartedAt   *time.Time `json:"debt_started_at,omitempty"`
	BlockedAt       *time.Time `json:"blocked_at,omitempty"`
	DaysInDebt      int        `json:"days_in_debt"`
	GracePeriodDays int        `json:"grace_period_days"`
	StatusMessage   string     `json:"status_message,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ServeHTTP handles GET /api/v1/balance.
func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	merchantID, ok := resolveMerchant(w, r)
	if !ok {
		return
	}

	balance, err := h.service.Balance(r.Context(), merchantID)
	if err != nil {
		writeBalanceError(w, err)
		return
	}

	view := balanceView{
		MerchantID:      balance.MerchantID,
		Balance:         balance.Balance.StringFixed(2),
		DebtAmount:      balance.DebtAmount.StringFixed(2),
		IsBlocked:       balance.IsBlocked,
		FeeRate:         balance.FeeRate.String(),
		DebtStartedAt:   balance.DebtStartedAt,
		BlockedAt:       balance.BlockedAt,
		DaysInDebt:      balance.DaysSinceDebt(time.Now().UTC()),
		GracePeriodDays: balance.GracePeriodDays(),
		UpdatedAt:       balance.UpdatedAt,
	}
	if balance.IsBlocked {
		view.StatusMessage = "Bot suspenso. Pague o débito de R$ " + balance.DebtAmount.StringFixed(2) + " para reativar."
	} else if balance.DebtAmount.IsPositive() {
		view.StatusMessage = "Débito em aberto de R$ " + balance.DebtAmount.StringFixed(2) + "."
	}

	writeJSON(w, http.StatusOK, view)
}

// TransactionsHandler lists ledger entries, newest first.
type TransactionsHandler struct {
	service *ledgerapp.Service
}

// NewTransactionsHandler constructs a TransactionsHandler.
func NewTransactionsHandler(service *ledgerapp.Service) *TransactionsHandler {
	return &TransactionsHandler{service: service}
}

type transactionView struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Description   string    `json:"description,omitempty"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ServeHTTP handles GET /api/v1/transactions.
func (h *TransactionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	merchantID, ok := resolveMerchant(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	txns, err := h.service.Transactions(r.Context(), merchantID, limit)
	if err != nil {
		writeBalanceError(w, err)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, transactionView{
			ID:            txn.ID,
			Type:          string(txn.Type),
			Amount:        txn.Amount.StringFixed(2),
			Description:   txn.Description,
			ReferenceID:   txn.ReferenceID,
			PaymentMethod: txn.PaymentMethod,
			CreatedAt:     txn.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchant_id":  merchantID,
		"transactions": views,
	})
}

// InvoicesHandler lists daily fee invoices for a window.
type InvoicesHandler struct {
	invoices billing.InvoiceRepository
}

// NewInvoicesHandler constructs an InvoicesHandler.
func NewInvoicesHandler(invoices billing.InvoiceRepository) *InvoicesHandler {
	return &InvoicesHandler{invoices: invoices}
}

type invoiceView struct {
	ID               string    `json:"id"`
	InvoiceDate      time.Time `json:"invoice_date"`
	TotalFees        string    `json:"total_fees"`
	FeesCount        int       `json:"fees_count"`
	Status           string    `json:"status"`
	DueDate          time.Time `json:"due_date"`
	PaymentReference string    `json:"payment_reference,omitempty"`
}

// ServeHTTP handles GET /api/v1/invoices.
func (h *InvoicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.invoices == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	merchantID, ok := resolveMerchant(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	if r.URL.Query().Get("from") != "" {
		var err error
		from, err = parseTimeQuery(r, "from")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		to, err = parseTimeQuery(r, "to")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !to.After(from) {
			http.Error(w, "to must be after from", http.StatusBadRequest)
			return
		}
	}

	invoices, err := h.invoices.ListByMerchant(r.Context(), merchantID, from, to)
	if err != nil {
		http.Error(w, "query invoices error", http.StatusInternalServerError)
		return
	}

	views := make([]invoiceView, 0, len(invoices))
	for _, invoice := range invoices {
		views = append(views, invoiceView{
			ID:               invoice.ID,
			InvoiceDate:      invoice.InvoiceDate,
			TotalFees:        invoice.TotalFees.StringFixed(2),
			FeesCount:        invoice.FeesCount,
			Status:           string(invoice.Status),
			DueDate:          invoice.DueDate,
			PaymentReference: invoice.PaymentReference,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"merchant_id": merchantID,
		"invoices":    views,
	})
}

// StatementExportHandler serves monthly statement downloads.
type StatementExportHandler struct {
	statements *billingapp.StatementService
}

// NewStatementExportHandler constructs a StatementExportHandler.
func NewStatementExportHandler(statements *billingapp.StatementService) *StatementExportHandler {
	return &StatementExportHandler{statements: statements}
}

// ServeHTTP handles GET /api/v1/statements/export.{xlsx,pdf}.
func (h *StatementExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.statements == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var format string
	switch {
	case strings.HasSuffix(r.URL.Path, "/export.xlsx"):
		format = "xlsx"
	case strings.HasSuffix(r.URL.Path, "/export.pdf"):
		format = "pdf"
	default:
		http.Error(w, "unknown export format", http.StatusNotFound)
		return
	}

	merchantID, ok := resolveMerchant(w, r)
	if !ok {
		return
	}

	month := time.Now().UTC()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			http.Error(w, "month must be YYYY-MM", http.StatusBadRequest)
			return
		}
		month = parsed
	}

	stmt, err := h.statements.Monthly(r.Context(), merchantID, month)
	if err != nil {
		writeBalanceError(w, err)
		return
	}

	filename := "statement-" + merchantID + "-" + stmt.Month.Format("2006-01")
	switch format {
	case "xlsx":
		data, err := billinginterfaces.BuildStatementXLSX(stmt)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.xlsx"`)
		_, _ = w.Write(data)
	case "pdf":
		data, err := billinginterfaces.BuildStatementPDF(stmt)
		if err != nil {
			http.Error(w, "export error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.pdf"`)
		_, _ = w.Write(data)
	}
}

// JobsHandler triggers the daily billing jobs on demand, for operators and
// for tests. The scheduler runs the same chain.
type JobsHandler struct {
	consolidate func(r *http.Request) (any, error)
	overdue     func(r *http.Request) (any, error)
	sweep       func(r *http.Request) (any, error)
}

// NewJobsHandler constructs a JobsHandler from the three job runners.
func NewJobsHandler(consolidate, overdue, sweep func(r *http.Request) (any, error)) *JobsHandler {
	return &JobsHandler{consolidate: consolidate, overdue: overdue, sweep: sweep}
}

// ServeHTTP handles POST /api/v1/jobs/{consolidate-fees,collect-overdue,check-delinquents}.
func (h *JobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var run func(r *http.Request) (any, error)
	switch {
	case strings.HasSuffix(r.URL.Path, "/consolidate-fees"):
		run = h.consolidate
	case strings.HasSuffix(r.URL.Path, "/collect-overdue"):
		run = h.overdue
	case strings.HasSuffix(r.URL.Path, "/check-delinquents"):
		run = h.sweep
	}
	if run == nil {
		http.Error(w, "unknown job", http.StatusNotFound)
		return
	}

	summary, err := run(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// resolveMerchant picks the target merchant from the query or the caller's
// identity and enforces merchant scope. Writes the error response itself.
func resolveMerchant(w http.ResponseWriter, r *http.Request) (string, bool) {
	merchantID := r.URL.Query().Get("merchant_id")
	if merchantID == "" {
		merchantID = auth.MerchantIDFromContext(r.Context())
	}
	if merchantID == "" {
		http.Error(w, "merchant_id is required", http.StatusBadRequest)
		return "", false
	}
	if err := auth.EnsureMerchantScope(r.Context(), merchantID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return merchantID, true
}

func writeBalanceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrBalanceNotFound):
		http.Error(w, "merchant balance not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrEmptyMerchantID):
		http.Error(w, "merchant_id is required", http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
