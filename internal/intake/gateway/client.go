package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillingType selects how a charge is collected.
type BillingType string

const (
	BillingPIX  BillingType = "PIX"
	BillingCard BillingType = "CREDIT_CARD"
)

// Charge is a payment charge created at the gateway. No ledger mutation
// happens until the gateway confirms payment through the webhook.
type Charge struct {
	ID          string
	Status      string
	BillingType BillingType
	Value       decimal.Decimal
	InvoiceURL  string
	PixPayload  string
}

// Client is a minimal Asaas-style payment gateway REST client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient constructs a gateway client.
func NewClient(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("gateway: empty base url")
	}
	if apiKey == "" {
		return nil, errors.New("gateway: empty api key")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// ChargeRequest describes a top-up charge.
type ChargeRequest struct {
	CustomerID        string
	BillingType       BillingType
	Value             decimal.Decimal
	Description       string
	ExternalReference string
	DueDate           time.Time
}

type chargeBody struct {
	Customer          string `json:"customer"`
	BillingType       string `json:"billingType"`
	Value             string `json:"value"`
	Description       string `json:"description,omitempty"`
	ExternalReference string `json:"externalReference"`
	DueDate           string `json:"dueDate"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	BillingType string `json:"billingType"`
	Value       string `json:"value"`
	InvoiceURL  string `json:"invoiceUrl"`
}

type pixResponse struct {
	Payload string `json:"payload"`
}

// CreateCharge creates a charge at the gateway. externalReference must
// carry the merchant id so the confirmation webhook can be resolved back.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.CustomerID == "" {
		return nil, errors.New("gateway: empty customer id")
	}
	if req.ExternalReference == "" {
		return nil, errors.New("gateway: empty external reference")
	}
	if !req.Value.IsPositive() {
		return nil, errors.New("gateway: charge value must be positive")
	}
	if req.BillingType == "" {
		req.BillingType = BillingPIX
	}
	due := req.DueDate
	if due.IsZero() {
		due = time.Now().UTC().AddDate(0, 0, 1)
	}

	body := chargeBody{
		Customer:          req.CustomerID,
		BillingType:       string(req.BillingType),
		Value:             req.Value.StringFixed(2),
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		DueDate:           due.Format("2006-01-02"),
	}
	var resp chargeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v3/payments", body, &resp); err != nil {
		return nil, err
	}

	value, err := decimal.NewFromString(resp.Value)
	if err != nil {
		value = req.Value
	}
	charge := &Charge{
		ID:          resp.ID,
		Status:      resp.Status,
		BillingType: BillingType(resp.BillingType),
		Value:       value,
		InvoiceURL:  resp.InvoiceURL,
	}

	if charge.BillingType == BillingPIX && charge.ID != "" {
		var pix pixResponse
		if err := c.doJSON(ctx, http.MethodGet, "/v3/payments/"+charge.ID+"/pixQrCode", nil, &pix); err == nil {
			charge.PixPayload = pix.Payload
		}
	}
	return charge, nil
}

var errNotFound = errors.New("gateway: not found")

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway: http %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
