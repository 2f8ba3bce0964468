package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bizflow/backend/internal/services/billing"
	"github.com/bizflow/backend/internal/utils"
	"github.com/rs/zerolog/log"
)

// WompiProvider implements billing.Gateway against the Wompi transactions API
type WompiProvider struct {
	privateKey      string
	integritySecret string
	baseURL         string
	client          *http.Client
}

// WompiConfig holds configuration for the Wompi provider
type WompiConfig struct {
	PrivateKey      string
	IntegritySecret string
	BaseURL         string
	Timeout         time.Duration
}

// NewWompiProvider creates a new Wompi provider
func NewWompiProvider(config WompiConfig) *WompiProvider {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://sandbox.wompi.co/v1"
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WompiProvider{
		privateKey:      config.PrivateKey,
		integritySecret: config.IntegritySecret,
		baseURL:         baseURL,
		client:          &http.Client{Timeout: timeout},
	}
}

// transactionRequest is the body of POST /transactions for a saved payment source
type transactionRequest struct {
	AmountInCents   int64             `json:"amount_in_cents"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	Reference       string            `json:"reference"`
	Signature       string            `json:"signature"`
	PaymentSourceID int64             `json:"payment_source_id"`
	PaymentMethod   paymentMethod     `json:"payment_method"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

type paymentMethod struct {
	Installments int `json:"installments"`
}

// transactionResponse is the envelope Wompi answers with
type transactionResponse struct {
	Data struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		StatusMessage string `json:"status_message"`
		Reference     string `json:"reference"`
		AmountInCents int64  `json:"amount_in_cents"`
		Currency      string `json:"currency"`
	} `json:"data"`
	Error *struct {
		Type     string          `json:"type"`
		Reason   string          `json:"reason"`
		Messages json.RawMessage `json:"messages"`
	} `json:"error"`
}

// IntegritySignature signs reference, amount and currency with the integrity secret
func IntegritySignature(reference string, amountInCents int64, currency, secret string) string {
	return utils.SHA256Hex(reference + strconv.FormatInt(amountInCents, 10) + currency + secret)
}

// Charge creates a transaction against a saved payment source
func (p *WompiProvider) Charge(ctx context.Context, req billing.ChargeRequest) (*billing.ChargeResult, error) {
	if p.privateKey == "" || p.integritySecret == "" {
		return nil, billing.ErrGatewayNotConfigured
	}

	sourceID, err := strconv.ParseInt(req.Token, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid payment source id %q: %w", req.Token, err)
	}

	body := transactionRequest{
		AmountInCents:   req.AmountInCents,
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		Reference:       req.Reference,
		Signature:       IntegritySignature(req.Reference, req.AmountInCents, req.Currency, p.integritySecret),
		PaymentSourceID: sourceID,
		PaymentMethod:   paymentMethod{Installments: 1},
		Metadata:        req.Metadata,
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transactions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.privateKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed transactionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBody, &raw)

	if resp.StatusCode >= http.StatusBadRequest || parsed.Error != nil {
		// Validation errors are final for this attempt; the source or the amount was rejected.
		message := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			message = strings.TrimSpace(parsed.Error.Type + " " + parsed.Error.Reason + " " + string(parsed.Error.Messages))
		}
		log.Warn().Str("reference", req.Reference).Str("error", message).Msg("wompi rejected transaction")
		return &billing.ChargeResult{
			Status:        billing.ChargeError,
			StatusMessage: message,
			Raw:           raw,
		}, nil
	}

	return &billing.ChargeResult{
		Status:        mapStatus(parsed.Data.Status),
		TransactionID: parsed.Data.ID,
		StatusMessage: parsed.Data.StatusMessage,
		Raw:           raw,
	}, nil
}

func mapStatus(status string) billing.ChargeStatus {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return billing.ChargeApproved
	case "DECLINED":
		return billing.ChargeDeclined
	case "VOIDED":
		return billing.ChargeVoided
	case "PENDING":
		return billing.ChargePending
	default:
		return billing.ChargeError
	}
}
