package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bizflow/backend/internal/utils"
)

var (
	// ErrMissingSecret is returned when no events secret is configured. Webhooks fail closed.
	ErrMissingSecret = errors.New("webhook events secret is not configured")
	// ErrMalformedSignature is returned when the envelope carries no usable signature
	ErrMalformedSignature = errors.New("webhook signature is malformed")
	// ErrSignatureMismatch is returned when the computed checksum differs from the received one
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	// ErrMalformedEnvelope is returned when the webhook body cannot be decoded
	ErrMalformedEnvelope = errors.New("malformed webhook envelope")
)

// EventTransactionUpdated is the only gateway event the reconciler acts on
const EventTransactionUpdated = "transaction.updated"

// EnvelopeSignature is the signature block of a gateway event
type EnvelopeSignature struct {
	Properties []string `json:"properties"`
	Checksum   string   `json:"checksum"`
}

// WebhookEnvelope is a gateway event as posted to the webhook endpoint
type WebhookEnvelope struct {
	Event       string                 `json:"event"`
	Environment string                 `json:"environment"`
	Data        map[string]interface{} `json:"data"`
	Signature   EnvelopeSignature      `json:"signature"`
	Timestamp   interface{}            `json:"timestamp"`
	SentAt      string                 `json:"sent_at"`
}

// TransactionData is the typed view of data.transaction
type TransactionData struct {
	ID            string
	Reference     string
	Status        string
	AmountInCents string
	Currency      string
	StatusMessage string
}

// DecodeEnvelope reads an envelope keeping numbers exactly as received
func DecodeEnvelope(r io.Reader) (*WebhookEnvelope, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var env WebhookEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedEnvelope)
	}
	return &env, nil
}

// DecodeEnvelopeBytes is DecodeEnvelope over a byte slice
func DecodeEnvelopeBytes(body []byte) (*WebhookEnvelope, error) {
	return DecodeEnvelope(bytes.NewReader(body))
}

// Lookup resolves a dotted path inside data. Missing segments yield "".
func (e *WebhookEnvelope) Lookup(path string) string {
	var current interface{} = e.Data
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = m[segment]
		if !ok {
			return ""
		}
	}
	return stringify(current)
}

// Transaction extracts data.transaction
func (e *WebhookEnvelope) Transaction() TransactionData {
	return TransactionData{
		ID:            e.Lookup("transaction.id"),
		Reference:     e.Lookup("transaction.reference"),
		Status:        e.Lookup("transaction.status"),
		AmountInCents: e.Lookup("transaction.amount_in_cents"),
		Currency:      e.Lookup("transaction.currency"),
		StatusMessage: e.Lookup("transaction.status_message"),
	}
}

// TransactionDetails returns data.transaction as a JSON map for audit storage
func (e *WebhookEnvelope) TransactionDetails() map[string]interface{} {
	if tx, ok := e.Data["transaction"].(map[string]interface{}); ok {
		return tx
	}
	return map[string]interface{}{}
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// SignatureVerifier checks the checksum gateway events are signed with
type SignatureVerifier struct {
	secret string
}

// NewSignatureVerifier creates a verifier for the given events secret
func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: secret}
}

// Checksum computes the uppercase SHA-256 checksum of the envelope:
// the values of the signed properties, then the timestamp, then the secret.
func (v *SignatureVerifier) Checksum(env *WebhookEnvelope) (string, error) {
	if v.secret == "" {
		return "", ErrMissingSecret
	}
	if len(env.Signature.Properties) == 0 {
		return "", ErrMalformedSignature
	}

	var sb strings.Builder
	for _, prop := range env.Signature.Properties {
		sb.WriteString(env.Lookup(prop))
	}
	sb.WriteString(stringify(env.Timestamp))
	sb.WriteString(v.secret)

	return strings.ToUpper(utils.SHA256Hex(sb.String())), nil
}

// Verify authenticates the envelope. headerChecksum, when non-empty, takes precedence over
// the checksum carried in the body.
func (v *SignatureVerifier) Verify(env *WebhookEnvelope, headerChecksum string) error {
	expected, err := v.Checksum(env)
	if err != nil {
		return err
	}

	received := strings.TrimSpace(headerChecksum)
	if received == "" {
		received = strings.TrimSpace(env.Signature.Checksum)
	}
	if received == "" {
		return ErrMalformedSignature
	}

	if !utils.EqualFoldConstantTime(expected, received) {
		return ErrSignatureMismatch
	}
	return nil
}
