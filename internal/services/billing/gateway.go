package billing

import (
	"context"
	"errors"
)

// ErrGatewayNotConfigured is returned by gateways missing their credentials
var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

// ChargeStatus is the gateway's verdict on a charge
type ChargeStatus string

const (
	ChargeApproved ChargeStatus = "APPROVED"
	ChargeDeclined ChargeStatus = "DECLINED"
	ChargeVoided   ChargeStatus = "VOIDED"
	ChargeError    ChargeStatus = "ERROR"
	ChargePending  ChargeStatus = "PENDING"
)

// IsFailure reports whether the status ends the attempt unsuccessfully
func (s ChargeStatus) IsFailure() bool {
	switch s {
	case ChargeDeclined, ChargeVoided, ChargeError:
		return true
	}
	return false
}

// ChargeRequest is a charge against a saved payment source
type ChargeRequest struct {
	AmountInCents int64
	Currency      string
	CustomerEmail string
	Token         string
	Reference     string
	Metadata      map[string]string
}

// ChargeResult is the synchronous answer of the gateway
type ChargeResult struct {
	Status        ChargeStatus
	TransactionID string
	StatusMessage string
	Raw           map[string]interface{}
}

// Gateway charges saved payment sources
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// FailureReason renders a human readable reason for a failed gateway status
func FailureReason(status ChargeStatus, message string) string {
	var reason string
	switch status {
	case ChargeDeclined:
		reason = "Payment declined by the gateway"
	case ChargeVoided:
		reason = "Transaction voided"
	case ChargeError:
		reason = "Gateway error while processing the payment"
	default:
		reason = "Payment failed"
	}
	if message != "" {
		reason += ": " + message
	}
	return reason
}
