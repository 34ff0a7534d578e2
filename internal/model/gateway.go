package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// GatewayOutcome is the normalized tri-state the reconciliation layer works
// with; vendor status strings never leave the adapter.
type GatewayOutcome string

const (
	OutcomeSuccess GatewayOutcome = "SUCCESS"
	OutcomePending GatewayOutcome = "PENDING"
	OutcomeFailed  GatewayOutcome = "FAILED"
)

// GatewayStatus is the vendor's transaction-status payload, returned by the
// status endpoint and delivered as the webhook notification body.
type GatewayStatus struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	StatusMessage     string `json:"status_message"`
}

// GrossAmountUnits parses the vendor's decimal-string amount ("450000.00")
// into the smallest currency unit without going through a float.
func (s *GatewayStatus) GrossAmountUnits() (int64, error) {
	d, err := decimal.NewFromString(s.GrossAmount)
	if err != nil {
		return 0, fmt.Errorf("parse gross_amount %q: %w", s.GrossAmount, err)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("gross_amount %q is not a whole currency amount", s.GrossAmount)
	}
	return d.IntPart(), nil
}

// Outcome maps the vendor status strings onto the internal tri-state.
// Unknown statuses normalize to PENDING: an unrecognized signal is never
// guessed into a success or a failure.
func (s *GatewayStatus) Outcome() GatewayOutcome {
	switch s.TransactionStatus {
	case "settlement":
		return OutcomeSuccess
	case "capture":
		if s.FraudStatus == "challenge" {
			return OutcomePending
		}
		return OutcomeSuccess
	case "pending", "authorize":
		return OutcomePending
	case "deny", "cancel", "expire", "failure":
		return OutcomeFailed
	}
	return OutcomePending
}

type GatewayTokenResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}
