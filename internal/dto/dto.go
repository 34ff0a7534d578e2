package dto

import "time"

type CheckExistingRequest struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type BootstrapRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type SessionResponse struct {
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type ValidateCodeRequest struct {
	Code   string `json:"code"`
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
}

type CodeDescriptor struct {
	Code          string `json:"code"`
	Kind          string `json:"kind"`
	Percent       int64  `json:"percent"`
	MinimumAmount int64  `json:"minimum_amount"`
}

type CreateOrderRequest struct {
	Quantity     int    `json:"quantity"`
	Category     string `json:"category"`
	ReferralCode string `json:"referral_code"`
	DiscountCode string `json:"discount_code"`
}

type OrderResponse struct {
	OrderNumber          string     `json:"order_number"`
	Status               string     `json:"status"`
	Quantity             int        `json:"quantity"`
	Category             string     `json:"category"`
	BasePrice            int64      `json:"base_price"`
	Subtotal             int64      `json:"subtotal"`
	DiscountAmount       int64      `json:"discount_amount"`
	BundleDiscountAmount int64      `json:"bundle_discount_amount"`
	FinalAmount          int64      `json:"final_amount"`
	ReferralCode         string     `json:"referral_code,omitempty"`
	DiscountCode         string     `json:"discount_code,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
}

type PaymentTokenResponse struct {
	OrderNumber string `json:"order_number"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

type VerifyResponse struct {
	Order     OrderResponse `json:"order"`
	Confirmed bool          `json:"confirmed"`
	// Status distinguishes "paid", "failed", "pending" and
	// "manual_followup" for the client copy.
	Status string `json:"status"`
}

type PaymentStatusResponse struct {
	OrderNumber string     `json:"order_number"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}
