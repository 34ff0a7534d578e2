package model

import "time"

// Order lifecycle. PAID is reachable only from AWAITING_PAYMENT; the three
// right-hand states are terminal and never change again.
const (
	OrderStatusDraft           = "DRAFT"
	OrderStatusAwaitingPayment = "AWAITING_PAYMENT"
	OrderStatusPaid            = "PAID"
	OrderStatusCancelled       = "CANCELLED"
	OrderStatusExpired         = "EXPIRED"
)

const (
	CodeKindReferral   = "referral"
	CodeKindPercentage = "percentage"
)

type Account struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:128;not null"`
	Email     string `gorm:"size:128;index;not null"`
	Phone     string `gorm:"size:32;index;not null"`
	CreatedAt time.Time
}

type Order struct {
	OrderNumber string `gorm:"primaryKey;size:64;not null"`
	AccountID   uint   `gorm:"index;not null"`

	// buyer contact, denormalized so the duplicate-contact check is a
	// single indexed query
	BuyerName  string `gorm:"size:128;not null"`
	BuyerEmail string `gorm:"size:128;index;not null"`
	BuyerPhone string `gorm:"size:32;index;not null"`

	Quantity int    `gorm:"not null"`
	Category string `gorm:"size:32;not null"`

	ReferralCode string `gorm:"size:32"`
	DiscountCode string `gorm:"size:32"`

	// pricing snapshot, smallest currency unit; written once at draft
	// creation and never recomputed
	BasePrice            int64 `gorm:"not null"`
	Subtotal             int64 `gorm:"not null"`
	DiscountAmount       int64 `gorm:"not null"`
	BundleDiscountAmount int64 `gorm:"not null"`
	FinalAmount          int64 `gorm:"not null"`

	Status        string `gorm:"size:32;index;not null"`
	GatewayToken  string `gorm:"size:128"`
	FailureReason string `gorm:"size:128"`

	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time
	CancelledAt *time.Time
}

// Terminal reports whether the order can never change state again.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

type DiscountCode struct {
	Code string `gorm:"primaryKey;size:32;not null"`
	Kind string `gorm:"size:16;not null"` // referral | percentage

	Percent       int64 `gorm:"not null"` // percentage off the raw subtotal
	MinimumAmount int64 `gorm:"not null"` // smallest order subtotal the code applies to
	MaxUses       int   `gorm:"not null"` // 0 = unlimited
	UsageCount    int   `gorm:"not null"`
	Active        bool  `gorm:"not null;default:true"`
	ExpiresAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Ticket struct {
	ID          uint   `gorm:"primaryKey"`
	OrderNumber string `gorm:"size:64;index;not null"`
	SerialCode  string `gorm:"size:64;uniqueIndex;not null"`
	Category    string `gorm:"size:32;not null"`
	CreatedAt   time.Time
}

// WebhookEvent is the dedupe record for gateway notifications; one row per
// processed (transaction id, status) pair.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	OrderNumber string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
