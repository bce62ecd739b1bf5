package models

import (
	"time"

	"skillmint/internal/domain"
)

// Order is one purchase attempt. Orders are never deleted.
type Order struct {
	ID               uint    `gorm:"primaryKey" json:"-"`
	OrderID          string  `gorm:"size:32;uniqueIndex;not null" json:"order_id"`
	UserID           uint    `gorm:"not null;index" json:"user_id"`
	CourseID         uint    `gorm:"not null;index" json:"course_id"`
	AmountCents      int64   `gorm:"not null" json:"amount_cents"`
	DiscountCents    int64   `gorm:"not null;default:0" json:"discount_cents"`
	FinalAmountCents int64   `gorm:"not null" json:"final_amount_cents"`
	Currency         string  `gorm:"size:3;not null" json:"currency"`
	CouponCode       string  `gorm:"size:32" json:"coupon_code,omitempty"`
	GatewayOrderID   *string `gorm:"size:64;uniqueIndex" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string  `gorm:"size:64;index" json:"gateway_payment_id,omitempty"`
	GatewaySignature string  `gorm:"size:128" json:"-"`
	PaymentMethod    string  `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus    string  `gorm:"size:20;not null;index" json:"payment_status"`
	OrderStatus      string  `gorm:"size:20;not null;index" json:"order_status"`
	ReferralUsedID   *uint   `gorm:"index" json:"referral_used_id,omitempty"`

	AffiliateCommissionCents int64  `gorm:"not null;default:0" json:"affiliate_commission_cents"`
	InstructorEarningsCents  int64  `gorm:"not null;default:0" json:"instructor_earnings_cents"`
	PlatformEarningsCents    int64  `gorm:"not null;default:0" json:"platform_earnings_cents"`
	CommissionStatus         string `gorm:"size:20;not null" json:"commission_status"`
	// CommissionPlan is the per-level payout fixed at completion, as JSON.
	CommissionPlan string `gorm:"type:text" json:"-"`

	IsRefundRequested bool       `gorm:"not null;default:false" json:"is_refund_requested"`
	RefundStatus      string     `gorm:"size:20;not null" json:"refund_status"`
	RefundReason      string     `gorm:"size:512" json:"refund_reason,omitempty"`
	RefundRequestedAt *time.Time `json:"refund_requested_at,omitempty"`
	RefundedAt        *time.Time `json:"refunded_at,omitempty"`
	GatewayRefundID   string     `gorm:"size:64" json:"gateway_refund_id,omitempty"`

	IPAddress     string     `gorm:"size:45" json:"-"`
	UserAgent     string     `gorm:"size:512" json:"-"`
	FinalizeError string     `gorm:"size:512" json:"-"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) IsCompleted() bool { return o.PaymentStatus == domain.PaymentStatusCompleted }

// CanBeRefunded: completed, not already requested, and inside the refund window.
func (o *Order) CanBeRefunded(now time.Time, window time.Duration) bool {
	return o.PaymentStatus == domain.PaymentStatusCompleted &&
		!o.IsRefundRequested &&
		now.Sub(o.CreatedAt) <= window
}

// SplitTotal is the sum of the stored earnings snapshot.
func (o *Order) SplitTotal() int64 {
	return o.AffiliateCommissionCents + o.InstructorEarningsCents + o.PlatformEarningsCents
}
