package models

import (
	"time"

	"gorm.io/gorm"
)

// Coupon is a store-backed discount code. Value is a percentage for percentage
// coupons and minor units for fixed coupons.
type Coupon struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Code             string         `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Type             string         `gorm:"size:20;not null" json:"type"`
	Value            float64        `gorm:"not null" json:"value"`
	MinAmountCents   int64          `gorm:"not null;default:0" json:"min_amount_cents"`
	MaxDiscountCents *int64         `json:"max_discount_cents"`
	ExpiresAt        *time.Time     `json:"expires_at"`
	IsActive         bool           `gorm:"not null" json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Coupon) TableName() string { return "coupons" }

// CouponRedemption marks a coupon as used by a user. It is claimed when the
// order is created and released if that order fails.
type CouponRedemption struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CouponID  uint      `gorm:"not null;uniqueIndex:idx_coupon_user" json:"coupon_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_coupon_user" json:"user_id"`
	OrderID   string    `gorm:"size:32;not null" json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (CouponRedemption) TableName() string { return "coupon_redemptions" }
