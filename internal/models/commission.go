package models

import (
	"time"
)

// AffiliateCommission is one level of referral payout for a completed order.
// (order_id, level) is unique so a commission is created at most once.
type AffiliateCommission struct {
	ID                    uint       `gorm:"primaryKey" json:"-"`
	CommissionID          string     `gorm:"size:32;uniqueIndex;not null" json:"commission_id"`
	AffiliateID           uint       `gorm:"not null;index" json:"affiliate_id"`
	ReferredUserID        uint       `gorm:"not null;index" json:"referred_user_id"`
	OrderID               string     `gorm:"size:32;not null;uniqueIndex:idx_commission_order_level" json:"order_id"`
	CourseID              uint       `gorm:"not null;index" json:"course_id"`
	Level                 int        `gorm:"not null;uniqueIndex:idx_commission_order_level" json:"level"`
	CommissionAmountCents int64      `gorm:"not null" json:"commission_amount_cents"`
	CommissionPercentage  float64    `gorm:"not null" json:"commission_percentage"`
	OrderAmountCents      int64      `gorm:"not null" json:"order_amount_cents"`
	Status                string     `gorm:"size:20;not null;index" json:"status"`
	Note                  string     `gorm:"size:512" json:"note,omitempty"`
	PayoutMethod          string     `gorm:"size:20" json:"payout_method,omitempty"`
	ExternalTxnID         string     `gorm:"size:64" json:"external_txn_id,omitempty"`
	PayoutDate            *time.Time `json:"payout_date,omitempty"`
	NeedsReview           bool       `gorm:"not null;default:false" json:"needs_review"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (AffiliateCommission) TableName() string { return "affiliate_commissions" }
