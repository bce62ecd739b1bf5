package models

import "time"

// TopUp is a gateway payment that credits the payer's wallet.
type TopUp struct {
	ID               uint       `gorm:"primaryKey" json:"-"`
	TopUpID          string     `gorm:"column:topup_id;size:32;uniqueIndex;not null" json:"topup_id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	AmountCents      int64      `gorm:"not null" json:"amount_cents"`
	Currency         string     `gorm:"size:3;not null" json:"currency"`
	GatewayOrderID   string     `gorm:"size:64;uniqueIndex;not null" json:"gateway_order_id"`
	GatewayPaymentID string     `gorm:"size:64" json:"gateway_payment_id,omitempty"`
	Status           string     `gorm:"size:20;not null;index" json:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (TopUp) TableName() string { return "wallet_topups" }
