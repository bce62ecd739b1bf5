package models

import (
	"time"
)

// PaymentDetails holds the payout destination; which fields apply depends on the method.
type PaymentDetails struct {
	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
	UPIID         string `json:"upi_id,omitempty"`
	PayPalEmail   string `json:"paypal_email,omitempty"`
}

type WithdrawRequest struct {
	ID                 uint           `gorm:"primaryKey" json:"-"`
	RequestID          string         `gorm:"size:32;uniqueIndex;not null" json:"request_id"`
	UserID             uint           `gorm:"not null;index:idx_withdraw_user_status" json:"user_id"`
	AmountCents        int64          `gorm:"not null" json:"amount_cents"`
	ProcessingFeeCents int64          `gorm:"not null" json:"processing_fee_cents"`
	NetAmountCents     int64          `gorm:"not null" json:"net_amount_cents"`
	PaymentMethod      string         `gorm:"size:20;not null" json:"payment_method"`
	PaymentDetails     PaymentDetails `gorm:"type:text;serializer:json" json:"payment_details"`
	Status             string         `gorm:"size:20;not null;index:idx_withdraw_user_status" json:"status"`
	ApprovedBy         *uint          `json:"approved_by,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`
	TransactionID      string         `gorm:"size:64" json:"transaction_id,omitempty"`
	FailureReason      string         `gorm:"size:512" json:"failure_reason,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

func (WithdrawRequest) TableName() string {
	return "withdraw_requests"
}

// InFlight reports whether the request still blocks a new one for the same user.
func (w *WithdrawRequest) InFlight() bool {
	return w.Status == "pending" || w.Status == "approved" || w.Status == "processing"
}
