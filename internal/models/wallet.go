package models

import (
	"time"
)

// Wallet is the per-user ledger account. Version increases by one on every
// applied posting and is the compare-and-set guard for concurrent writers.
type Wallet struct {
	ID                      uint      `gorm:"primaryKey" json:"id"`
	UserID                  uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents            int64     `gorm:"not null;default:0" json:"balance_cents"`
	TotalEarnedCents        int64     `gorm:"not null;default:0" json:"total_earned_cents"`
	TotalWithdrawnCents     int64     `gorm:"not null;default:0" json:"total_withdrawn_cents"`
	PendingWithdrawalsCents int64     `gorm:"not null;default:0" json:"pending_withdrawals_cents"`
	TotalTopUpCents         int64     `gorm:"column:total_topup_cents;not null;default:0" json:"total_topup_cents"`
	Currency                string    `gorm:"size:3;not null" json:"currency"`
	Version                 int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Consistent checks balance + pending + withdrawn <= earned + topups.
func (w *Wallet) Consistent() bool {
	return w.BalanceCents >= 0 && w.PendingWithdrawalsCents >= 0 &&
		w.BalanceCents+w.PendingWithdrawalsCents+w.TotalWithdrawnCents <= w.TotalEarnedCents+w.TotalTopUpCents
}
