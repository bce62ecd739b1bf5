package models

import (
	"time"
)

// Reference is the tagged link from a ledger entry to what caused it.
type Reference struct {
	Type string `gorm:"size:30;not null;index" json:"reference_type"`
	ID   string `gorm:"size:64;index" json:"reference_id"`
}

// WalletTransaction is an append-only ledger entry. Rows are never updated;
// corrections are new entries with reference type "correction".
type WalletTransaction struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	TransactionID     string    `gorm:"size:32;uniqueIndex;not null" json:"transaction_id"`
	UserID            uint      `gorm:"not null;index" json:"user_id"`
	WalletID          uint      `gorm:"not null;uniqueIndex:idx_wallet_sequence" json:"wallet_id"`
	Sequence          int64     `gorm:"not null;uniqueIndex:idx_wallet_sequence" json:"sequence"`
	Type              string    `gorm:"size:10;not null;index" json:"type"`
	AmountCents       int64     `gorm:"not null" json:"amount_cents"`
	BalanceAfterCents int64     `gorm:"not null" json:"balance_after_cents"`
	Description       string    `gorm:"size:255" json:"description"`
	Reference         Reference `gorm:"embedded;embeddedPrefix:reference_" json:"reference"`
	IdempotencyKey    *string   `gorm:"size:128;uniqueIndex" json:"-"`
	Status            string    `gorm:"size:20;not null" json:"status"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

func (WalletTransaction) TableName() string {
	return "wallet_transactions"
}

// SignedAmount is positive for credits and negative for debits.
func (t *WalletTransaction) SignedAmount() int64 {
	if t.Type == "debit" {
		return -t.AmountCents
	}
	return t.AmountCents
}
