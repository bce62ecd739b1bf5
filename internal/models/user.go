package models

import (
	"time"

	"skillmint/internal/domain"

	"gorm.io/gorm"
)

// User carries the identity fields the money subsystem needs. Balances live on Wallet.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string         `gorm:"size:128" json:"name"`
	Role         string         `gorm:"size:20;not null;index" json:"role"`
	ReferralCode string         `gorm:"uniqueIndex;size:10;not null" json:"referral_code"`
	ReferredByID *uint          `gorm:"index" json:"referred_by_id"`
	IsActive     bool           `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

// CanReferOthers reports whether the user may be recorded as a referrer or earn commissions.
func (u *User) CanReferOthers() bool {
	return u.IsActive && domain.CommissionEligibleRoles[u.Role]
}
