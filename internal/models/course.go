package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

type Course struct {
	ID                     uint           `gorm:"primaryKey" json:"id"`
	Title                  string         `gorm:"size:255;not null" json:"title"`
	InstructorID           uint           `gorm:"not null;index" json:"instructor_id"`
	PriceCents             int64          `gorm:"not null;default:0" json:"price_cents"`
	AffiliateCommissionPct float64        `gorm:"not null;default:0" json:"affiliate_commission_pct"`
	InstructorSharePct     float64        `gorm:"not null;default:0" json:"instructor_share_pct"`
	IsPublished            bool           `gorm:"not null;default:false" json:"is_published"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Course) TableName() string { return "courses" }

// Validate checks price and revenue percentages; the platform earns whatever is left.
func (c *Course) Validate() error {
	if c.PriceCents < 0 {
		return fmt.Errorf("course price must not be negative")
	}
	if c.AffiliateCommissionPct < 0 || c.AffiliateCommissionPct > 50 {
		return fmt.Errorf("affiliate commission %.2f%% out of range 0-50", c.AffiliateCommissionPct)
	}
	if c.InstructorSharePct < 0 || c.InstructorSharePct > 100 {
		return fmt.Errorf("instructor share %.2f%% out of range 0-100", c.InstructorSharePct)
	}
	if c.AffiliateCommissionPct+c.InstructorSharePct > 100 {
		return fmt.Errorf("affiliate and instructor shares exceed 100%%")
	}
	return nil
}

// BeforeSave keeps invalid percentages out of the store.
func (c *Course) BeforeSave(tx *gorm.DB) error {
	return c.Validate()
}
