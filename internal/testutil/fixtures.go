package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
)

var seq atomic.Int64

// UserOpt tweaks a fixture user before it is stored.
type UserOpt func(*models.User)

func WithRole(role string) UserOpt { return func(u *models.User) { u.Role = role } }

func ReferredBy(ref *models.User) UserOpt {
	return func(u *models.User) { u.ReferredByID = &ref.ID }
}

func Inactive() UserOpt { return func(u *models.User) { u.IsActive = false } }

// CreateUser stores an active student with a unique email and referral code.
func CreateUser(t *testing.T, db *gorm.DB, opts ...UserOpt) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Name:         fmt.Sprintf("User %d", n),
		Role:         domain.RoleStudent,
		ReferralCode: fmt.Sprintf("TST%04XABC", n%0xFFFF),
		IsActive:     true,
	}
	for _, o := range opts {
		o(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateCourse stores a published course priced in minor units.
func CreateCourse(t *testing.T, db *gorm.DB, instructor *models.User, priceCents int64, affiliatePct, instructorPct float64) *models.Course {
	t.Helper()
	c := &models.Course{
		Title:                  fmt.Sprintf("Course %d", seq.Add(1)),
		InstructorID:           instructor.ID,
		PriceCents:             priceCents,
		AffiliateCommissionPct: affiliatePct,
		InstructorSharePct:     instructorPct,
		IsPublished:            true,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}
