package service

import (
	"context"
	"strings"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"

	"gorm.io/gorm"
)

type CouponService struct {
	db *gorm.DB
}

func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db}
}

// Discount computes the coupon discount for amountCents without checking who uses it.
func Discount(c *models.Coupon, amountCents int64) int64 {
	var d int64
	switch c.Type {
	case domain.CouponTypePercentage:
		d = percentOf(amountCents, c.Value)
		if c.MaxDiscountCents != nil && d > *c.MaxDiscountCents {
			d = *c.MaxDiscountCents
		}
	case domain.CouponTypeFixed:
		d = int64(c.Value)
	}
	if d > amountCents {
		d = amountCents
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Resolve validates code for the user and returns the coupon and its discount.
// An empty code resolves to no coupon.
func (s *CouponService) Resolve(ctx context.Context, code string, userID uint, amountCents int64) (*models.Coupon, int64, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, 0, nil
	}
	repo := repository.NewCouponRepository(s.db.WithContext(ctx))
	c, err := repo.GetByCode(code)
	if repository.IsNotFound(err) {
		return nil, 0, domain.Errorf(domain.ErrCouponInvalid, "coupon %s does not exist", code)
	}
	if err != nil {
		return nil, 0, err
	}
	if !c.IsActive {
		return nil, 0, domain.Errorf(domain.ErrCouponInvalid, "coupon %s is not active", code)
	}
	if c.ExpiresAt != nil && time.Now().UTC().After(*c.ExpiresAt) {
		return nil, 0, domain.Errorf(domain.ErrCouponInvalid, "coupon %s has expired", code)
	}
	if amountCents < c.MinAmountCents {
		return nil, 0, domain.Errorf(domain.ErrCouponInvalid, "coupon %s needs a minimum order of %d", code, c.MinAmountCents)
	}
	used, err := repo.HasRedeemed(c.ID, userID)
	if err != nil {
		return nil, 0, err
	}
	if used {
		return nil, 0, domain.Errorf(domain.ErrCouponInvalid, "coupon %s was already used", code)
	}
	return c, Discount(c, amountCents), nil
}
