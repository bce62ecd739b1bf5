package repository

import (
	"strings"

	"skillmint/internal/models"

	"gorm.io/gorm"
)

type CouponRepository struct {
	db *gorm.DB
}

func NewCouponRepository(db *gorm.DB) *CouponRepository {
	return &CouponRepository{db: db}
}

func (r *CouponRepository) GetByCode(code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CouponRepository) HasRedeemed(couponID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.CouponRedemption{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error
	return count > 0, err
}

// Reserve claims the coupon for orderID. A second claim by the same user fails
// with a duplicate-key error.
func (r *CouponRepository) Reserve(couponID, userID uint, orderID string) error {
	return r.db.Create(&models.CouponRedemption{CouponID: couponID, UserID: userID, OrderID: orderID}).Error
}

// ReleaseForOrder frees the claim held by an order that will never complete.
func (r *CouponRepository) ReleaseForOrder(orderID string) error {
	return r.db.Where("order_id = ?", orderID).Delete(&models.CouponRedemption{}).Error
}

// ReleaseForStatus frees the claims of every order in paymentStatus.
func (r *CouponRepository) ReleaseForStatus(paymentStatus string) (int64, error) {
	orders := r.db.Session(&gorm.Session{NewDB: true}).Model(&models.Order{}).
		Select("order_id").Where("payment_status = ?", paymentStatus)
	res := r.db.Where("order_id IN (?)", orders).Delete(&models.CouponRedemption{})
	return res.RowsAffected, res.Error
}
