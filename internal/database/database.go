package database

import (
	"errors"
	"fmt"
	"time"

	"skillmint/config"
	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Coupon{},
		&models.CouponRedemption{},
		&models.Order{},
		&models.TopUp{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.AffiliateCommission{},
		&models.WithdrawRequest{},
		&models.Enrollment{},
		&models.ReconcileTask{},
		&models.SystemSetting{},
	)
}

// PlatformReferralCode is the fixed referral code of the house account.
const PlatformReferralCode = "SKL0000MNT"

// SeedPlatformAccount makes sure the house account that receives platform
// earnings exists and returns it.
func SeedPlatformAccount(db *gorm.DB, email string) (*models.User, error) {
	var u models.User
	err := db.Where("email = ?", email).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	u = models.User{
		Email:        email,
		Name:         "SkillMint Platform",
		Role:         domain.RoleAdmin,
		ReferralCode: PlatformReferralCode,
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("seed platform account: %w", err)
	}
	return &u, nil
}

// DefaultCoupons is the launch set of discount codes.
func DefaultCoupons() []models.Coupon {
	maxWelcome := int64(50000)
	return []models.Coupon{
		{Code: "WELCOME10", Type: domain.CouponTypePercentage, Value: 10, MaxDiscountCents: &maxWelcome, IsActive: true},
		{Code: "SAVE20", Type: domain.CouponTypePercentage, Value: 20, MinAmountCents: 50000, IsActive: true},
		{Code: "FLAT100", Type: domain.CouponTypeFixed, Value: 10000, MinAmountCents: 20000, IsActive: true},
	}
}

// SeedCoupons inserts the default coupons that don't already exist.
func SeedCoupons(db *gorm.DB) error {
	for _, c := range DefaultCoupons() {
		var count int64
		if err := db.Model(&models.Coupon{}).Where("code = ?", c.Code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		c := c
		if err := db.Create(&c).Error; err != nil {
			return err
		}
	}
	return nil
}
