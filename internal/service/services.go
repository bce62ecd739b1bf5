package service

import (
	"time"

	"skillmint/config"
	"skillmint/internal/metrics"
	"skillmint/internal/repository"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Services is the wired set of money services shared by the API and the jobs.
type Services struct {
	Ledger      *Ledger
	Coupons     *CouponService
	Commissions *CommissionService
	Refunds     *RefundService
	TopUps      *TopUpService
	Orders      *OrderService
	Withdrawals *WithdrawalService
	Sweeper     *Sweeper
	Reconciler  *Reconciler
}

func NewServices(cfg *config.Config, db *gorm.DB, gw payment.Gateway, dedup repository.WebhookEventCache, platformUserID uint, m *metrics.Metrics, log logrus.FieldLogger) *Services {
	window := time.Duration(cfg.Refund.WindowDays) * 24 * time.Hour
	currency := cfg.Orders.Currency

	ledger := NewLedger(db, currency, cfg.Withdrawal.MaxContention, m, log)
	coupons := NewCouponService(db)
	commissions := NewCommissionService(db, ledger, cfg.Commission.Levels, window, m, log)
	refunds := NewRefundService(db, ledger, commissions, gw, window, platformUserID, log)
	topups := NewTopUpService(db, ledger, gw, currency, log)
	orders := NewOrderService(db, ledger, coupons, commissions, refunds, topups, gw, dedup, OrderConfig{
		Currency:       currency,
		TTL:            cfg.Orders.TTL,
		PlatformUserID: platformUserID,
	}, m, log)
	return &Services{
		Ledger:      ledger,
		Coupons:     coupons,
		Commissions: commissions,
		Refunds:     refunds,
		TopUps:      topups,
		Orders:      orders,
		Withdrawals: NewWithdrawalService(db, ledger, cfg.Withdrawal, m, log),
		Sweeper:     NewSweeper(db, cfg.Orders.TTL, log),
		Reconciler:  NewReconciler(db, orders, m, log),
	}
}
