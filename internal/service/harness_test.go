package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"skillmint/config"
	"skillmint/internal/database"
	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/internal/testutil"
	"skillmint/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	checkoutSecret = "test_key_secret"
	webhookSecret  = "test_webhook_secret"
)

type harness struct {
	t           *testing.T
	db          *gorm.DB
	gw          *payment.StubGateway
	metrics     *metrics.Metrics
	ledger      *Ledger
	coupons     *CouponService
	commissions *CommissionService
	refunds     *RefundService
	topups      *TopUpService
	orders      *OrderService
	withdrawals *WithdrawalService
	platform    *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	m := metrics.New()
	platform, err := database.SeedPlatformAccount(db, "platform@skillmint.test")
	require.NoError(t, err)
	require.NoError(t, database.SeedCoupons(db))

	gw := payment.NewStubGateway(checkoutSecret, webhookSecret)
	ledger := NewLedger(db, "INR", 5, m, log)
	coupons := NewCouponService(db)
	commissions := NewCommissionService(db, ledger, config.DefaultCommissionLevels(), 30*24*time.Hour, m, log)
	refunds := NewRefundService(db, ledger, commissions, gw, 30*24*time.Hour, platform.ID, log)
	topups := NewTopUpService(db, ledger, gw, "INR", log)
	orders := NewOrderService(db, ledger, coupons, commissions, refunds, topups, gw, nil,
		OrderConfig{Currency: "INR", TTL: 24 * time.Hour, PlatformUserID: platform.ID}, m, log)
	withdrawals := NewWithdrawalService(db, ledger, config.WithdrawalConfig{
		MinCents:    100 * 100,
		MaxCents:    50000 * 100,
		FeePct:      2,
		MinFeeCents: 10 * 100,
	}, m, log)
	return &harness{
		t: t, db: db, gw: gw, metrics: m, ledger: ledger, coupons: coupons, commissions: commissions,
		refunds: refunds, topups: topups, orders: orders, withdrawals: withdrawals, platform: platform,
	}
}

// buyViaGateway creates a gateway order and confirms it with a valid checkout signature.
func (h *harness) buyViaGateway(buyer *models.User, course *models.Course, referralCode string) *models.Order {
	h.t.Helper()
	ctx := context.Background()
	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{
		UserID: buyer.ID, CourseID: course.ID, ReferralCode: referralCode, PaymentMethod: domain.PaymentMethodGateway,
	})
	require.NoError(h.t, err)
	require.NotEmpty(h.t, res.GatewayOrderID)
	paymentID := "pay_" + res.OrderID
	order, err := h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{
		GatewayOrderID: res.GatewayOrderID,
		PaymentID:      paymentID,
		Signature:      payment.SignCheckout(checkoutSecret, res.GatewayOrderID, paymentID),
	})
	require.NoError(h.t, err)
	return order
}

// completedUnfinished stores an order that reached completed with the standard
// split of price but whose downstream effects never ran.
func (h *harness) completedUnfinished(buyer *models.User, course *models.Course, referrer *models.User, plan CommissionPlan) *models.Order {
	h.t.Helper()
	now := time.Now().UTC()
	order := &models.Order{
		OrderID: NewID(domain.PrefixOrder), UserID: buyer.ID, CourseID: course.ID,
		AmountCents: price, FinalAmountCents: price, Currency: "INR",
		PaymentMethod: domain.PaymentMethodGateway, PaymentStatus: domain.PaymentStatusCompleted,
		OrderStatus:              domain.OrderStatusCompleted,
		AffiliateCommissionCents: plan.Total(), InstructorEarningsCents: 70000, PlatformEarningsCents: 30000 - plan.Total(),
		CommissionStatus: domain.OrderCommissionPending, RefundStatus: domain.RefundStatusNone,
		CommissionPlan: plan.encode(), CompletedAt: &now, FinalizeError: "instructor credit: wallet is busy, retry",
	}
	if referrer != nil {
		order.ReferralUsedID = &referrer.ID
	}
	require.NoError(h.t, h.db.Create(order).Error)
	require.NoError(h.t, repository.NewReconcileRepository(h.db).Record(domain.ReconcileKindOrderFinalize, order.OrderID, "wallet is busy"))
	return order
}

func (h *harness) fund(u *models.User, cents int64) {
	h.t.Helper()
	_, err := h.ledger.Credit(context.Background(), u.ID, cents, "seed", models.Reference{Type: domain.RefCorrection, ID: "seed"}, AsEarning())
	require.NoError(h.t, err)
}

func (h *harness) balance(u *models.User) int64 {
	h.t.Helper()
	s, err := h.ledger.Summary(context.Background(), u.ID)
	require.NoError(h.t, err)
	return s.BalanceCents
}

func (h *harness) wallet(u *models.User) *models.Wallet {
	h.t.Helper()
	w, err := repository.NewWalletRepository(h.db).GetByUserID(u.ID)
	require.NoError(h.t, err)
	return w
}

func (h *harness) commissionsFor(orderID string) []models.AffiliateCommission {
	h.t.Helper()
	list, err := repository.NewCommissionRepository(h.db).ListByOrder(orderID)
	require.NoError(h.t, err)
	return list
}

func webhookBody(t *testing.T, event, gatewayOrderID, paymentID string, amount int64) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"event": event,
		"payload": map[string]any{
			"payment": map[string]any{
				"entity": map[string]any{
					"id": paymentID, "order_id": gatewayOrderID, "amount": amount, "currency": "INR",
					"status": "captured", "captured": true,
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

// assertLedgerInvariants checks every wallet against its transaction history.
func assertLedgerInvariants(t *testing.T, db *gorm.DB) {
	t.Helper()
	var wallets []models.Wallet
	require.NoError(t, db.Find(&wallets).Error)
	for _, w := range wallets {
		var txs []models.WalletTransaction
		require.NoError(t, db.Where("wallet_id = ?", w.ID).Order("sequence ASC").Find(&txs).Error)
		var sum, prevSeq int64
		for _, tx := range txs {
			sum += tx.SignedAmount()
			assert.Equal(t, sum, tx.BalanceAfterCents, "wallet %d seq %d running balance", w.ID, tx.Sequence)
			assert.GreaterOrEqual(t, tx.BalanceAfterCents, int64(0), "wallet %d went negative", w.ID)
			assert.Greater(t, tx.Sequence, prevSeq, "wallet %d sequence not increasing", w.ID)
			assert.Greater(t, tx.AmountCents, int64(0))
			prevSeq = tx.Sequence
		}
		assert.Equal(t, sum, w.BalanceCents, "wallet %d balance vs history", w.ID)
		assert.True(t, w.Consistent(), "wallet %d counters inconsistent: %+v", w.ID, w)
	}

	var completed []models.Order
	require.NoError(t, db.Where("payment_status = ?", domain.PaymentStatusCompleted).Find(&completed).Error)
	for _, o := range completed {
		assert.Equal(t, o.FinalAmountCents, o.SplitTotal(), "order %s split", o.OrderID)
		if o.ReferralUsedID != nil {
			assert.NotEqual(t, o.UserID, *o.ReferralUsedID, "order %s self-referral", o.OrderID)
		}
	}
}
