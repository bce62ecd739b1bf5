package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/internal/testutil"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCreateOrder_CouponClaimedOncePerUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	first := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	second := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	open, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: first.ID, CouponCode: "WELCOME10"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), open.DiscountCents)

	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: second.ID, CouponCode: "WELCOME10"})
	assert.ErrorIs(t, err, domain.ErrCouponInvalid, "coupon held by an open order")

	h.fund(buyer, price)
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{
		UserID: buyer.ID, CourseID: second.ID, CouponCode: "WELCOME10", PaymentMethod: domain.PaymentMethodWallet,
	})
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)
	assert.Equal(t, price, h.balance(buyer), "rejected wallet purchase debits nothing")

	_, err = h.orders.CancelOrder(ctx, buyer.ID, open.OrderID)
	require.NoError(t, err)
	again, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: second.ID, CouponCode: "WELCOME10"})
	require.NoError(t, err, "cancelling frees the coupon")
	assert.Equal(t, int64(90000), again.FinalAmountCents)
}

func TestSweeper_ReleasesCouponOfExpiredOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	stale, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, CouponCode: "SAVE20"})
	require.NoError(t, err)
	old := time.Now().UTC().Add(-25 * time.Hour)
	require.NoError(t, h.db.Model(&models.Order{}).Where("order_id = ?", stale.OrderID).Update("created_at", old).Error)

	_, _, err = NewSweeper(h.db, 24*time.Hour, testutil.Logger()).SweepExpired(ctx, time.Now().UTC())
	require.NoError(t, err)

	coupon, err := repository.NewCouponRepository(h.db).GetByCode("SAVE20")
	require.NoError(t, err)
	used, err := repository.NewCouponRepository(h.db).HasRedeemed(coupon.ID, buyer.ID)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestCompletedOrder_KeepsCouponRedeemed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	other := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.fund(buyer, price)

	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{
		UserID: buyer.ID, CourseID: course.ID, CouponCode: "FLAT100", PaymentMethod: domain.PaymentMethodWallet,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Order.PaymentStatus)

	_, _, err = NewSweeper(h.db, 24*time.Hour, testutil.Logger()).SweepExpired(ctx, time.Now().UTC().Add(48*time.Hour))
	require.NoError(t, err)
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: other.ID, CouponCode: "FLAT100"})
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)
}

func TestVerifyCheckout_CrossChecksProcessorRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)
	h.gw.SetPayment(payment.PaymentInfo{ID: "pay_short", OrderID: res.GatewayOrderID, AmountCents: 100, Status: "captured", Captured: true})
	_, err = h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{
		GatewayOrderID: res.GatewayOrderID,
		PaymentID:      "pay_short",
		Signature:      payment.SignCheckout(checkoutSecret, res.GatewayOrderID, "pay_short"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	got, err := h.orders.GetOrder(ctx, buyer.ID, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)

	h.gw.SetPayment(payment.PaymentInfo{ID: "pay_full", OrderID: res.GatewayOrderID, AmountCents: price, Status: "captured", Captured: true})
	done, err := h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{
		GatewayOrderID: res.GatewayOrderID,
		PaymentID:      "pay_full",
		Signature:      payment.SignCheckout(checkoutSecret, res.GatewayOrderID, "pay_full"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, done.PaymentStatus)
}

func TestAfterCompletion_LogsUnrecordedFinalizeError(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	// every order update after completion fails
	require.NoError(t, h.db.Callback().Update().Before("gorm:update").Register("test:fail_order_updates", func(db *gorm.DB) {
		if db.Statement.Table == "orders" {
			_ = db.AddError(errors.New("disk full"))
		}
	}))
	logger, hook := logtest.NewNullLogger()
	h.orders.log = logger

	order := &models.Order{OrderID: NewID(domain.PrefixOrder), UserID: buyer.ID, CourseID: course.ID}
	h.orders.afterCompletion(context.Background(), order, course, nil)

	var messages []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel {
			messages = append(messages, e.Message)
		}
	}
	assert.Contains(t, messages, "failed to record finalize error")
	task, err := repository.NewReconcileRepository(h.db).Get(domain.ReconcileKindOrderFinalize, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReconcileStatusPending, task.Status)
}
