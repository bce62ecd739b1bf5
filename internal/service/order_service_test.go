package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/internal/testutil"
	"skillmint/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSplit(t *testing.T) {
	course := &models.Course{InstructorSharePct: 70}
	tests := []struct {
		name     string
		final    int64
		plan     CommissionPlan
		want     Split
		wantPlan []int64
	}{
		{"no plan", 100000, nil, Split{0, 70000, 30000}, nil},
		{"one level", 100000, CommissionPlan{{Level: 1, AmountCents: 10000}}, Split{10000, 70000, 20000}, []int64{10000}},
		{
			"deepest level trimmed first",
			1000,
			CommissionPlan{{Level: 1, AmountCents: 200}, {Level: 2, AmountCents: 100}, {Level: 3, AmountCents: 50}},
			Split{300, 700, 0},
			[]int64{200, 100},
		},
		{"rounds half up", 1005, nil, Split{0, 704, 301}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, plan := ComputeSplit(tt.final, course, tt.plan)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.final, got.AffiliateCents+got.InstructorCents+got.PlatformCents)
			var amounts []int64
			for _, p := range plan {
				amounts = append(amounts, p.AmountCents)
			}
			assert.Equal(t, tt.wantPlan, amounts)
		})
	}
}

func TestCreateOrder_WalletPathInsufficientFundsWritesNothing(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.fund(buyer, price-1)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID: buyer.ID, CourseID: course.ID, PaymentMethod: domain.PaymentMethodWallet,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, price-1, h.balance(buyer))
	assert.Zero(t, h.balance(instructor))
}

func TestCreateOrder_WalletPathSettlesImmediately(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.fund(buyer, price)

	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{
		UserID: buyer.ID, CourseID: course.ID, PaymentMethod: domain.PaymentMethodWallet,
	})
	require.NoError(t, err)
	assert.Empty(t, res.GatewayOrderID)
	assert.Equal(t, domain.PaymentStatusCompleted, res.Order.PaymentStatus)
	assert.Zero(t, h.balance(buyer))
	assert.Equal(t, int64(70000), h.balance(instructor))

	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, PaymentMethod: domain.PaymentMethodWallet})
	assert.ErrorIs(t, err, domain.ErrAlreadyEnrolled)

	// a wallet-paid refund goes back to the buyer's wallet
	_, err = h.refunds.Request(ctx, buyer.ID, res.OrderID, "changed my mind")
	require.NoError(t, err)
	_, err = h.refunds.Approve(ctx, 1, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, price, h.balance(buyer))
	assert.Empty(t, h.gw.Refunds())
	assertLedgerInvariants(t, h.db)
}

func TestCreateOrder_CouponAndFreeOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, CouponCode: "welcome10"})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.DiscountCents)
	assert.Equal(t, int64(90000), res.FinalAmountCents)
	assert.Equal(t, "WELCOME10", res.Order.CouponCode)

	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, CouponCode: "NOPE"})
	assert.ErrorIs(t, err, domain.ErrCouponInvalid)

	cheap := testutil.CreateCourse(t, h.db, instructor, 8000, affiliatePct, instructorPct)
	free, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: cheap.ID, CouponCode: "FLAT100"})
	assert.ErrorIs(t, err, domain.ErrCouponInvalid, "below the coupon minimum")
	assert.Nil(t, free)

	zero := testutil.CreateCourse(t, h.db, instructor, 0, affiliatePct, instructorPct)
	free, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: zero.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, free.Order.PaymentStatus)
	enrolled, err := repository.NewEnrollmentRepository(h.db).Exists(buyer.ID, zero.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
}

func TestCreateOrder_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	student := testutil.CreateUser(t, h.db)

	_, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: instructor.ID, CourseID: course.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: 9999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, ReferralCode: "ZZZ9999ZZZ"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, ReferralCode: student.ReferralCode})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "students cannot refer")
	_, err = h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID, PaymentMethod: "cash"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateOrder_InactiveReferrerOnProfileIgnored(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	gone := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate), testutil.Inactive())
	buyer := testutil.CreateUser(t, h.db, testutil.ReferredBy(gone))

	order := h.buyViaGateway(buyer, course, "")
	assert.Nil(t, order.ReferralUsedID)
	assert.Equal(t, int64(30000), h.balance(h.platform))
}

func TestCreateOrder_GatewayFailureLeavesPendingOrder(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.gw.FailCreate = fmt.Errorf("%w: connection refused", payment.ErrUnavailable)

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)

	var orders []models.Order
	require.NoError(t, h.db.Find(&orders).Error)
	require.Len(t, orders, 1)
	assert.Equal(t, domain.PaymentStatusPending, orders[0].PaymentStatus)
	assert.Nil(t, orders[0].GatewayOrderID)

	h.gw.FailCreate = payment.ErrTimeout
	_, err = h.orders.CreateOrder(context.Background(), CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	assert.ErrorIs(t, err, domain.ErrGatewayTimeout)
}

func TestVerifyCheckout_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	other := testutil.CreateUser(t, h.db)
	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)

	_, err = h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{GatewayOrderID: res.GatewayOrderID, PaymentID: "pay_1", Signature: "deadbeef"})
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	good := payment.SignCheckout(checkoutSecret, res.GatewayOrderID, "pay_1")
	_, err = h.orders.VerifyCheckout(ctx, other.ID, VerifyInput{GatewayOrderID: res.GatewayOrderID, PaymentID: "pay_1", Signature: good})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{GatewayOrderID: "order_missing", PaymentID: "pay_1", Signature: good})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	order, err := h.orders.GetOrder(ctx, buyer.ID, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Zero(t, h.balance(instructor))
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)

	cancelled, err := h.orders.CancelOrder(ctx, buyer.ID, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, cancelled.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.OrderStatus)

	_, err = h.orders.CancelOrder(ctx, buyer.ID, res.OrderID)
	assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)

	// a capture arriving after cancellation is acknowledged and ignored
	body := webhookBody(t, domain.EventPaymentCaptured, res.GatewayOrderID, "pay_late", price)
	out, err := h.orders.HandleWebhook(ctx, body, payment.SignWebhook(webhookSecret, body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookNoop, out)
	assert.Zero(t, h.balance(instructor))
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	buyer := testutil.CreateUser(t, h.db)
	for i := 0; i < 3; i++ {
		h.buyViaGateway(buyer, testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct), "")
	}
	list, total, err := h.orders.ListOrders(context.Background(), buyer.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 2)
}

func TestWebhook_SignatureAndUnknownEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	body := webhookBody(t, domain.EventPaymentCaptured, "order_none", "pay_1", price)

	_, err := h.orders.HandleWebhook(ctx, body, "bad", "")
	assert.ErrorIs(t, err, domain.ErrSignatureMismatch)

	out, err := h.orders.HandleWebhook(ctx, body, payment.SignWebhook(webhookSecret, body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, out)

	other := webhookBody(t, "subscription.charged", "order_none", "pay_1", price)
	out, err = h.orders.HandleWebhook(ctx, other, payment.SignWebhook(webhookSecret, other), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, out)

	junk := []byte("{not json")
	_, err = h.orders.HandleWebhook(ctx, junk, payment.SignWebhook(webhookSecret, junk), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestWebhook_PaymentFailed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)

	body := webhookBody(t, domain.EventPaymentFailed, res.GatewayOrderID, "pay_x", price)
	out, err := h.orders.HandleWebhook(ctx, body, payment.SignWebhook(webhookSecret, body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)

	order, err := h.orders.GetOrder(ctx, buyer.ID, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCancelled, order.OrderStatus)

	out, err = h.orders.HandleWebhook(ctx, body, payment.SignWebhook(webhookSecret, body), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookNoop, out)
}

func TestWebhook_RefundProcessed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	order := h.buyViaGateway(buyer, course, "")

	body, err := json.Marshal(map[string]any{
		"event": domain.EventRefundProcessed,
		"payload": map[string]any{
			"refund": map[string]any{"entity": map[string]any{
				"id": "rfnd_gw1", "payment_id": order.GatewayPaymentID, "amount": price, "status": "processed",
			}},
		},
	})
	require.NoError(t, err)
	out, err := h.orders.HandleWebhook(ctx, body, payment.SignWebhook(webhookSecret, body), "evt_r1")
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)

	got, err := h.orders.GetOrder(ctx, buyer.ID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, "rfnd_gw1", got.GatewayRefundID)
	assert.Zero(t, h.balance(instructor))
	assert.Empty(t, h.gw.Refunds(), "gateway-initiated refunds are not re-sent")
	assertLedgerInvariants(t, h.db)
}

type seenCache struct{ released []string }

func (c *seenCache) Claim(ctx context.Context, id string) (bool, error) { return false, nil }
func (c *seenCache) Release(ctx context.Context, id string) error {
	c.released = append(c.released, id)
	return nil
}

func TestWebhook_DedupCacheShortCircuits(t *testing.T) {
	h := newHarness(t)
	cache := &seenCache{}
	h.orders.dedup = cache
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	res, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)

	body := webhookBody(t, domain.EventPaymentCaptured, res.GatewayOrderID, "pay_1", price)
	out, err := h.orders.HandleWebhook(context.Background(), body, payment.SignWebhook(webhookSecret, body), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, WebhookDuplicate, out)
	assert.Zero(t, h.balance(instructor))
}

func TestWebhook_TopUpLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, h.db)

	_, err := h.topups.Create(ctx, user.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	co, err := h.topups.Create(ctx, user.ID, 25000)
	require.NoError(t, err)
	assert.Equal(t, "rzp_test_stub", co.Key)
	body := webhookBody(t, domain.EventPaymentCaptured, co.GatewayOrderID, "pay_t1", 25000)
	sig := payment.SignWebhook(webhookSecret, body)

	out, err := h.orders.HandleWebhook(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)
	out, err = h.orders.HandleWebhook(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, WebhookNoop, out)

	topup, err := h.topups.Verify(ctx, user.ID, VerifyInput{
		GatewayOrderID: co.GatewayOrderID, PaymentID: "pay_t1",
		Signature: payment.SignCheckout(checkoutSecret, co.GatewayOrderID, "pay_t1"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TopUpStatusCompleted, topup.Status)

	w := h.wallet(user)
	assert.Equal(t, int64(25000), w.BalanceCents)
	assert.Equal(t, int64(25000), w.TotalTopUpCents)
	assert.Zero(t, w.TotalEarnedCents)

	failed, err := h.topups.Create(ctx, user.ID, 1000)
	require.NoError(t, err)
	fb := webhookBody(t, domain.EventPaymentFailed, failed.GatewayOrderID, "pay_t2", 1000)
	out, err = h.orders.HandleWebhook(ctx, fb, payment.SignWebhook(webhookSecret, fb), "")
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, out)
	assert.Equal(t, int64(25000), h.balance(user))
	assertLedgerInvariants(t, h.db)
}
