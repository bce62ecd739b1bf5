package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/internal/testutil"
	"skillmint/pkg/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Course price 1000.00 with a 70% instructor share and 10% affiliate commission.
const (
	price         = int64(100000)
	instructorPct = 70.0
	affiliatePct  = 10.0
)

func TestPurchase_NoReferral(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)

	order := h.buyViaGateway(buyer, course, "")

	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, domain.OrderStatusCompleted, order.OrderStatus)
	assert.Equal(t, int64(70000), order.InstructorEarningsCents)
	assert.Equal(t, int64(30000), order.PlatformEarningsCents)
	assert.Zero(t, order.AffiliateCommissionCents)
	assert.Equal(t, int64(70000), h.balance(instructor))
	assert.Equal(t, int64(30000), h.balance(h.platform))
	assert.Empty(t, h.commissionsFor(order.OrderID))

	enrolled, err := repository.NewEnrollmentRepository(h.db).Exists(buyer.ID, course.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)
	assertLedgerInvariants(t, h.db)
}

func TestPurchase_LevelOneReferral(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	a := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	buyer := testutil.CreateUser(t, h.db, testutil.ReferredBy(a))

	order := h.buyViaGateway(buyer, course, "")

	require.NotNil(t, order.ReferralUsedID)
	assert.Equal(t, a.ID, *order.ReferralUsedID)
	assert.Equal(t, int64(70000), h.balance(instructor))
	assert.Equal(t, int64(20000), h.balance(h.platform))
	list := h.commissionsFor(order.OrderID)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].AffiliateID)
	assert.Equal(t, 1, list[0].Level)
	assert.Equal(t, int64(10000), list[0].CommissionAmountCents)
	assert.Equal(t, domain.CommissionStatusPending, list[0].Status)
	assert.Zero(t, h.balance(a))
	assertLedgerInvariants(t, h.db)
}

func TestPurchase_ThreeLevelChain(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	c := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	b := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate), testutil.ReferredBy(c))
	a := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate), testutil.ReferredBy(b))
	buyer := testutil.CreateUser(t, h.db, testutil.ReferredBy(a))

	order := h.buyViaGateway(buyer, course, "")

	list := h.commissionsFor(order.OrderID)
	require.Len(t, list, 3)
	want := []struct {
		affiliate uint
		amount    int64
	}{{a.ID, 10000}, {b.ID, 5000}, {c.ID, 2000}}
	for i, w := range want {
		assert.Equal(t, i+1, list[i].Level)
		assert.Equal(t, w.affiliate, list[i].AffiliateID)
		assert.Equal(t, w.amount, list[i].CommissionAmountCents)
	}
	assert.Equal(t, int64(70000), order.InstructorEarningsCents)
	assert.Equal(t, int64(17000), order.AffiliateCommissionCents)
	assert.Equal(t, int64(13000), order.PlatformEarningsCents)
	assert.Equal(t, int64(13000), h.balance(h.platform))
	assertLedgerInvariants(t, h.db)
}

func TestWebhook_DuplicateCaptureAppliesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	a := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	buyer := testutil.CreateUser(t, h.db, testutil.ReferredBy(a))

	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)
	body := webhookBody(t, domain.EventPaymentCaptured, res.GatewayOrderID, "pay_1", price)
	sig := payment.SignWebhook(webhookSecret, body)

	first, err := h.orders.HandleWebhook(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, WebhookApplied, first)
	second, err := h.orders.HandleWebhook(ctx, body, sig, "")
	require.NoError(t, err)
	assert.Equal(t, WebhookNoop, second)

	txs, total, err := h.ledger.Transactions(ctx, instructor.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, int64(70000), txs[0].AmountCents)
	assert.Len(t, h.commissionsFor(res.OrderID), 1)

	// a late checkout callback for the same payment is a no-op success
	order, err := h.orders.VerifyCheckout(ctx, buyer.ID, VerifyInput{
		GatewayOrderID: res.GatewayOrderID,
		PaymentID:      "pay_1",
		Signature:      payment.SignCheckout(checkoutSecret, res.GatewayOrderID, "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, int64(70000), h.balance(instructor))
	assertLedgerInvariants(t, h.db)
}

func TestWebhook_ConcurrentCapturesApplyOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	res, err := h.orders.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CourseID: course.ID})
	require.NoError(t, err)
	body := webhookBody(t, domain.EventPaymentCaptured, res.GatewayOrderID, "pay_1", price)
	sig := payment.SignWebhook(webhookSecret, body)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := h.orders.HandleWebhook(ctx, body, sig, "")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if out == WebhookApplied {
				applied++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
	assert.Equal(t, int64(70000), h.balance(instructor))
	assertLedgerInvariants(t, h.db)
}

func TestWithdrawal_HappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	admin := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAdmin))
	h.fund(user, 500000)

	req, err := h.withdrawals.Create(ctx, CreateWithdrawalInput{
		UserID: user.ID, AmountCents: 100000, PaymentMethod: domain.WithdrawMethodUPI,
		PaymentDetails: models.PaymentDetails{UPIID: "asha.rao@okaxis"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), req.ProcessingFeeCents)
	assert.Equal(t, int64(98000), req.NetAmountCents)
	assert.Equal(t, int64(500000), h.balance(user))

	req, err = h.withdrawals.Approve(ctx, admin.ID, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusProcessing, req.Status)
	w := h.wallet(user)
	assert.Equal(t, int64(400000), w.BalanceCents)
	assert.Equal(t, int64(100000), w.PendingWithdrawalsCents)

	req, err = h.withdrawals.Complete(ctx, admin.ID, req.RequestID, "UTR0001")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusCompleted, req.Status)
	assert.Equal(t, "UTR0001", req.TransactionID)
	w = h.wallet(user)
	assert.Zero(t, w.PendingWithdrawalsCents)
	assert.Equal(t, int64(100000), w.TotalWithdrawnCents)
	assert.Equal(t, int64(400000), w.BalanceCents)

	txs, _, err := h.ledger.Transactions(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	var debits []models.WalletTransaction
	for _, tx := range txs {
		if tx.Type == domain.TxTypeDebit {
			debits = append(debits, tx)
		}
	}
	require.Len(t, debits, 1)
	assert.Equal(t, int64(100000), debits[0].AmountCents)
	assert.Equal(t, domain.RefWithdrawal, debits[0].Reference.Type)
	assert.Equal(t, req.RequestID, debits[0].Reference.ID)

	_, err = h.withdrawals.Complete(ctx, admin.ID, req.RequestID, "UTR0002")
	assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)
	assertLedgerInvariants(t, h.db)
}

func TestWithdrawal_RejectAfterApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	h.fund(user, 500000)

	req, err := h.withdrawals.Create(ctx, CreateWithdrawalInput{
		UserID: user.ID, AmountCents: 100000, PaymentMethod: domain.WithdrawMethodUPI,
		PaymentDetails: models.PaymentDetails{UPIID: "asha@okaxis"},
	})
	require.NoError(t, err)
	_, err = h.withdrawals.Approve(ctx, 1, req.RequestID)
	require.NoError(t, err)

	req, err = h.withdrawals.Reject(ctx, 1, req.RequestID, "bank details mismatch")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawStatusRejected, req.Status)
	assert.Equal(t, "bank details mismatch", req.FailureReason)
	w := h.wallet(user)
	assert.Equal(t, int64(500000), w.BalanceCents)
	assert.Zero(t, w.PendingWithdrawalsCents)

	_, err = h.withdrawals.Reject(ctx, 1, req.RequestID, "again")
	assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)
	_, err = h.withdrawals.Approve(ctx, 1, req.RequestID)
	assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)
	assertLedgerInvariants(t, h.db)
}

func TestRefund_WithinWindow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	a := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))
	buyer := testutil.CreateUser(t, h.db, testutil.ReferredBy(a))
	admin := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAdmin))

	order := h.buyViaGateway(buyer, course, "")
	require.NoError(t, h.db.Model(&models.Order{}).Where("order_id = ?", order.OrderID).
		Update("created_at", time.Now().UTC().Add(-10*24*time.Hour)).Error)

	_, err := h.refunds.Request(ctx, buyer.ID, order.OrderID, "not what I expected")
	require.NoError(t, err)
	_, err = h.refunds.Request(ctx, buyer.ID, order.OrderID, "twice")
	assert.ErrorIs(t, err, domain.ErrOrderNotRefundable)

	refunded, err := h.refunds.Approve(ctx, admin.ID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, refunded.PaymentStatus)
	assert.Equal(t, domain.RefundStatusApproved, refunded.RefundStatus)
	assert.NotEmpty(t, refunded.GatewayRefundID)
	assert.Len(t, h.gw.Refunds(), 1)

	for _, c := range h.commissionsFor(order.OrderID) {
		assert.Equal(t, domain.CommissionStatusCancelled, c.Status)
	}
	assert.Zero(t, h.balance(instructor))
	assert.Zero(t, h.balance(h.platform))
	enrolled, err := repository.NewEnrollmentRepository(h.db).Exists(buyer.ID, course.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)

	// refunded is terminal for the payment pipeline
	_, err = h.refunds.Approve(ctx, admin.ID, order.OrderID)
	assert.ErrorIs(t, err, domain.ErrIllegalStateTransition)
	assertLedgerInvariants(t, h.db)
}

func TestRefund_OutsideWindowRejected(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	order := h.buyViaGateway(buyer, course, "")
	require.NoError(t, h.db.Model(&models.Order{}).Where("order_id = ?", order.OrderID).
		Update("created_at", time.Now().UTC().Add(-31*24*time.Hour)).Error)

	_, err := h.refunds.Request(context.Background(), buyer.ID, order.OrderID, "late")
	assert.ErrorIs(t, err, domain.ErrOrderNotRefundable)
}

func TestCreateOrder_SelfReferralRejectedBeforeWrite(t *testing.T) {
	h := newHarness(t)
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleAffiliate))

	_, err := h.orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID: buyer.ID, CourseID: course.ID, ReferralCode: buyer.ReferralCode,
	})
	assert.ErrorIs(t, err, domain.ErrSelfReferral)

	var count int64
	require.NoError(t, h.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRefund_ReversesOnlyPostedEarnings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.fund(instructor, price)
	h.fund(h.platform, 50000)

	// the instructor credit landed before finalization stalled; the platform's did not
	order := h.completedUnfinished(buyer, course, nil, nil)
	_, err := h.ledger.Credit(ctx, instructor.ID, 70000, "Course sale", models.Reference{Type: domain.RefCoursePurchase, ID: order.OrderID},
		WithIdempotencyKey("order:"+order.OrderID+":instructor"), AsEarning())
	require.NoError(t, err)

	_, err = h.refunds.Request(ctx, buyer.ID, order.OrderID, "not what I expected")
	require.NoError(t, err)
	got, err := h.refunds.Approve(ctx, h.platform.ID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, price, h.balance(instructor), "only the posted credit is reversed")
	assert.Equal(t, int64(50000), h.balance(h.platform), "unrelated platform funds are untouched")

	_, err = NewReconciler(h.db, h.orders, h.metrics, testutil.Logger()).Run(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, price, h.balance(instructor))
	assert.Equal(t, int64(50000), h.balance(h.platform))
	assertLedgerInvariants(t, h.db)
}

func TestRefund_NeverCreditedOrderMovesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, h.db, testutil.WithRole(domain.RoleInstructor))
	course := testutil.CreateCourse(t, h.db, instructor, price, affiliatePct, instructorPct)
	buyer := testutil.CreateUser(t, h.db)
	h.fund(instructor, price)

	order := h.completedUnfinished(buyer, course, nil, nil)
	_, err := h.refunds.Request(ctx, buyer.ID, order.OrderID, "duplicate purchase")
	require.NoError(t, err)
	_, err = h.refunds.Approve(ctx, h.platform.ID, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, price, h.balance(instructor))
}
