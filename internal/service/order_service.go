package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/metrics"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Split is the revenue snapshot stored on a completed order.
type Split struct {
	AffiliateCents  int64
	InstructorCents int64
	PlatformCents   int64
}

// ComputeSplit divides finalCents between instructor, affiliates and the
// platform. Commissions are trimmed so the platform share is never negative;
// the platform takes the remainder so the three parts always sum to finalCents.
func ComputeSplit(finalCents int64, course *models.Course, plan CommissionPlan) (Split, CommissionPlan) {
	instructor := percentOf(finalCents, course.InstructorSharePct)
	if instructor > finalCents {
		instructor = finalCents
	}
	plan = plan.truncate(finalCents - instructor)
	affiliate := plan.Total()
	return Split{
		AffiliateCents:  affiliate,
		InstructorCents: instructor,
		PlatformCents:   finalCents - instructor - affiliate,
	}, plan
}

type OrderConfig struct {
	Currency       string
	TTL            time.Duration
	PlatformUserID uint
}

// OrderService runs the purchase pipeline: order creation, payment
// confirmation, and the finalization that moves money to earners.
type OrderService struct {
	db          *gorm.DB
	ledger      *Ledger
	coupons     *CouponService
	commissions *CommissionService
	refunds     *RefundService
	topups      *TopUpService
	gateway     payment.Gateway
	dedup       repository.WebhookEventCache
	cfg         OrderConfig
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

func NewOrderService(
	db *gorm.DB,
	ledger *Ledger,
	coupons *CouponService,
	commissions *CommissionService,
	refunds *RefundService,
	topups *TopUpService,
	gw payment.Gateway,
	dedup repository.WebhookEventCache,
	cfg OrderConfig,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *OrderService {
	if dedup == nil {
		dedup = repository.NopWebhookCache{}
	}
	return &OrderService{
		db:          db,
		ledger:      ledger,
		coupons:     coupons,
		commissions: commissions,
		refunds:     refunds,
		topups:      topups,
		gateway:     gw,
		dedup:       dedup,
		cfg:         cfg,
		metrics:     m,
		log:         log.WithField("component", "orders"),
	}
}

type CreateOrderInput struct {
	UserID        uint
	CourseID      uint
	ReferralCode  string
	CouponCode    string
	PaymentMethod string
	IPAddress     string
	UserAgent     string
}

type CheckoutResult struct {
	OrderID          string        `json:"order_id"`
	GatewayOrderID   string        `json:"gateway_order_id,omitempty"`
	AmountCents      int64         `json:"amount_cents"`
	DiscountCents    int64         `json:"discount_cents"`
	FinalAmountCents int64         `json:"final_amount_cents"`
	Currency         string        `json:"currency"`
	Key              string        `json:"key,omitempty"`
	Order            *models.Order `json:"order"`
}

type VerifyInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CheckoutResult, error) {
	if in.PaymentMethod == "" {
		in.PaymentMethod = domain.PaymentMethodGateway
	}
	if in.PaymentMethod != domain.PaymentMethodGateway && in.PaymentMethod != domain.PaymentMethodWallet {
		return nil, domain.Errorf(domain.ErrInvalidInput, "payment method must be gateway or wallet")
	}
	db := s.db.WithContext(ctx)
	buyer, err := repository.NewUserRepository(db).GetByID(in.UserID)
	if repository.IsNotFound(err) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !buyer.IsActive {
		return nil, domain.Errorf(domain.ErrForbidden, "account is not active")
	}
	course, err := repository.NewCourseRepository(db).GetByID(in.CourseID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "course %d not found", in.CourseID)
	}
	if err != nil {
		return nil, err
	}
	if !course.IsPublished {
		return nil, domain.Errorf(domain.ErrInvalidInput, "course is not available for purchase")
	}
	if course.InstructorID == buyer.ID {
		return nil, domain.Errorf(domain.ErrInvalidInput, "you cannot buy your own course")
	}
	enrolled, err := repository.NewEnrollmentRepository(db).Exists(buyer.ID, course.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, domain.ErrAlreadyEnrolled
	}
	coupon, discount, err := s.coupons.Resolve(ctx, in.CouponCode, buyer.ID, course.PriceCents)
	if err != nil {
		return nil, err
	}
	referrerID, err := s.resolveReferrer(ctx, buyer, in.ReferralCode)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderID:          NewID(domain.PrefixOrder),
		UserID:           buyer.ID,
		CourseID:         course.ID,
		AmountCents:      course.PriceCents,
		DiscountCents:    discount,
		FinalAmountCents: course.PriceCents - discount,
		Currency:         s.cfg.Currency,
		PaymentMethod:    in.PaymentMethod,
		PaymentStatus:    domain.PaymentStatusPending,
		OrderStatus:      domain.OrderStatusPending,
		ReferralUsedID:   referrerID,
		CommissionStatus: domain.OrderCommissionPending,
		RefundStatus:     domain.RefundStatusNone,
		IPAddress:        in.IPAddress,
		UserAgent:        truncate(in.UserAgent, 512),
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}
	log := s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "user_id": buyer.ID, "course_id": course.ID})

	if in.PaymentMethod == domain.PaymentMethodWallet || order.FinalAmountCents == 0 {
		done, err := s.purchaseDirect(ctx, order, course, coupon)
		if err != nil {
			return nil, err
		}
		log.WithField("final_amount_cents", done.FinalAmountCents).Info("order paid without gateway")
		return s.checkoutResult(done, ""), nil
	}

	orders := repository.NewOrderRepository(db)
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := repository.NewOrderRepository(tx).Create(order); err != nil {
			return err
		}
		return reserveCoupon(tx, coupon, order)
	})
	if err != nil {
		return nil, err
	}
	gwOrder, err := s.gateway.CreateOrder(ctx, order.FinalAmountCents, order.Currency, order.OrderID)
	if err != nil {
		// the order stays pending and the sweeper fails it after the TTL
		log.WithError(err).Warn("gateway order creation failed")
		return nil, gatewayError(err)
	}
	order.GatewayOrderID = &gwOrder.ID
	if err := orders.SetFields(order.OrderID, map[string]interface{}{"gateway_order_id": gwOrder.ID}); err != nil {
		return nil, err
	}
	log.WithField("gateway_order_id", gwOrder.ID).Info("order created")
	return s.checkoutResult(order, s.gateway.KeyID()), nil
}

func (s *OrderService) checkoutResult(o *models.Order, key string) *CheckoutResult {
	res := &CheckoutResult{
		OrderID:          o.OrderID,
		AmountCents:      o.AmountCents,
		DiscountCents:    o.DiscountCents,
		FinalAmountCents: o.FinalAmountCents,
		Currency:         o.Currency,
		Key:              key,
		Order:            o,
	}
	if o.GatewayOrderID != nil {
		res.GatewayOrderID = *o.GatewayOrderID
	}
	return res
}

// resolveReferrer picks the referrer recorded on the order: an explicit code
// first, otherwise the buyer's own referrer when still eligible.
func (s *OrderService) resolveReferrer(ctx context.Context, buyer *models.User, code string) (*uint, error) {
	users := repository.NewUserRepository(s.db.WithContext(ctx))
	if code = strings.TrimSpace(code); code != "" {
		ref, err := users.GetByReferralCode(code)
		if repository.IsNotFound(err) {
			return nil, domain.Errorf(domain.ErrInvalidInput, "referral code %s not found", strings.ToUpper(code))
		}
		if err != nil {
			return nil, err
		}
		if ref.ID == buyer.ID {
			return nil, domain.ErrSelfReferral
		}
		if !ref.CanReferOthers() {
			return nil, domain.Errorf(domain.ErrInvalidInput, "referral code %s is not eligible", ref.ReferralCode)
		}
		return &ref.ID, nil
	}
	if buyer.ReferredByID == nil || *buyer.ReferredByID == buyer.ID {
		return nil, nil
	}
	ref, err := users.GetByID(*buyer.ReferredByID)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ref.CanReferOthers() {
		return nil, nil
	}
	return &ref.ID, nil
}

// purchaseDirect pays from the wallet (or settles a free order): the order
// row, the debit and the completion commit together.
func (s *OrderService) purchaseDirect(ctx context.Context, order *models.Order, course *models.Course, coupon *models.Coupon) (*models.Order, error) {
	plan, err := s.commissions.Plan(ctx, order, course)
	if err != nil {
		return nil, err
	}
	split, plan := ComputeSplit(order.FinalAmountCents, course, plan)
	now := time.Now().UTC()

	err = s.ledger.Atomically(ctx, func(tx *gorm.DB) error {
		order.ID = 0
		orders := repository.NewOrderRepository(tx)
		if err := orders.Create(order); err != nil {
			return err
		}
		if err := reserveCoupon(tx, coupon, order); err != nil {
			return err
		}
		if order.FinalAmountCents > 0 {
			_, err := s.ledger.Post(tx, order.UserID, domain.TxTypeDebit, order.FinalAmountCents,
				"Course purchase: "+course.Title,
				models.Reference{Type: domain.RefCoursePurchase, ID: order.OrderID},
				WithIdempotencyKey("order:"+order.OrderID+":purchase"))
			if err != nil {
				return err
			}
		}
		ok, err := orders.Transition(order.OrderID, domain.PaymentStatusPending, completionUpdates(split, plan, now))
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrOrderAlreadyFinalized
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.OrdersFinalized.WithLabelValues(order.PaymentMethod).Inc()
	done, err := repository.NewOrderRepository(s.db.WithContext(ctx)).GetByOrderID(order.OrderID)
	if err != nil {
		return nil, err
	}
	s.afterCompletion(ctx, done, course, plan)
	return done, nil
}

func completionUpdates(split Split, plan CommissionPlan, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"commission_plan":            plan.encode(),
		"payment_status":             domain.PaymentStatusCompleted,
		"order_status":               domain.OrderStatusCompleted,
		"affiliate_commission_cents": split.AffiliateCents,
		"instructor_earnings_cents":  split.InstructorCents,
		"platform_earnings_cents":    split.PlatformCents,
		"completed_at":               now,
	}
}

// VerifyCheckout confirms a gateway payment from the client callback. A
// duplicate confirmation returns the already completed order.
func (s *OrderService) VerifyCheckout(ctx context.Context, userID uint, in VerifyInput) (*models.Order, error) {
	if in.GatewayOrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "gateway order id, payment id and signature are required")
	}
	order, err := repository.NewOrderRepository(s.db.WithContext(ctx)).GetByGatewayOrderID(in.GatewayOrderID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if err := s.gateway.VerifyCheckoutSignature(in.GatewayOrderID, in.PaymentID, in.Signature); err != nil {
		s.log.WithField("order_id", order.OrderID).Warn("checkout signature mismatch")
		return nil, gatewayError(err)
	}
	if err := s.confirmPayment(ctx, order, in); err != nil {
		return nil, err
	}
	done, _, err := s.completeCaptured(ctx, order, in.PaymentID, in.Signature)
	return done, err
}

// confirmPayment cross-checks the processor's record of a signed payment. The
// signature is authoritative, so an unreachable processor only logs.
func (s *OrderService) confirmPayment(ctx context.Context, order *models.Order, in VerifyInput) error {
	log := s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "payment_id": in.PaymentID})
	p, err := s.gateway.FetchPayment(ctx, in.PaymentID)
	if err != nil {
		log.WithError(err).Warn("payment lookup failed, trusting checkout signature")
		return nil
	}
	switch {
	case p.OrderID != "" && p.OrderID != in.GatewayOrderID:
		return domain.Errorf(domain.ErrInvalidInput, "payment %s belongs to another order", in.PaymentID)
	case p.AmountCents != 0 && p.AmountCents != order.FinalAmountCents:
		log.WithFields(logrus.Fields{"paid_cents": p.AmountCents, "due_cents": order.FinalAmountCents}).Warn("payment amount mismatch")
		return domain.Errorf(domain.ErrInvalidInput, "payment amount does not match order %s", order.OrderID)
	case p.Status == "failed":
		return domain.Errorf(domain.ErrInvalidInput, "payment %s failed at the gateway", in.PaymentID)
	}
	return nil
}

// completeCaptured runs the pending -> completed transition for a captured
// gateway payment and then the downstream effects. It reports whether this
// call won the transition.
func (s *OrderService) completeCaptured(ctx context.Context, order *models.Order, paymentID, signature string) (*models.Order, bool, error) {
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	switch order.PaymentStatus {
	case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
		return order, false, nil
	case domain.PaymentStatusPending:
	default:
		s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "payment_id": paymentID, "payment_status": order.PaymentStatus}).
			Warn("captured payment for a closed order")
		return nil, false, domain.Errorf(domain.ErrOrderAlreadyFinalized, "order %s is %s", order.OrderID, order.PaymentStatus)
	}
	course, err := repository.NewCourseRepository(s.db.WithContext(ctx)).GetByID(order.CourseID)
	if err != nil {
		return nil, false, err
	}
	plan, err := s.commissions.Plan(ctx, order, course)
	if err != nil {
		return nil, false, err
	}
	split, plan := ComputeSplit(order.FinalAmountCents, course, plan)
	updates := completionUpdates(split, plan, time.Now().UTC())
	updates["gateway_payment_id"] = paymentID
	if signature != "" {
		updates["gateway_signature"] = signature
	}
	won, err := orders.Transition(order.OrderID, domain.PaymentStatusPending, updates)
	if err != nil {
		return nil, false, err
	}
	done, err := orders.GetByOrderID(order.OrderID)
	if err != nil {
		return nil, false, err
	}
	if !won {
		if done.PaymentStatus == domain.PaymentStatusCompleted || done.PaymentStatus == domain.PaymentStatusRefunded {
			return done, false, nil
		}
		return nil, false, domain.Errorf(domain.ErrOrderAlreadyFinalized, "order %s is %s", done.OrderID, done.PaymentStatus)
	}
	s.metrics.OrdersFinalized.WithLabelValues(done.PaymentMethod).Inc()
	s.afterCompletion(ctx, done, course, plan)
	return done, true, nil
}

// afterCompletion runs the downstream effects of a completed order. Failures
// never fail the request: they are recorded for the reconciler.
func (s *OrderService) afterCompletion(ctx context.Context, order *models.Order, course *models.Course, plan CommissionPlan) {
	log := s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "user_id": order.UserID})
	err := s.applyEffects(ctx, order, course, plan)
	if err == nil {
		log.WithFields(logrus.Fields{
			"instructor_cents": order.InstructorEarningsCents,
			"platform_cents":   order.PlatformEarningsCents,
			"affiliate_cents":  order.AffiliateCommissionCents,
		}).Info("order finalized")
		return
	}
	log.WithError(err).Error("order finalization incomplete, queued for reconciliation")
	db := s.db.WithContext(ctx)
	if rerr := repository.NewReconcileRepository(db).Record(domain.ReconcileKindOrderFinalize, order.OrderID, err.Error()); rerr != nil {
		log.WithError(rerr).Error("failed to record reconcile task")
		return
	}
	if ferr := repository.NewOrderRepository(db).SetFields(order.OrderID, map[string]interface{}{"finalize_error": truncate(err.Error(), 512)}); ferr != nil {
		log.WithError(ferr).Error("failed to record finalize error")
	}
	s.metrics.ReconcileTasks.WithLabelValues("recorded").Inc()
}

// applyEffects is safe to repeat: every step is keyed so a second run changes nothing.
func (s *OrderService) applyEffects(ctx context.Context, order *models.Order, course *models.Course, plan CommissionPlan) error {
	var errs []error
	ref := models.Reference{Type: domain.RefCoursePurchase, ID: order.OrderID}

	if order.InstructorEarningsCents > 0 {
		if _, err := s.ledger.Credit(ctx, course.InstructorID, order.InstructorEarningsCents,
			"Course sale: "+course.Title, ref,
			WithIdempotencyKey("order:"+order.OrderID+":instructor"), AsEarning()); err != nil {
			errs = append(errs, fmt.Errorf("instructor credit: %w", err))
		}
	}
	if order.PlatformEarningsCents > 0 && s.cfg.PlatformUserID != 0 {
		if _, err := s.ledger.Credit(ctx, s.cfg.PlatformUserID, order.PlatformEarningsCents,
			"Platform share: "+course.Title, ref,
			WithIdempotencyKey("order:"+order.OrderID+":platform"), AsEarning()); err != nil {
			errs = append(errs, fmt.Errorf("platform credit: %w", err))
		}
	}
	if len(plan) > 0 {
		if _, err := s.commissions.ScheduleForOrder(ctx, order, plan); err != nil {
			errs = append(errs, fmt.Errorf("commissions: %w", err))
		}
	}
	db := s.db.WithContext(ctx)
	if len(errs) == 0 {
		if err := repository.NewOrderRepository(db).SetFields(order.OrderID, map[string]interface{}{
			"commission_status": domain.OrderCommissionProcessed,
		}); err != nil {
			errs = append(errs, fmt.Errorf("commission status: %w", err))
		}
	}
	if err := repository.NewEnrollmentRepository(db).Enroll(order.UserID, order.CourseID, order.OrderID); err != nil {
		errs = append(errs, fmt.Errorf("enrollment: %w", err))
	}
	return errors.Join(errs...)
}

// reserveCoupon claims the coupon in the same transaction as the order row, so
// two open orders cannot both carry the discount.
func reserveCoupon(tx *gorm.DB, coupon *models.Coupon, order *models.Order) error {
	if coupon == nil {
		return nil
	}
	err := repository.NewCouponRepository(tx).Reserve(coupon.ID, order.UserID, order.OrderID)
	if repository.IsDuplicate(err) {
		return domain.Errorf(domain.ErrCouponInvalid, "coupon %s was already used", coupon.Code)
	}
	return err
}

// releaseCoupon frees the claim of an order that ended without payment.
func (s *OrderService) releaseCoupon(ctx context.Context, order *models.Order) {
	if order.CouponCode == "" {
		return
	}
	if err := repository.NewCouponRepository(s.db.WithContext(ctx)).ReleaseForOrder(order.OrderID); err != nil {
		s.log.WithError(err).WithField("order_id", order.OrderID).Error("failed to release coupon")
	}
}

// Refinalize re-drives the downstream effects of a completed order.
func (s *OrderService) Refinalize(ctx context.Context, orderID string) error {
	db := s.db.WithContext(ctx)
	order, err := repository.NewOrderRepository(db).GetByOrderID(orderID)
	if err != nil {
		return err
	}
	if order.PaymentStatus != domain.PaymentStatusCompleted {
		// refunded or never completed: nothing left to credit
		return nil
	}
	course, err := repository.NewCourseRepository(db).GetByID(order.CourseID)
	if err != nil {
		return err
	}
	plan, err := s.completedPlan(ctx, order, course)
	if err != nil {
		return err
	}
	if err := s.applyEffects(ctx, order, course, plan); err != nil {
		return err
	}
	return repository.NewOrderRepository(db).SetFields(orderID, map[string]interface{}{"finalize_error": ""})
}

// completedPlan returns the commission plan fixed when the order completed.
// Orders stored without one are planned again against the snapshot total.
func (s *OrderService) completedPlan(ctx context.Context, order *models.Order, course *models.Course) (CommissionPlan, error) {
	if order.CommissionPlan != "" {
		return decodePlan(order.CommissionPlan)
	}
	plan, err := s.commissions.Plan(ctx, order, course)
	if err != nil {
		return nil, err
	}
	return plan.truncate(order.AffiliateCommissionCents), nil
}

// CancelOrder lets the buyer abandon a pending order.
func (s *OrderService) CancelOrder(ctx context.Context, userID uint, orderID string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	ok, err := orders.Transition(order.OrderID, domain.PaymentStatusPending, map[string]interface{}{
		"payment_status": domain.PaymentStatusFailed,
		"order_status":   domain.OrderStatusCancelled,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrIllegalStateTransition, "order %s is %s and cannot be cancelled", order.OrderID, order.PaymentStatus)
	}
	s.releaseCoupon(ctx, order)
	return orders.GetByOrderID(order.OrderID)
}

// GetOrder returns the order when it belongs to userID.
func (s *OrderService) GetOrder(ctx context.Context, userID uint, orderID string) (*models.Order, error) {
	order, err := repository.NewOrderRepository(s.db.WithContext(ctx)).GetByOrderID(orderID)
	if repository.IsNotFound(err) || (err == nil && order.UserID != userID) {
		return nil, domain.Errorf(domain.ErrNotFound, "order %s not found", orderID)
	}
	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, userID uint, limit, offset int) ([]models.Order, int64, error) {
	return repository.NewOrderRepository(s.db.WithContext(ctx)).ListByUser(userID, limit, offset)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
