package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"
	"skillmint/internal/repository"
	"skillmint/pkg/payment"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RefundService reverses completed orders inside the refund window.
type RefundService struct {
	db             *gorm.DB
	ledger         *Ledger
	commissions    *CommissionService
	gateway        payment.Gateway
	window         time.Duration
	platformUserID uint
	log            logrus.FieldLogger
}

func NewRefundService(db *gorm.DB, ledger *Ledger, commissions *CommissionService, gw payment.Gateway, window time.Duration, platformUserID uint, log logrus.FieldLogger) *RefundService {
	return &RefundService{
		db:             db,
		ledger:         ledger,
		commissions:    commissions,
		gateway:        gw,
		window:         window,
		platformUserID: platformUserID,
		log:            log.WithField("component", "refunds"),
	}
}

// CanBeRefunded applies the refund policy to order at now.
func (s *RefundService) CanBeRefunded(order *models.Order, now time.Time) bool {
	return order.CanBeRefunded(now, s.window)
}

// Request records the buyer's refund request.
func (s *RefundService) Request(ctx context.Context, userID uint, orderID, reason string) (*models.Order, error) {
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	order, err := orders.GetByOrderID(orderID)
	if repository.IsNotFound(err) || (err == nil && order.UserID != userID) {
		return nil, domain.Errorf(domain.ErrNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !s.CanBeRefunded(order, now) {
		return nil, domain.Errorf(domain.ErrOrderNotRefundable, "order %s cannot be refunded", orderID)
	}
	ok, err := orders.RequestRefund(orderID, truncate(reason, 512), now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrOrderNotRefundable, "order %s cannot be refunded", orderID)
	}
	return orders.GetByOrderID(orderID)
}

// Approve refunds a requested order and initiates the gateway refund.
func (s *RefundService) Approve(ctx context.Context, adminID uint, orderID string) (*models.Order, error) {
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	order, err := orders.GetByOrderID(orderID)
	if repository.IsNotFound(err) {
		return nil, domain.Errorf(domain.ErrNotFound, "order %s not found", orderID)
	}
	if err != nil {
		return nil, err
	}
	if order.RefundStatus != domain.RefundStatusRequested {
		return nil, domain.Errorf(domain.ErrIllegalStateTransition, "order %s has no open refund request", orderID)
	}
	applied, err := s.apply(ctx, order, fmt.Sprintf("approved by admin %d", adminID), true)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, domain.Errorf(domain.ErrOrderNotRefundable, "order %s is %s", orderID, order.PaymentStatus)
	}
	return orders.GetByOrderID(orderID)
}

func (s *RefundService) Reject(ctx context.Context, adminID uint, orderID, note string) (*models.Order, error) {
	orders := repository.NewOrderRepository(s.db.WithContext(ctx))
	ok, err := orders.SetRefundStatus(orderID, domain.RefundStatusRequested, domain.RefundStatusRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Errorf(domain.ErrIllegalStateTransition, "order %s has no open refund request", orderID)
	}
	s.log.WithFields(logrus.Fields{"order_id": orderID, "admin_id": adminID, "note": note}).Info("refund rejected")
	return orders.GetByOrderID(orderID)
}

// ListRequests returns orders with an open refund request.
func (s *RefundService) ListRequests(ctx context.Context, limit, offset int) ([]models.Order, error) {
	return repository.NewOrderRepository(s.db.WithContext(ctx)).ListRefundRequests(limit, offset)
}

// apply moves a completed order to refunded and reverses its effects. Only
// the caller that wins the transition reverses anything.
func (s *RefundService) apply(ctx context.Context, order *models.Order, reason string, initiateGateway bool) (bool, error) {
	db := s.db.WithContext(ctx)
	orders := repository.NewOrderRepository(db)
	now := time.Now().UTC()
	won, err := orders.Transition(order.OrderID, domain.PaymentStatusCompleted, map[string]interface{}{
		"payment_status":    domain.PaymentStatusRefunded,
		"refund_status":     domain.RefundStatusApproved,
		"refunded_at":       now,
		"commission_status": domain.OrderCommissionRejected,
	})
	if err != nil || !won {
		return false, err
	}
	log := s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "reason": reason})

	course, err := repository.NewCourseRepository(db).GetByID(order.CourseID)
	if err != nil {
		log.WithError(err).Error("refund: course lookup failed, earnings not reversed")
	} else {
		s.reverse(ctx, log, course.InstructorID, order.InstructorEarningsCents, order.OrderID, "instructor")
	}
	if s.platformUserID != 0 {
		s.reverse(ctx, log, s.platformUserID, order.PlatformEarningsCents, order.OrderID, "platform")
	}
	if order.PaymentMethod == domain.PaymentMethodWallet && order.FinalAmountCents > 0 {
		if _, err := s.ledger.Credit(ctx, order.UserID, order.FinalAmountCents, "Refund for order "+order.OrderID,
			models.Reference{Type: domain.RefRefund, ID: order.OrderID},
			WithIdempotencyKey("order:"+order.OrderID+":refund:buyer")); err != nil {
			log.WithError(err).Error("refund: buyer wallet credit failed")
		}
	}
	if err := s.commissions.CancelForOrder(ctx, order.OrderID); err != nil {
		log.WithError(err).Error("refund: cancelling commissions failed")
	}
	if err := repository.NewEnrollmentRepository(db).RemoveForOrder(order.UserID, order.CourseID, order.OrderID); err != nil {
		log.WithError(err).Error("refund: removing enrollment failed")
	}
	if initiateGateway && order.PaymentMethod == domain.PaymentMethodGateway && order.GatewayPaymentID != "" {
		s.refundAtGateway(ctx, log, order)
	}
	log.Info("order refunded")
	return true, nil
}

// reverse takes back earnings credited on completion. Only a credit that was
// actually posted is reversed, for the amount it posted. A wallet that has
// already spent the money is left alone and logged for review.
func (s *RefundService) reverse(ctx context.Context, log logrus.FieldLogger, userID uint, snapshotCents int64, orderID, role string) {
	if snapshotCents <= 0 {
		return
	}
	credit, err := repository.NewWalletRepository(s.db.WithContext(ctx)).FindByIdempotencyKey("order:" + orderID + ":" + role)
	if repository.IsNotFound(err) {
		log.WithFields(logrus.Fields{"user_id": userID, "role": role}).Info("refund: earnings were never credited, nothing to reverse")
		return
	}
	if err != nil {
		log.WithError(err).WithField("role", role).Error("refund: earnings lookup failed, reversal needs review")
		return
	}
	amountCents := credit.AmountCents
	_, err = s.ledger.Debit(ctx, userID, amountCents, "Refund reversal for order "+orderID,
		models.Reference{Type: domain.RefRefund, ID: orderID},
		WithIdempotencyKey("order:"+orderID+":refund:"+role), AsEarning())
	if errors.Is(err, domain.ErrInsufficientFunds) {
		log.WithFields(logrus.Fields{"user_id": userID, "amount_cents": amountCents, "role": role}).
			Warn("refund: earnings already spent, reversal needs review")
		return
	}
	if err != nil {
		log.WithError(err).WithField("role", role).Error("refund: earnings reversal failed")
	}
}

func (s *RefundService) refundAtGateway(ctx context.Context, log logrus.FieldLogger, order *models.Order) {
	r, err := s.gateway.Refund(ctx, order.GatewayPaymentID, order.FinalAmountCents)
	if err != nil {
		log.WithError(err).Error("refund: gateway refund failed, retry manually")
		return
	}
	if err := repository.NewOrderRepository(s.db.WithContext(ctx)).SetFields(order.OrderID, map[string]interface{}{
		"gateway_refund_id": r.ID,
	}); err != nil {
		log.WithError(err).Error("refund: recording gateway refund id failed")
	}
}
