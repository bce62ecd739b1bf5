package repository

import (
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByOrderID(orderID string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("order_id = ?", orderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByGatewayOrderID(gatewayOrderID string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("gateway_order_id = ?", gatewayOrderID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByGatewayPaymentID(paymentID string) (*models.Order, error) {
	var o models.Order
	if err := r.db.Where("gateway_payment_id = ?", paymentID).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first, and the total count.
func (r *OrderRepository) ListByUser(userID uint, limit, offset int) ([]models.Order, int64, error) {
	var (
		list  []models.Order
		total int64
	)
	q := r.db.Model(&models.Order{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// ListRefundRequests returns orders waiting on an admin refund decision.
func (r *OrderRepository) ListRefundRequests(limit, offset int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Where("refund_status = ?", domain.RefundStatusRequested).
		Order("refund_requested_at ASC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// Transition applies updates only while the order still has fromPaymentStatus.
// It reports whether this call won the transition.
func (r *OrderRepository) Transition(orderID, fromPaymentStatus string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND payment_status = ?", orderID, fromPaymentStatus).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RequestRefund flags a completed order for refund once.
func (r *OrderRepository) RequestRefund(orderID, reason string, at time.Time) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND payment_status = ? AND is_refund_requested = ?", orderID, domain.PaymentStatusCompleted, false).
		Updates(map[string]interface{}{
			"is_refund_requested": true,
			"refund_status":       domain.RefundStatusRequested,
			"refund_reason":       reason,
			"refund_requested_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetRefundStatus moves refund_status from one value to another.
func (r *OrderRepository) SetRefundStatus(orderID, from, to string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("order_id = ? AND refund_status = ?", orderID, from).
		Update("refund_status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetFields updates columns that carry no state-machine meaning.
func (r *OrderRepository) SetFields(orderID string, fields map[string]interface{}) error {
	return r.db.Model(&models.Order{}).Where("order_id = ?", orderID).Updates(fields).Error
}

// ExpirePending fails every pending order created before cutoff and returns how many changed.
func (r *OrderRepository) ExpirePending(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.Order{}).
		Where("payment_status = ? AND created_at < ?", domain.PaymentStatusPending, cutoff).
		Updates(map[string]interface{}{
			"payment_status": domain.PaymentStatusFailed,
			"order_status":   domain.OrderStatusCancelled,
		})
	return res.RowsAffected, res.Error
}
