package repository

import (
	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// CreateOnce inserts c unless a commission for (order, level) already exists.
// It reports whether the row was inserted.
func (r *CommissionRepository) CreateOnce(c *models.AffiliateCommission) (bool, error) {
	res := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "level"}},
		DoNothing: true,
	}).Create(c)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *CommissionRepository) GetByCommissionID(commissionID string) (*models.AffiliateCommission, error) {
	var c models.AffiliateCommission
	if err := r.db.Where("commission_id = ?", commissionID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommissionRepository) ListByOrder(orderID string) ([]models.AffiliateCommission, error) {
	var list []models.AffiliateCommission
	err := r.db.Where("order_id = ?", orderID).Order("level ASC").Find(&list).Error
	return list, err
}

// List filters by affiliate when affiliateID is non-zero and by status when set.
func (r *CommissionRepository) List(affiliateID uint, status string, limit, offset int) ([]models.AffiliateCommission, int64, error) {
	var (
		list  []models.AffiliateCommission
		total int64
	)
	q := r.db.Model(&models.AffiliateCommission{})
	if affiliateID != 0 {
		q = q.Where("affiliate_id = ?", affiliateID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, total, err
}

// Transition applies updates only while the commission is still in from.
func (r *CommissionRepository) Transition(commissionID, from string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.AffiliateCommission{}).
		Where("commission_id = ? AND status = ?", commissionID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CancelForOrder cancels every unpaid commission on the order and flags paid
// ones for review. It returns how many rows each step touched.
func (r *CommissionRepository) CancelForOrder(orderID string) (cancelled, flagged int64, err error) {
	res := r.db.Model(&models.AffiliateCommission{}).
		Where("order_id = ? AND status IN ?", orderID, []string{
			domain.CommissionStatusPending, domain.CommissionStatusApproved,
		}).
		Update("status", domain.CommissionStatusCancelled)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	cancelled = res.RowsAffected
	res = r.db.Model(&models.AffiliateCommission{}).
		Where("order_id = ? AND status = ? AND needs_review = ?", orderID, domain.CommissionStatusPaid, false).
		Update("needs_review", true)
	if res.Error != nil {
		return cancelled, 0, res.Error
	}
	return cancelled, res.RowsAffected, nil
}
