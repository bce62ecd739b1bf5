package repository

import (
	"time"

	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
)

type TopUpRepository struct {
	db *gorm.DB
}

func NewTopUpRepository(db *gorm.DB) *TopUpRepository {
	return &TopUpRepository{db: db}
}

func (r *TopUpRepository) Create(t *models.TopUp) error {
	return r.db.Create(t).Error
}

func (r *TopUpRepository) GetByGatewayOrderID(gatewayOrderID string) (*models.TopUp, error) {
	var t models.TopUp
	if err := r.db.Where("gateway_order_id = ?", gatewayOrderID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// Transition applies updates only while the top-up is still in from.
func (r *TopUpRepository) Transition(topUpID, from string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.TopUp{}).
		Where("topup_id = ? AND status = ?", topUpID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TopUpRepository) ExpirePending(cutoff time.Time) (int64, error) {
	res := r.db.Model(&models.TopUp{}).
		Where("status = ? AND created_at < ?", domain.TopUpStatusPending, cutoff).
		Update("status", domain.TopUpStatusFailed)
	return res.RowsAffected, res.Error
}
