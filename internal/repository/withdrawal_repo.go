package repository

import (
	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) Create(w *models.WithdrawRequest) error {
	return r.db.Create(w).Error
}

func (r *WithdrawalRepository) GetByRequestID(requestID string) (*models.WithdrawRequest, error) {
	var w models.WithdrawRequest
	err := r.db.Where("request_id = ?", requestID).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// HasInFlight reports whether the user has a pending or processing request.
func (r *WithdrawalRepository) HasInFlight(userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.WithdrawRequest{}).
		Where("user_id = ? AND status IN ?", userID, []string{
			domain.WithdrawStatusPending, domain.WithdrawStatusApproved, domain.WithdrawStatusProcessing,
		}).
		Count(&count).Error
	return count > 0, err
}

// List filters by user when userID is non-zero and by status when set.
func (r *WithdrawalRepository) List(userID uint, status string, limit, offset int) ([]models.WithdrawRequest, int64, error) {
	var (
		list  []models.WithdrawRequest
		total int64
	)
	q := r.db.Model(&models.WithdrawRequest{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
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

// Transition applies updates only while the request is still in from.
func (r *WithdrawalRepository) Transition(requestID, from string, updates map[string]interface{}) (bool, error) {
	res := r.db.Model(&models.WithdrawRequest{}).
		Where("request_id = ? AND status = ?", requestID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
