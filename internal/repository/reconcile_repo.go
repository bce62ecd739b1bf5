package repository

import (
	"skillmint/internal/domain"
	"skillmint/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReconcileRepository struct {
	db *gorm.DB
}

func NewReconcileRepository(db *gorm.DB) *ReconcileRepository {
	return &ReconcileRepository{db: db}
}

// Record opens (or reopens) the task for kind/ref and bumps its attempt count.
func (r *ReconcileRepository) Record(kind, referenceID, lastError string) error {
	if len(lastError) > 1024 {
		lastError = lastError[:1024]
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "reference_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     domain.ReconcileStatusPending,
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": lastError,
		}),
	}).Create(&models.ReconcileTask{
		Kind:        kind,
		ReferenceID: referenceID,
		Status:      domain.ReconcileStatusPending,
		Attempts:    1,
		LastError:   lastError,
	}).Error
}

func (r *ReconcileRepository) ListPending(kind string, limit int) ([]models.ReconcileTask, error) {
	var list []models.ReconcileTask
	err := r.db.Where("kind = ? AND status = ?", kind, domain.ReconcileStatusPending).
		Order("updated_at ASC").Limit(limit).Find(&list).Error
	return list, err
}

func (r *ReconcileRepository) Get(kind, referenceID string) (*models.ReconcileTask, error) {
	var t models.ReconcileTask
	if err := r.db.Where("kind = ? AND reference_id = ?", kind, referenceID).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *ReconcileRepository) MarkDone(kind, referenceID string) error {
	return r.db.Model(&models.ReconcileTask{}).
		Where("kind = ? AND reference_id = ?", kind, referenceID).
		Updates(map[string]interface{}{"status": domain.ReconcileStatusDone, "last_error": ""}).Error
}
