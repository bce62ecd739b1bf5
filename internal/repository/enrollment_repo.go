package repository

import (
	"skillmint/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll records the marker; an existing enrollment is left alone.
func (r *EnrollmentRepository) Enroll(userID, courseID uint, orderID string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoNothing: true,
	}).Create(&models.Enrollment{UserID: userID, CourseID: courseID, OrderID: orderID}).Error
}

func (r *EnrollmentRepository) Exists(userID, courseID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

// RemoveForOrder drops the enrollment created by orderID.
func (r *EnrollmentRepository) RemoveForOrder(userID, courseID uint, orderID string) error {
	return r.db.Where("user_id = ? AND course_id = ? AND order_id = ?", userID, courseID, orderID).
		Delete(&models.Enrollment{}).Error
}
