package repository

import (
	"skillmint/internal/models"

	"gorm.io/gorm"
)

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Create(c *models.Course) error {
	return r.db.Create(c).Error
}

func (r *CourseRepository) GetByID(id uint) (*models.Course, error) {
	var c models.Course
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
