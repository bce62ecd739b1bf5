package models

import "time"

// Enrollment is the marker access control uses to recognise a buyer.
type Enrollment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_course" json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_user_course" json:"course_id"`
	OrderID   string    `gorm:"size:32;not null" json:"order_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (Enrollment) TableName() string { return "enrollments" }
