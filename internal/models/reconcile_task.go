package models

import "time"

// ReconcileTask records a downstream step that failed after money was captured.
type ReconcileTask struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Kind        string    `gorm:"size:30;not null;uniqueIndex:idx_reconcile_ref" json:"kind"`
	ReferenceID string    `gorm:"size:64;not null;uniqueIndex:idx_reconcile_ref" json:"reference_id"`
	Status      string    `gorm:"size:20;not null;index" json:"status"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`
	LastError   string    `gorm:"size:1024" json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (ReconcileTask) TableName() string { return "reconcile_tasks" }
