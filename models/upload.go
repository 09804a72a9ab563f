package models

import (
	"time"
)

// Upload records an image received for OCR.
type Upload struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FileName    string `gorm:"size:255;not null"`
	StorePath   string `gorm:"column:store_path;size:512"` // relative to the upload base
	ContentType string `gorm:"size:128"`
	Size        int64
	ExpenseID   *string `gorm:"size:36;index"` // FK to expenses.id (nullable)
	// Failed uploads are the ones cmd_retry picks up.
	Failed       bool   `gorm:"default:false;index"`
	FailedReason string `gorm:"size:255"`
}
