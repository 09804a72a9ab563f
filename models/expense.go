package models

import "time"

// Expense is one processed document. Payload keeps the full response body
// verbatim; the other columns are copies of the parsed fields for listing.
type Expense struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Owner     string  `gorm:"size:255;index"`
	Source    string  `gorm:"size:32;not null"`
	Merchant  *string `gorm:"size:255"`
	Amount    *int64
	Timestamp *string `gorm:"size:64"`
	Engine    string  `gorm:"size:32"`
	Variant   string  `gorm:"size:32"`
	FileName  string  `gorm:"size:255"`
	Payload   string  `gorm:"type:jsonb;not null"`
	// Uploads holds the original image when uploads are kept.
	Uploads []Upload `gorm:"foreignKey:ExpenseID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
}
