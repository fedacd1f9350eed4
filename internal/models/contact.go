package models

import "time"

// EnterpriseContact stores an enterprise-tier sales inquiry.
type EnterpriseContact struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null"` // Contact person name.
	CompanyName string `gorm:"type:text;not null"` // Company name.
	Website     string `gorm:"type:text"`          // Company website, optional.
	Email       string `gorm:"type:text;not null"` // Contact email.
	Phone       string `gorm:"type:text;not null"` // Contact phone.
	Message     string `gorm:"type:text;not null"` // Inquiry body.

	Status string `gorm:"type:varchar(16);not null;default:'pending'"` // Follow-up state.

	SubmittedAt time.Time `gorm:"not null"`                // Submission time.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
