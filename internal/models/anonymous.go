package models

import "time"

// AnonymousConversion records the single free conversion granted to an
// unauthenticated visitor. Uniqueness on both fingerprint and IP makes the
// allowance exhaust on whichever identifier matches first.
type AnonymousConversion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Fingerprint string `gorm:"type:text;not null;uniqueIndex"`        // Browser fingerprint.
	IPAddress   string `gorm:"type:varchar(45);not null;uniqueIndex"` // Client IP address.

	OriginalFilename string `gorm:"type:text"`          // Uploaded file name.
	FileSize         int64  `gorm:"not null;default:0"` // Uploaded file size in bytes.
	PageCount        int    `gorm:"not null;default:0"` // Pages detected in the PDF.

	ConvertedAt time.Time `gorm:"not null"`                // When the conversion finished.
	CreatedAt   time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
