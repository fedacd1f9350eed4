package models

import "time"

// Document records one completed PDF conversion for a user.
type Document struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	UserID string `gorm:"type:varchar(36);not null;index"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`               // Owning user record.

	OriginalFilename string `gorm:"type:text;not null"` // Uploaded file name.
	FileSize         int64  `gorm:"not null;default:0"` // Uploaded file size in bytes.
	PageCount        int    `gorm:"not null;default:0"` // Pages detected in the PDF.
	PagesDeducted    int    `gorm:"not null;default:0"` // Pages charged against quota.

	Status        string `gorm:"type:varchar(16);not null;default:'completed'"` // Conversion outcome.
	DownloadCount int    `gorm:"not null;default:0"`                            // Times the result was downloaded.

	ConversionDate time.Time `gorm:"not null"`                // When the conversion finished.
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
