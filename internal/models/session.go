package models

import "time"

// UserSession is a server-side opaque session, created on OAuth login.
type UserSession struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID       string `gorm:"type:varchar(36);not null;index"` // Owning user ID.
	SessionToken string `gorm:"type:text;not null;uniqueIndex"`  // Opaque bearer/cookie token.

	ExpiresAt time.Time `gorm:"not null;index"`          // Hard expiry, checked on every resolve.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
