package models

import "time"

// SubscriptionTier names a subscription level and its page allotment class.
type SubscriptionTier string

// SubscriptionTier values supported by the product.
const (
	// TierDailyFree is the default tier with a daily-resetting allowance.
	TierDailyFree SubscriptionTier = "daily_free"
	// TierBasic is the entry paid tier.
	TierBasic SubscriptionTier = "basic"
	// TierPremium is the mid paid tier.
	TierPremium SubscriptionTier = "premium"
	// TierPlatinum is the high paid tier.
	TierPlatinum SubscriptionTier = "platinum"
	// TierEnterprise is the custom unlimited tier.
	TierEnterprise SubscriptionTier = "enterprise"
)

// DailyFreePages is the page allotment for the daily free tier.
const DailyFreePages = 7

// User represents an end-user account stored in the database.
type User struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID primary key.

	Email        string  `gorm:"type:text;not null;uniqueIndex"` // Email address, unique login identity.
	FullName     string  `gorm:"type:text"`                      // Display name.
	PasswordHash *string `gorm:"type:text"`                      // Bcrypt hash, nil for OAuth-only accounts.
	GoogleID     string  `gorm:"type:text;index"`                // Linked Google account ID, empty if none.

	SubscriptionTier   SubscriptionTier `gorm:"type:varchar(32);not null;default:'daily_free'"` // Active tier.
	SubscriptionStatus string           `gorm:"type:varchar(32)"`                               // Mirrors provider subscription state.

	PagesRemaining int `gorm:"not null;default:0"` // Pages left in the current window.
	PagesLimit     int `gorm:"not null;default:0"` // Ceiling PagesRemaining refills to.

	BillingCycleStart *time.Time // Paid cycle start.
	BillingCycleEnd   *time.Time // Paid cycle end.
	DailyResetTime    time.Time  // Last daily-free quota reset.

	LanguagePreference string `gorm:"type:varchar(8);not null;default:'en'"` // UI language code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
