package models

import "time"

// PaymentProvider identifies the payment vendor owning a subscription.
type PaymentProvider string

// PaymentProvider values.
const (
	// ProviderStripe marks Stripe-managed subscriptions.
	ProviderStripe PaymentProvider = "stripe"
	// ProviderDodo marks Dodo Payments subscriptions.
	ProviderDodo PaymentProvider = "dodo"
)

// PaymentStatus tracks the checkout payment outcome.
type PaymentStatus string

// PaymentStatus values.
const (
	// PaymentPending marks a checkout awaiting completion.
	PaymentPending PaymentStatus = "pending"
	// PaymentCompleted marks a paid checkout.
	PaymentCompleted PaymentStatus = "completed"
	// PaymentFailed marks a failed checkout.
	PaymentFailed PaymentStatus = "failed"
)

// SubscriptionStatus tracks the provider-side subscription lifecycle.
type SubscriptionStatus string

// SubscriptionStatus values.
const (
	// SubscriptionPending marks a subscription awaiting activation.
	SubscriptionPending SubscriptionStatus = "pending"
	// SubscriptionActive marks a live subscription.
	SubscriptionActive SubscriptionStatus = "active"
	// SubscriptionOnHold marks a payment-problem hold.
	SubscriptionOnHold SubscriptionStatus = "on_hold"
	// SubscriptionCancelled marks a cancelled subscription.
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	// SubscriptionFailed marks a failed subscription.
	SubscriptionFailed SubscriptionStatus = "failed"
)

// BillingInterval is the charge cadence for a paid subscription.
type BillingInterval string

// BillingInterval values.
const (
	// IntervalMonthly charges every 30 days.
	IntervalMonthly BillingInterval = "monthly"
	// IntervalAnnual charges every 365 days.
	IntervalAnnual BillingInterval = "annual"
)

// Subscription records one checkout attempt and its provider lifecycle.
type Subscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID string `gorm:"type:varchar(36);not null;index"` // Owning user ID.
	User   User   `gorm:"foreignKey:UserID"`               // Owning user record.

	Provider   PaymentProvider `gorm:"type:varchar(16);not null"`      // Payment vendor.
	SessionID  string          `gorm:"type:text;not null;uniqueIndex"` // Provider checkout/subscription session ID.
	CustomerID string          `gorm:"type:text"`                      // Provider customer ID, set on activation.
	PackageID  string          `gorm:"type:varchar(32);not null"`      // Catalog package identifier.
	Interval   BillingInterval `gorm:"type:varchar(16);not null"`      // Billing cadence.

	ProviderSubscriptionID string `gorm:"type:text;index"` // Vendor subscription ID, set on activation; renewal and cancellation events reference it.

	PaymentStatus      PaymentStatus      `gorm:"type:varchar(16);not null;default:'pending'"` // Checkout payment outcome.
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(16);not null;default:'pending'"` // Provider lifecycle state.

	ActivatedAt   *time.Time // Set when the subscription first becomes active.
	LastRenewedAt *time.Time // Updated on each renewal event.
	CancelledAt   *time.Time // Set when the subscription is cancelled.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// PaymentTransaction records a settled provider payment.
type PaymentTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PaymentID      string          `gorm:"type:text;not null;uniqueIndex"` // Provider payment ID.
	SubscriptionID string          `gorm:"type:text;index"`                // Provider subscription ID.
	Provider       PaymentProvider `gorm:"type:varchar(16);not null"`      // Payment vendor.
	AmountCents    int64           `gorm:"not null;default:0"`             // Settled amount in minor units.
	Status         string          `gorm:"type:varchar(16);not null"`      // Provider-reported status.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
