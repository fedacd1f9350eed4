// Package subscription applies payment-provider lifecycle events to the
// transaction and account stores. Every transition is idempotent: provider
// event IDs are recorded under a uniqueness constraint and stored statuses
// are re-checked before mutation, so at-least-once webhook delivery and
// client-side status polling cannot double-apply a tier or quota change.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/statement2sheet/backend/internal/catalog"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sentinel errors returned by the state machine.
var (
	// ErrDuplicateEvent indicates an already-processed provider event.
	// Callers treat it as success and mutate nothing.
	ErrDuplicateEvent = errors.New("subscription: event already processed")
	// ErrUnknownSubscription indicates no transaction matches the provider
	// session or subscription ID.
	ErrUnknownSubscription = errors.New("subscription: unknown subscription")
)

// Machine transitions subscriptions and their owning users.
type Machine struct {
	db *gorm.DB

	// now is swappable for tests.
	now func() time.Time
}

// NewMachine constructs a subscription Machine.
func NewMachine(db *gorm.DB) *Machine {
	return &Machine{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Event identifies one provider lifecycle notification.
type Event struct {
	Provider  models.PaymentProvider // Emitting vendor.
	EventID   string                 // Provider event ID, the idempotency key.
	EventType string                 // Provider event type string.
	SessionID string                 // Checkout session or subscription ID.
	Payload   []byte                 // Raw event payload for audit.
}

// CreatePending records a requested checkout before the user is redirected to
// the provider. The transaction stays pending until a webhook resolves it.
func (m *Machine) CreatePending(ctx context.Context, userID string, provider models.PaymentProvider, sessionID, packageID string, interval models.BillingInterval) (*models.Subscription, error) {
	now := m.now()
	sub := models.Subscription{
		UserID:             userID,
		Provider:           provider,
		SessionID:          sessionID,
		PackageID:          packageID,
		Interval:           interval,
		PaymentStatus:      models.PaymentPending,
		SubscriptionStatus: models.SubscriptionPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if errCreate := m.db.WithContext(ctx).Create(&sub).Error; errCreate != nil {
		return nil, fmt.Errorf("subscription: create pending: %w", errCreate)
	}
	return &sub, nil
}

// Activate handles checkout completion and subscription.active events: the
// payment completes, the subscription goes live, and the user receives the
// package's tier, page allotment, and billing cycle. providerSubID links the
// vendor's subscription object for later renewal and cancellation events;
// empty when the session ID already is the subscription ID.
func (m *Machine) Activate(ctx context.Context, ev Event, customerID, providerSubID string) error {
	return m.apply(ctx, ev, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.PaymentStatus == models.PaymentCompleted && sub.SubscriptionStatus == models.SubscriptionActive {
			return nil
		}

		pkg, errPkg := catalog.Lookup(sub.PackageID)
		if errPkg != nil {
			return errPkg
		}

		now := m.now()
		updates := map[string]any{
			"payment_status":      models.PaymentCompleted,
			"subscription_status": models.SubscriptionActive,
			"activated_at":        now,
			"updated_at":          now,
		}
		if customerID != "" {
			updates["customer_id"] = customerID
		}
		if providerSubID != "" {
			updates["provider_subscription_id"] = providerSubID
		}
		if errSub := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(updates).Error; errSub != nil {
			return fmt.Errorf("subscription: activate transaction: %w", errSub)
		}

		cycleEnd := now.Add(cycleDuration(sub.Interval))
		if errUser := tx.Model(&models.User{}).Where("id = ?", sub.UserID).Updates(map[string]any{
			"subscription_tier":   pkg.Tier,
			"subscription_status": models.SubscriptionActive,
			"pages_limit":         pkg.PagesLimit,
			"pages_remaining":     pkg.PagesLimit,
			"billing_cycle_start": now,
			"billing_cycle_end":   cycleEnd,
			"updated_at":          now,
		}).Error; errUser != nil {
			return fmt.Errorf("subscription: activate user: %w", errUser)
		}
		return nil
	})
}

// Renew handles subscription.renewed: a new billing period starts, so the
// cycle window advances and the page allotment refills.
func (m *Machine) Renew(ctx context.Context, ev Event) error {
	return m.apply(ctx, ev, func(tx *gorm.DB, sub *models.Subscription) error {
		pkg, errPkg := catalog.Lookup(sub.PackageID)
		if errPkg != nil {
			return errPkg
		}

		now := m.now()
		if errSub := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"subscription_status": models.SubscriptionActive,
			"last_renewed_at":     now,
			"updated_at":          now,
		}).Error; errSub != nil {
			return fmt.Errorf("subscription: renew transaction: %w", errSub)
		}

		cycleEnd := now.Add(cycleDuration(sub.Interval))
		if errUser := tx.Model(&models.User{}).Where("id = ?", sub.UserID).Updates(map[string]any{
			"subscription_status": models.SubscriptionActive,
			"pages_remaining":     pkg.PagesLimit,
			"billing_cycle_start": now,
			"billing_cycle_end":   cycleEnd,
			"updated_at":          now,
		}).Error; errUser != nil {
			return fmt.Errorf("subscription: renew user: %w", errUser)
		}
		return nil
	})
}

// Hold handles subscription.on_hold; the user mirrors the held state.
func (m *Machine) Hold(ctx context.Context, ev Event) error {
	return m.setStatus(ctx, ev, models.SubscriptionOnHold, true)
}

// Cancel handles subscription.cancelled; the user mirrors the cancelled
// state. Page limits and remaining pages are untouched by this event alone.
func (m *Machine) Cancel(ctx context.Context, ev Event) error {
	return m.apply(ctx, ev, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.SubscriptionStatus == models.SubscriptionCancelled {
			return nil
		}
		now := m.now()
		if errSub := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"subscription_status": models.SubscriptionCancelled,
			"cancelled_at":        now,
			"updated_at":          now,
		}).Error; errSub != nil {
			return fmt.Errorf("subscription: cancel transaction: %w", errSub)
		}
		if errUser := tx.Model(&models.User{}).Where("id = ?", sub.UserID).Updates(map[string]any{
			"subscription_status": models.SubscriptionCancelled,
			"updated_at":          now,
		}).Error; errUser != nil {
			return fmt.Errorf("subscription: cancel user: %w", errUser)
		}
		return nil
	})
}

// Fail handles subscription/payment failure; only the transaction is marked.
func (m *Machine) Fail(ctx context.Context, ev Event) error {
	return m.apply(ctx, ev, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.SubscriptionStatus == models.SubscriptionFailed {
			return nil
		}
		now := m.now()
		if errSub := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"payment_status":      models.PaymentFailed,
			"subscription_status": models.SubscriptionFailed,
			"updated_at":          now,
		}).Error; errSub != nil {
			return fmt.Errorf("subscription: fail transaction: %w", errSub)
		}
		return nil
	})
}

// RecordPayment stores a settled payment notification. The payment ID is
// unique, so replays are silent no-ops.
func (m *Machine) RecordPayment(ctx context.Context, provider models.PaymentProvider, paymentID, subscriptionID string, amountCents int64) error {
	row := models.PaymentTransaction{
		PaymentID:      paymentID,
		SubscriptionID: subscriptionID,
		Provider:       provider,
		AmountCents:    amountCents,
		Status:         "succeeded",
		CreatedAt:      m.now(),
	}
	if errCreate := m.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return nil
		}
		return fmt.Errorf("subscription: record payment: %w", errCreate)
	}
	return nil
}

// FindBySessionID loads a transaction by its provider session ID.
func (m *Machine) FindBySessionID(ctx context.Context, sessionID string) (*models.Subscription, error) {
	var sub models.Subscription
	if errFind := m.db.WithContext(ctx).First(&sub, "session_id = ?", sessionID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubscription
		}
		return nil, fmt.Errorf("subscription: find by session: %w", errFind)
	}
	return &sub, nil
}

// ResolveSessionID maps a vendor subscription ID back to the session ID the
// transaction is keyed by. The session ID itself is accepted unchanged, so
// vendors whose events carry the session ID directly resolve trivially.
func (m *Machine) ResolveSessionID(ctx context.Context, providerSubID string) (string, error) {
	var sub models.Subscription
	errFind := m.db.WithContext(ctx).
		Where("provider_subscription_id = ? OR session_id = ?", providerSubID, providerSubID).
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", ErrUnknownSubscription
		}
		return "", fmt.Errorf("subscription: resolve session: %w", errFind)
	}
	return sub.SessionID, nil
}

// FindLatestActive loads the user's most recent active subscription, used to
// locate the provider customer for portal sessions.
func (m *Machine) FindLatestActive(ctx context.Context, userID string) (*models.Subscription, error) {
	var sub models.Subscription
	errFind := m.db.WithContext(ctx).
		Where("user_id = ? AND subscription_status = ?", userID, models.SubscriptionActive).
		Order("updated_at DESC").
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownSubscription
		}
		return nil, fmt.Errorf("subscription: find active: %w", errFind)
	}
	return &sub, nil
}

// setStatus applies a bare status mirror to transaction and user.
func (m *Machine) setStatus(ctx context.Context, ev Event, status models.SubscriptionStatus, mirrorUser bool) error {
	return m.apply(ctx, ev, func(tx *gorm.DB, sub *models.Subscription) error {
		if sub.SubscriptionStatus == status {
			return nil
		}
		now := m.now()
		if errSub := tx.Model(&models.Subscription{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"subscription_status": status,
			"updated_at":          now,
		}).Error; errSub != nil {
			return fmt.Errorf("subscription: set status: %w", errSub)
		}
		if mirrorUser {
			if errUser := tx.Model(&models.User{}).Where("id = ?", sub.UserID).Updates(map[string]any{
				"subscription_status": status,
				"updated_at":          now,
			}).Error; errUser != nil {
				return fmt.Errorf("subscription: mirror user status: %w", errUser)
			}
		}
		return nil
	})
}

// apply runs a transition inside one transaction, recording the provider
// event ID first. A replayed event ID fails the insert and short-circuits
// before any mutation.
func (m *Machine) apply(ctx context.Context, ev Event, fn func(tx *gorm.DB, sub *models.Subscription) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ev.EventID != "" {
			row := models.WebhookEvent{
				EventID:     ev.EventID,
				Provider:    ev.Provider,
				EventType:   ev.EventType,
				Payload:     datatypes.JSON(ev.Payload),
				ProcessedAt: m.now(),
				CreatedAt:   m.now(),
			}
			if errCreate := tx.Create(&row).Error; errCreate != nil {
				if db.IsUniqueViolation(errCreate) {
					return ErrDuplicateEvent
				}
				return fmt.Errorf("subscription: record event: %w", errCreate)
			}
		}

		var sub models.Subscription
		if errFind := tx.First(&sub, "session_id = ?", ev.SessionID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrUnknownSubscription
			}
			return fmt.Errorf("subscription: load transaction: %w", errFind)
		}
		return fn(tx, &sub)
	})
}

// cycleDuration maps a billing interval to its cycle length.
func cycleDuration(interval models.BillingInterval) time.Duration {
	if interval == models.IntervalAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}
