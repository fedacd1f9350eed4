// Package quota decides whether a user may spend pages on a conversion and
// maintains the resetting counter. All mutations are single conditional
// UPDATEs so concurrent requests for the same user cannot drive the counter
// negative or apply the daily reset twice.
package quota

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors returned by the engine.
var (
	// ErrInsufficientQuota indicates the requested pages exceed the remaining
	// allowance. Not retryable until reset or upgrade.
	ErrInsufficientQuota = errors.New("quota: insufficient pages remaining")
	// ErrUserNotFound indicates the user row does not exist.
	ErrUserNotFound = errors.New("quota: user not found")
)

// dailyResetInterval is the free-tier reset period.
const dailyResetInterval = 24 * time.Hour

// CheckResult reports the outcome of a quota check.
type CheckResult struct {
	Allowed   bool      `json:"can_convert"`
	Remaining int       `json:"pages_remaining"`
	Limit     int       `json:"pages_limit"`
	ResetAt   time.Time `json:"reset_date"`
	Message   string    `json:"message"`
}

// Engine performs quota checks and deductions against the account store.
type Engine struct {
	db *gorm.DB

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine constructs a quota Engine.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Check applies the reset policy and reports whether the user may spend
// requestedPages. The reset happens before the pass/fail decision is made.
func (e *Engine) Check(ctx context.Context, userID string, requestedPages int) (CheckResult, error) {
	user, errLoad := e.loadAfterReset(ctx, userID)
	if errLoad != nil {
		return CheckResult{}, errLoad
	}

	now := e.now()
	result := CheckResult{
		Allowed:   user.PagesRemaining >= requestedPages,
		Remaining: user.PagesRemaining,
		Limit:     user.PagesLimit,
	}

	if user.SubscriptionTier == models.TierDailyFree {
		result.ResetAt = user.DailyResetTime.Add(dailyResetInterval)
		hoursLeft := int(math.Ceil(result.ResetAt.Sub(now).Hours()))
		if hoursLeft < 0 {
			hoursLeft = 0
		}
		result.Message = fmt.Sprintf("You have %d pages remaining today. Resets in %d hours.", user.PagesRemaining, hoursLeft)
		if !result.Allowed {
			result.Message = "You've used all your daily pages. Upgrade to continue or wait for reset."
		}
		return result, nil
	}

	if user.BillingCycleEnd != nil {
		result.ResetAt = *user.BillingCycleEnd
	}
	result.Message = fmt.Sprintf("You have %d pages remaining this month.", user.PagesRemaining)
	if !result.Allowed {
		result.Message = "You've used all your monthly pages. Upgrade your plan to continue."
	}
	return result, nil
}

// Deduct atomically subtracts pages from the user's remaining allowance.
// The UPDATE carries the sufficiency predicate, so two concurrent deductions
// that together exceed the allowance cannot both succeed.
func (e *Engine) Deduct(ctx context.Context, userID string, pages int) error {
	return e.DeductTx(ctx, e.db, userID, pages)
}

// DeductTx is Deduct running inside a caller-supplied transaction, used by the
// conversion flow to make the deduction and the document record atomic.
func (e *Engine) DeductTx(ctx context.Context, tx *gorm.DB, userID string, pages int) error {
	if pages <= 0 {
		return nil
	}
	if _, errLoad := e.loadAfterReset(ctx, userID); errLoad != nil {
		return errLoad
	}

	res := tx.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND pages_remaining >= ?", userID, pages).
		Updates(map[string]any{
			"pages_remaining": gorm.Expr("pages_remaining - ?", pages),
			"updated_at":      e.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("quota: deduct: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientQuota
	}
	return nil
}

// loadAfterReset loads the user, first applying the daily reset when due.
// The reset predicate repeats the staleness condition inside the UPDATE, so
// only one of several concurrent callers performs it.
func (e *Engine) loadAfterReset(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	if errFind := e.db.WithContext(ctx).First(&user, "id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("quota: load user: %w", errFind)
	}

	if user.SubscriptionTier != models.TierDailyFree {
		return &user, nil
	}

	now := e.now()
	if now.Sub(user.DailyResetTime) < dailyResetInterval {
		return &user, nil
	}

	res := e.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND subscription_tier = ? AND daily_reset_time <= ?",
			userID, models.TierDailyFree, now.Add(-dailyResetInterval)).
		Updates(map[string]any{
			"pages_remaining":  gorm.Expr("pages_limit"),
			"daily_reset_time": now,
			"updated_at":       now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("quota: daily reset: %w", res.Error)
	}

	if errFind := e.db.WithContext(ctx).First(&user, "id = ?", userID).Error; errFind != nil {
		return nil, fmt.Errorf("quota: reload user: %w", errFind)
	}
	return &user, nil
}
