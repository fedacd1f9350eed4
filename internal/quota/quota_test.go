package quota

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quota-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedFreeUser(t *testing.T, conn *gorm.DB, id string, remaining int, resetAt time.Time) {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{
		ID:               id,
		Email:            id + "@example.com",
		SubscriptionTier: models.TierDailyFree,
		PagesRemaining:   remaining,
		PagesLimit:       models.DailyFreePages,
		DailyResetTime:   resetAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
}

func TestCheckAndDeductFreeTier(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)
	ctx := context.Background()

	seedFreeUser(t, conn, "user-1", models.DailyFreePages, time.Now().UTC())

	check, errCheck := engine.Check(ctx, "user-1", 3)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !check.Allowed {
		t.Fatalf("expected 3 pages allowed with %d remaining", check.Remaining)
	}
	if check.Remaining != models.DailyFreePages {
		t.Fatalf("remaining = %d, want %d", check.Remaining, models.DailyFreePages)
	}

	if errDeduct := engine.Deduct(ctx, "user-1", 3); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}

	check, errCheck = engine.Check(ctx, "user-1", 1)
	if errCheck != nil {
		t.Fatalf("check after deduct: %v", errCheck)
	}
	if check.Remaining != models.DailyFreePages-3 {
		t.Fatalf("remaining = %d, want %d", check.Remaining, models.DailyFreePages-3)
	}
}

func TestDeductInsufficient(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)
	ctx := context.Background()

	seedFreeUser(t, conn, "user-2", 2, time.Now().UTC())

	if errDeduct := engine.Deduct(ctx, "user-2", 5); !errors.Is(errDeduct, ErrInsufficientQuota) {
		t.Fatalf("deduct 5 of 2 = %v, want ErrInsufficientQuota", errDeduct)
	}

	var user models.User
	if errFind := conn.First(&user, "id = ?", "user-2").Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.PagesRemaining != 2 {
		t.Fatalf("remaining mutated to %d on failed deduct", user.PagesRemaining)
	}
}

func TestDeductUnknownUser(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)

	if errDeduct := engine.Deduct(context.Background(), "missing", 1); !errors.Is(errDeduct, ErrUserNotFound) {
		t.Fatalf("deduct missing user = %v, want ErrUserNotFound", errDeduct)
	}
}

func TestConcurrentDeductNeverNegative(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)
	ctx := context.Background()

	seedFreeUser(t, conn, "user-3", 5, time.Now().UTC())

	// One connection keeps sqlite from returning busy errors; the conditional
	// UPDATE still arbitrates which deduction wins.
	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)

	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = engine.Deduct(ctx, "user-3", 3)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, errDeduct := range results {
		if errDeduct == nil {
			succeeded++
		} else if !errors.Is(errDeduct, ErrInsufficientQuota) {
			t.Fatalf("unexpected deduct error: %v", errDeduct)
		}
	}
	if succeeded != 1 {
		t.Fatalf("succeeded = %d, want exactly 1 of the 3-page deductions from 5", succeeded)
	}

	var user models.User
	if errFind := conn.First(&user, "id = ?", "user-3").Error; errFind != nil {
		t.Fatalf("reload user: %v", errFind)
	}
	if user.PagesRemaining < 0 {
		t.Fatalf("remaining went negative: %d", user.PagesRemaining)
	}
	if user.PagesRemaining != 2 {
		t.Fatalf("remaining = %d, want 2", user.PagesRemaining)
	}
}

func TestDailyResetAppliesOnce(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)
	ctx := context.Background()

	stale := time.Now().UTC().Add(-25 * time.Hour)
	seedFreeUser(t, conn, "user-4", 0, stale)

	check, errCheck := engine.Check(ctx, "user-4", 1)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !check.Allowed {
		t.Fatalf("expected refill after stale reset time, remaining=%d", check.Remaining)
	}
	if check.Remaining != models.DailyFreePages {
		t.Fatalf("remaining = %d, want %d after reset", check.Remaining, models.DailyFreePages)
	}

	// A second check within the window must not refill again.
	if errDeduct := engine.Deduct(ctx, "user-4", 4); errDeduct != nil {
		t.Fatalf("deduct: %v", errDeduct)
	}
	check, errCheck = engine.Check(ctx, "user-4", 1)
	if errCheck != nil {
		t.Fatalf("second check: %v", errCheck)
	}
	if check.Remaining != models.DailyFreePages-4 {
		t.Fatalf("remaining = %d, want %d", check.Remaining, models.DailyFreePages-4)
	}
}

func TestPaidTierSkipsDailyReset(t *testing.T) {
	conn := openTestDB(t)
	engine := NewEngine(conn)
	ctx := context.Background()

	now := time.Now().UTC()
	cycleEnd := now.Add(20 * 24 * time.Hour)
	user := models.User{
		ID:               "user-5",
		Email:            "user-5@example.com",
		SubscriptionTier: models.TierPremium,
		PagesRemaining:   10,
		PagesLimit:       1000,
		DailyResetTime:   now.Add(-48 * time.Hour),
		BillingCycleEnd:  &cycleEnd,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}

	check, errCheck := engine.Check(ctx, "user-5", 1)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if check.Remaining != 10 {
		t.Fatalf("paid tier was reset: remaining = %d, want 10", check.Remaining)
	}
	if !check.ResetAt.Equal(cycleEnd) {
		t.Fatalf("reset date = %v, want billing cycle end %v", check.ResetAt, cycleEnd)
	}
}
