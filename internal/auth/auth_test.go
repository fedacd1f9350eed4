package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/statement2sheet/backend/internal/config"
	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/models"
	"github.com/statement2sheet/backend/internal/security"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "auth-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, id, email string) {
	t.Helper()
	now := time.Now().UTC()
	user := models.User{
		ID:               id,
		Email:            email,
		SubscriptionTier: models.TierDailyFree,
		PagesRemaining:   models.DailyFreePages,
		PagesLimit:       models.DailyFreePages,
		DailyResetTime:   now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("seed user: %v", errCreate)
	}
}

func TestResolveSessionToken(t *testing.T) {
	conn := openTestDB(t)
	validator := NewValidator(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	ctx := context.Background()

	seedUser(t, conn, "user-1", "one@example.com")

	token, errCreate := validator.CreateSession(ctx, "user-1")
	if errCreate != nil {
		t.Fatalf("create session: %v", errCreate)
	}

	identity, errResolve := validator.Resolve(ctx, token)
	if errResolve != nil {
		t.Fatalf("resolve: %v", errResolve)
	}
	if identity.UserID != "user-1" || identity.Email != "one@example.com" {
		t.Fatalf("identity = %+v", identity)
	}

	if errDestroy := validator.DestroySession(ctx, token); errDestroy != nil {
		t.Fatalf("destroy: %v", errDestroy)
	}
	if _, errResolve = validator.Resolve(ctx, token); !errors.Is(errResolve, ErrUnauthenticated) {
		t.Fatalf("destroyed session = %v, want ErrUnauthenticated", errResolve)
	}
}

func TestResolveExpiredSession(t *testing.T) {
	conn := openTestDB(t)
	validator := NewValidator(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	ctx := context.Background()

	seedUser(t, conn, "user-2", "two@example.com")
	token, errCreate := validator.CreateSession(ctx, "user-2")
	if errCreate != nil {
		t.Fatalf("create session: %v", errCreate)
	}

	validator.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, errResolve := validator.Resolve(ctx, token); !errors.Is(errResolve, ErrUnauthenticated) {
		t.Fatalf("expired session = %v, want ErrUnauthenticated", errResolve)
	}
}

func TestResolveJWTFallback(t *testing.T) {
	conn := openTestDB(t)
	validator := NewValidator(conn, config.JWTConfig{Secret: "test-secret", Expiry: time.Hour})
	ctx := context.Background()

	token, errToken := security.NewUserToken("test-secret", "user-3", "three@example.com", time.Hour)
	if errToken != nil {
		t.Fatalf("issue token: %v", errToken)
	}

	identity, errResolve := validator.Resolve(ctx, token)
	if errResolve != nil {
		t.Fatalf("resolve jwt: %v", errResolve)
	}
	if identity.UserID != "user-3" {
		t.Fatalf("identity = %+v", identity)
	}

	if _, errResolve = validator.Resolve(ctx, "not-a-credential"); !errors.Is(errResolve, ErrUnauthenticated) {
		t.Fatalf("garbage credential = %v, want ErrUnauthenticated", errResolve)
	}
	if _, errResolve = validator.Resolve(ctx, ""); !errors.Is(errResolve, ErrUnauthenticated) {
		t.Fatalf("empty credential = %v, want ErrUnauthenticated", errResolve)
	}
}
