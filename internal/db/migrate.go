package db

import (
	"fmt"

	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.UserSession{},
		&models.Subscription{},
		&models.PaymentTransaction{},
		&models.WebhookEvent{},
		&models.Document{},
		&models.AnonymousConversion{},
		&models.EnterpriseContact{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if DialectName(conn) == DialectPostgres {
		if errCheck := conn.Exec(`
			ALTER TABLE users
			DROP CONSTRAINT IF EXISTS chk_users_pages_remaining;
		`).Error; errCheck != nil {
			return fmt.Errorf("db: drop pages check: %w", errCheck)
		}
		if errCheck := conn.Exec(`
			ALTER TABLE users
			ADD CONSTRAINT chk_users_pages_remaining CHECK (pages_remaining >= 0);
		`).Error; errCheck != nil {
			return fmt.Errorf("db: add pages check: %w", errCheck)
		}
	}

	return nil
}
