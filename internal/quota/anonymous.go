package quota

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/statement2sheet/backend/internal/db"
	"github.com/statement2sheet/backend/internal/models"
	"gorm.io/gorm"
)

// ErrConversionLimitReached indicates the anonymous allowance is exhausted
// for a fingerprint or IP. Surfaced as "limit reached", directing to signup.
var ErrConversionLimitReached = errors.New("quota: anonymous conversion limit reached")

// anonymousLimit is the lifetime allowance per fingerprint/IP union.
const anonymousLimit = 1

// AnonymousCheckResult reports the anonymous limiter state.
type AnonymousCheckResult struct {
	Allowed        bool `json:"allowed"`
	Used           int  `json:"used"`
	Limit          int  `json:"limit"`
	RequiresSignup bool `json:"requires_signup"`
}

// AnonymousMeta carries file metadata recorded with an anonymous conversion.
type AnonymousMeta struct {
	OriginalFilename string
	FileSize         int64
	PageCount        int
}

// AnonymousLimiter enforces the one-shot conversion allowance for visitors
// without an account. The fingerprint/IP union is queried, so either
// identifier exhausts the allowance; records are never reset.
type AnonymousLimiter struct {
	db *gorm.DB
}

// NewAnonymousLimiter constructs an AnonymousLimiter.
func NewAnonymousLimiter(db *gorm.DB) *AnonymousLimiter {
	return &AnonymousLimiter{db: db}
}

// Check reports whether a visitor identified by fingerprint or IP may convert.
func (l *AnonymousLimiter) Check(ctx context.Context, fingerprint, ip string) (AnonymousCheckResult, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	ip = strings.TrimSpace(ip)

	var count int64
	if errCount := l.db.WithContext(ctx).Model(&models.AnonymousConversion{}).
		Where("fingerprint = ? OR ip_address = ?", fingerprint, ip).
		Count(&count).Error; errCount != nil {
		return AnonymousCheckResult{}, fmt.Errorf("quota: anonymous check: %w", errCount)
	}

	used := int(count)
	if used > anonymousLimit {
		used = anonymousLimit
	}
	allowed := count == 0
	return AnonymousCheckResult{
		Allowed:        allowed,
		Used:           used,
		Limit:          anonymousLimit,
		RequiresSignup: !allowed,
	}, nil
}

// Record stores a consumed anonymous conversion. The unique indexes on
// fingerprint and ip_address arbitrate concurrent writers: the loser's insert
// fails and is reported as ErrConversionLimitReached.
func (l *AnonymousLimiter) Record(ctx context.Context, fingerprint, ip string, meta AnonymousMeta) error {
	now := time.Now().UTC()
	row := models.AnonymousConversion{
		Fingerprint:      strings.TrimSpace(fingerprint),
		IPAddress:        strings.TrimSpace(ip),
		OriginalFilename: meta.OriginalFilename,
		FileSize:         meta.FileSize,
		PageCount:        meta.PageCount,
		ConvertedAt:      now,
		CreatedAt:        now,
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return ErrConversionLimitReached
		}
		return fmt.Errorf("quota: record anonymous conversion: %w", errCreate)
	}
	return nil
}
