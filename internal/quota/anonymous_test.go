package quota

import (
	"context"
	"errors"
	"testing"
)

func TestAnonymousLimiterUnion(t *testing.T) {
	conn := openTestDB(t)
	limiter := NewAnonymousLimiter(conn)
	ctx := context.Background()

	check, errCheck := limiter.Check(ctx, "fp-1", "203.0.113.10")
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !check.Allowed || check.Used != 0 {
		t.Fatalf("fresh visitor: allowed=%v used=%d", check.Allowed, check.Used)
	}

	meta := AnonymousMeta{OriginalFilename: "statement.pdf", FileSize: 1024, PageCount: 2}
	if errRecord := limiter.Record(ctx, "fp-1", "203.0.113.10", meta); errRecord != nil {
		t.Fatalf("record: %v", errRecord)
	}

	// Same fingerprint, new IP.
	check, errCheck = limiter.Check(ctx, "fp-1", "203.0.113.99")
	if errCheck != nil {
		t.Fatalf("check same fingerprint: %v", errCheck)
	}
	if check.Allowed || !check.RequiresSignup {
		t.Fatalf("same fingerprint slipped through: %+v", check)
	}

	// Same IP, new fingerprint.
	check, errCheck = limiter.Check(ctx, "fp-other", "203.0.113.10")
	if errCheck != nil {
		t.Fatalf("check same ip: %v", errCheck)
	}
	if check.Allowed {
		t.Fatalf("same ip slipped through: %+v", check)
	}

	// Unrelated visitor stays allowed.
	check, errCheck = limiter.Check(ctx, "fp-other", "198.51.100.1")
	if errCheck != nil {
		t.Fatalf("check unrelated: %v", errCheck)
	}
	if !check.Allowed {
		t.Fatalf("unrelated visitor blocked: %+v", check)
	}
}

func TestAnonymousRecordDuplicate(t *testing.T) {
	conn := openTestDB(t)
	limiter := NewAnonymousLimiter(conn)
	ctx := context.Background()

	meta := AnonymousMeta{OriginalFilename: "a.pdf", FileSize: 10, PageCount: 1}
	if errRecord := limiter.Record(ctx, "fp-dup", "192.0.2.1", meta); errRecord != nil {
		t.Fatalf("first record: %v", errRecord)
	}

	if errRecord := limiter.Record(ctx, "fp-dup", "192.0.2.2", meta); !errors.Is(errRecord, ErrConversionLimitReached) {
		t.Fatalf("duplicate fingerprint = %v, want ErrConversionLimitReached", errRecord)
	}
	if errRecord := limiter.Record(ctx, "fp-new", "192.0.2.1", meta); !errors.Is(errRecord, ErrConversionLimitReached) {
		t.Fatalf("duplicate ip = %v, want ErrConversionLimitReached", errRecord)
	}
}
